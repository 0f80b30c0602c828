package lock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNilLocker(t *testing.T) {
	var l *Locker
	assert.Nil(t, NewLocker(nil))

	_, ok, err := l.TryLock(context.Background(), "settle:gw:T", time.Second)
	assert.Error(t, err)
	assert.False(t, ok)
	assert.NoError(t, l.Release(context.Background(), "settle:gw:T", "tok"))
}

func TestSettlementKey(t *testing.T) {
	assert.Equal(t, "settle:man:S-1:R", SettlementKey("man:S-1:R"))
}
