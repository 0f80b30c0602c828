package adapters_test

import (
	"testing"

	"github.com/smallbiznis/coursepay/internal/payment/adapters"
	"github.com/smallbiznis/coursepay/internal/payment/adapters/gateway"
	"github.com/smallbiznis/coursepay/internal/payment/adapters/manual"
	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryDispatchesByKind(t *testing.T) {
	registry := adapters.NewRegistry(gateway.New(""), manual.New(), nil)

	assert.True(t, registry.SourceExists(domain.SourceGateway))
	assert.True(t, registry.SourceExists(domain.SourceManual))

	record, err := registry.Normalize([]byte(`{"transactionId":"T-1","userId":"u","courseId":"c","amount":5,"currency":"USD","status":"paid"}`), domain.SourceGateway)
	require.NoError(t, err)
	assert.Equal(t, "gw:T-1", record.NaturalKey)

	_, err = registry.Normalize([]byte(`{}`), domain.SourceKind("cash"))
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}

func TestNilRegistry(t *testing.T) {
	var registry *adapters.Registry
	assert.False(t, registry.SourceExists(domain.SourceGateway))
	_, err := registry.Adapter(domain.SourceGateway)
	assert.ErrorIs(t, err, domain.ErrSourceNotFound)
}
