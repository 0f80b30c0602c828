package payment

import (
	"context"
	"net/http"
	"testing"

	"github.com/smallbiznis/coursepay/internal/config"
	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewRegistryRequiresSecretInProduction(t *testing.T) {
	cfg := config.Config{Environment: "production"}

	registry, err := NewRegistry(cfg, zap.NewNop())
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	assert.Nil(t, registry)
}

func TestNewRegistryWithoutSecretRejectsWebhooks(t *testing.T) {
	cfg := config.Config{Environment: "development"}

	registry, err := NewRegistry(cfg, zap.NewNop())
	require.NoError(t, err)

	adapter, err := registry.Adapter(domain.SourceGateway)
	require.NoError(t, err)
	verifier, ok := adapter.(domain.Verifier)
	require.True(t, ok)

	payload := []byte(`{"transactionId":"FORGED","userId":"u-1","courseId":"c-1","amount":1,"currency":"IDR","status":"valid"}`)
	err = verifier.Verify(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}
