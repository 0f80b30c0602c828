package pdf

import (
	"context"
	"io"

	"go.uber.org/fx"
)

// Provider renders payment documents.
type Provider interface {
	GenerateReceipt(ctx context.Context, data ReceiptData) (io.Reader, error)
}

var Module = fx.Module("providers.pdf",
	fx.Provide(New),
)
