package pdf

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateReceipt(t *testing.T) {
	r, err := New().GenerateReceipt(context.Background(), ReceiptData{
		IssuerName:    "coursepay",
		InvoiceNumber: "INV-202603-ABCDEFGHIJ",
		AccessCode:    "ABCD-EFGH",
		IssueDate:     "2026-03-14",
		Status:        "VALID",
		CourseTitle:   "Go for Backend Engineers",
		Total:         "IDR 150000",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.True(t, len(body) > 4)
	assert.Equal(t, "%PDF", string(body[:4]))
}

func TestGenerateReceiptRequiresNumber(t *testing.T) {
	_, err := New().GenerateReceipt(context.Background(), ReceiptData{})
	assert.Error(t, err)
}
