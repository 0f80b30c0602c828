package manual

import (
	"errors"
	"testing"

	"github.com/smallbiznis/coursepay/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeSubmission(t *testing.T) {
	record, err := New().Normalize([]byte(`{"submissionId":"S-1","reference":" BANK-778 ","userId":"u-1","courseId":"c-1","amount":99000,"currency":"IDR"}`))
	require.NoError(t, err)

	assert.Equal(t, "man:S-1:BANK-778", record.NaturalKey)
	assert.Equal(t, "S-1", record.SourceID)
	assert.Equal(t, "BANK-778", record.Reference)
	assert.Equal(t, "submitted", record.RawStatus)
	assert.Equal(t, domain.SourceManual, record.SourceKind)
}

func TestNormalizeSubmissionRequiresReference(t *testing.T) {
	_, err := New().Normalize([]byte(`{"submissionId":"S-1","userId":"u-1","courseId":"c-1","amount":99000,"currency":"IDR"}`))
	require.Error(t, err)

	var malformed *domain.MalformedPayloadError
	require.True(t, errors.As(err, &malformed))
	assert.Equal(t, "reference", malformed.Field)
}

func TestNormalizeSubmissionRejectsSeparatorInID(t *testing.T) {
	_, err := New().Normalize([]byte(`{"submissionId":"S:1","reference":"R","userId":"u-1","courseId":"c-1","amount":1,"currency":"IDR"}`))
	assert.ErrorIs(t, err, domain.ErrMalformedPayload)
}
