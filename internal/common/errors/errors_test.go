package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSentinelsMatchByCode(t *testing.T) {
	wrapped := fmt.Errorf("lookup: %w", NewApplicationNotFoundError("APP-999"))

	assert.True(t, stderrors.Is(wrapped, ErrApplicationNotFound))
	assert.False(t, stderrors.Is(wrapped, ErrInvalidStatus))

	var stdErr *StandardError
	require.True(t, stderrors.As(wrapped, &stdErr))
	assert.Equal(t, "APP-999", stdErr.Metadata["applicationId"])
}

func TestStorageErrorUnwrapsCause(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewStorageOperationFailedError("insert", cause)

	assert.True(t, stderrors.Is(err, cause))
	assert.True(t, stderrors.Is(err, ErrStorageOperationFailed))
	assert.True(t, err.Retryable)
}

func TestConstructorsCarryBodies(t *testing.T) {
	v := NewValidationFailedError([]string{"a", "b"})
	assert.Equal(t, "Validation failed", v.Message)
	assert.Equal(t, []string{"a", "b"}, v.Metadata["details"])
	assert.Equal(t, "a; b", v.Details)

	s := NewInvalidStatusError("bogus", []string{"pending", "funded"})
	assert.Equal(t, "Invalid status", s.Message)
	assert.Equal(t, []string{"pending", "funded"}, s.Metadata["validStatuses"])
	assert.Contains(t, s.Error(), "INVALID_STATUS")
}

func TestAsStandardError(t *testing.T) {
	assert.Nil(t, AsStandardError(nil))

	plain := AsStandardError(stderrors.New("boom"))
	assert.Equal(t, ErrCodeInternal, plain.Code)
	assert.Equal(t, "boom", plain.Details)

	original := NewApplicationNotFoundError("APP-001")
	assert.Same(t, original, AsStandardError(fmt.Errorf("wrapped: %w", original)))
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeApplicationValidationFailed, http.StatusBadRequest},
		{ErrCodeInvalidStatus, http.StatusBadRequest},
		{ErrCodeApplicationNotFound, http.StatusNotFound},
		{ErrCodeStorageOperationFailed, http.StatusInternalServerError},
		{ErrCodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, HTTPStatus(tt.code), string(tt.code))
	}
}

func TestConvertToBPMNError(t *testing.T) {
	bpmn := ConvertToBPMNError(NewInvalidStatusError("bogus", []string{"pending"}))
	assert.Equal(t, "INVALID_STATUS", bpmn.Code)
	assert.Equal(t, 0, bpmn.Retries)

	vars := bpmn.ToErrorVariables()
	assert.Equal(t, "INVALID_STATUS", vars["errorCode"])
	assert.Equal(t, []string{"pending"}, vars["validStatuses"])
	assert.Equal(t, false, vars["retryable"])

	storage := ConvertToBPMNError(NewStorageOperationFailedError("save", stderrors.New("x")))
	assert.Equal(t, 3, storage.Retries)

	timeout := ConvertToBPMNError(NewTimeoutError("zeebe", stderrors.New("deadline")))
	assert.Equal(t, 2, timeout.Retries)
}

func TestGetErrorCategory(t *testing.T) {
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeApplicationValidationFailed))
	assert.Equal(t, "VALIDATION", GetErrorCategory(ErrCodeInvalidStatus))
	assert.Equal(t, "LOOKUP", GetErrorCategory(ErrCodeApplicationNotFound))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeSeedDataInvalid))
	assert.Equal(t, "STORAGE", GetErrorCategory(ErrCodeStorageOperationFailed))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeNotificationSendFailed))
	assert.Equal(t, "INTEGRATION", GetErrorCategory(ErrCodeIndexingFailed))
	assert.Equal(t, "OTHER", GetErrorCategory(ErrCodeInternal))
	assert.True(t, IsRetryableErrorCode(ErrCodeNotificationSendFailed))
	assert.False(t, IsRetryableErrorCode(ErrCodeApplicationNotFound))
}
