package llm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{
			name:      "unauthorized",
			err:       errors.New("401 unauthorized"),
			wantType:  ErrorTypeAuth,
			retryable: false,
		},
		{
			name:      "model missing",
			err:       errors.New("the model 'gpt-9' does not exist"),
			wantType:  ErrorTypeModel,
			retryable: false,
		},
		{
			name:      "connection refused",
			err:       errors.New("dial tcp: connection refused"),
			wantType:  ErrorTypeEndpoint,
			retryable: true,
		},
		{
			name:      "rate limited",
			err:       errors.New("429 rate limit exceeded"),
			wantType:  ErrorTypeUnknown,
			retryable: true,
		},
		{
			name:      "deadline",
			err:       errors.New("context deadline exceeded"),
			wantType:  ErrorTypeEndpoint,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ClassifyError(tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantType, got.Type)
			assert.Equal(t, tt.retryable, got.IsRetryable())
		})
	}
}

func TestClassifyErrorNil(t *testing.T) {
	assert.Nil(t, ClassifyError(nil))
}

func TestClassifyErrorPassesThroughStructured(t *testing.T) {
	orig := NewError(ErrorTypeAuth, "bad key", false, nil)
	got := ClassifyError(orig)
	assert.Same(t, orig, got)
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := NewError(ErrorTypeEndpoint, "wrapped", true, cause)
	assert.ErrorIs(t, err, cause)
}
