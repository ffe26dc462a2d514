package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/tj/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		code string
		kind Kind
	}{
		{dynamodb.ErrCodeResourceNotFoundException, KindNotFound},
		{"UnrecognizedClientException", KindUnauthorized},
		{"InvalidSignatureException", KindUnauthorized},
		{"ExpiredTokenException", KindUnauthorized},
		{"MissingAuthenticationToken", KindUnauthorized},
		{dynamodb.ErrCodeResourceInUseException, KindConflict},
		{dynamodb.ErrCodeLimitExceededException, KindConflict},
		{dynamodb.ErrCodeProvisionedThroughputExceededException, KindConflict},
		{"ThrottlingException", KindConflict},
		{"InternalServerError", KindStore},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := awserr.New(tt.code, "message", nil)
			assert.Equal(t, tt.kind, Classify(err))
		})
	}
}

func TestClassifyUnwraps(t *testing.T) {
	err := fmt.Errorf("failed to describe table users: %w",
		awserr.New(dynamodb.ErrCodeResourceNotFoundException, "no such table", nil))
	assert.Equal(t, KindNotFound, Classify(err))
}

func TestClassifyPlainError(t *testing.T) {
	assert.Equal(t, KindStore, Classify(errors.New("dial tcp: connection refused")))
}

func TestMessage(t *testing.T) {
	t.Run("service error", func(t *testing.T) {
		err := fmt.Errorf("failed to scan table users: %w",
			awserr.New("ValidationException", "Invalid FilterExpression", nil))
		assert.Equal(t, "Invalid FilterExpression", Message(err))
	})

	t.Run("plain error", func(t *testing.T) {
		err := errors.New("dial tcp: connection refused")
		assert.Equal(t, "dial tcp: connection refused", Message(err))
	})
}
