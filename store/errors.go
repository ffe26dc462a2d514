package store

import (
	"errors"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
)

// Kind buckets store failures into the categories the HTTP layer and the
// bulk clear engine care about.
type Kind int

const (
	// KindStore is any remote failure without a more specific category.
	KindStore Kind = iota
	// KindNotFound is a missing table or resource.
	KindNotFound
	// KindUnauthorized is a store-reported authentication failure.
	KindUnauthorized
	// KindConflict covers in-use resources, throttling and account limits.
	KindConflict
)

// Classify maps a remote-store error to its Kind by unwrapping to the
// underlying service error code.
func Classify(err error) Kind {
	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return KindStore
	}

	switch aerr.Code() {
	case dynamodb.ErrCodeResourceNotFoundException:
		return KindNotFound
	case "UnrecognizedClientException", "InvalidSignatureException", "ExpiredTokenException", "MissingAuthenticationToken":
		return KindUnauthorized
	case dynamodb.ErrCodeResourceInUseException,
		dynamodb.ErrCodeLimitExceededException,
		dynamodb.ErrCodeProvisionedThroughputExceededException,
		"ThrottlingException":
		return KindConflict
	default:
		return KindStore
	}
}

// Message returns the store's own message for an error, stripping the SDK's
// wrapping so callers surface the remote message verbatim.
func Message(err error) string {
	var aerr awserr.Error
	if errors.As(err, &aerr) {
		return aerr.Message()
	}
	return err.Error()
}
