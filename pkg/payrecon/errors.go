package payrecon

import (
	"errors"
	"fmt"
)

var (
	// ErrDuplicateRecord is returned by stores when an idempotency record
	// with the same payment id already exists. The guard treats it as a
	// concurrent-duplicate race, not a failure.
	ErrDuplicateRecord = errors.New("idempotency record already exists")

	// ErrLedgerEntryNotFound is returned when a ledger entry lookup finds nothing.
	ErrLedgerEntryNotFound = errors.New("ledger entry not found")

	// ErrOwnerNotFound is returned when an owner entity lookup finds nothing.
	ErrOwnerNotFound = errors.New("owner entity not found")

	// ErrUnrecognizedReference is returned when an external reference
	// matches no known format.
	ErrUnrecognizedReference = errors.New("unrecognized external reference format")

	// ErrStoreRequired is returned by constructors when no store is provided.
	ErrStoreRequired = errors.New("store is required")

	// ErrGatewayRequired is returned by constructors when no gateway is provided.
	ErrGatewayRequired = errors.New("gateway is required")
)

// BadRequestError is the single client-facing fatal error of the engine:
// gateway fetch failures, callback failures, missing payment ids and
// failed amount validations all surface as one of these. The gateway's
// own retry mechanism re-delivers; the engine never retries internally.
type BadRequestError struct {
	Message string
	Err     error
}

func (e *BadRequestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BadRequestError) Unwrap() error {
	return e.Err
}

// NewBadRequest wraps cause into a client-facing fatal error.
func NewBadRequest(message string, cause error) *BadRequestError {
	return &BadRequestError{Message: message, Err: cause}
}

// IsBadRequest reports whether err is (or wraps) a BadRequestError.
func IsBadRequest(err error) bool {
	var bre *BadRequestError
	return errors.As(err, &bre)
}
