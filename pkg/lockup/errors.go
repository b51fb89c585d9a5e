package lockup

import (
	"github.com/pkg/errors"
)

var (
	// ErrInvalidParameter is returned when operation parameters fail
	// validation. Nothing was submitted.
	ErrInvalidParameter = errors.New("invalid parameter")

	// ErrAccountNotReady is returned when a state account is missing, has the
	// wrong size or owner, or is not yet initialized.
	ErrAccountNotReady = errors.New("account not ready")

	// ErrSigningRejected is returned when the wallet declined to sign, or
	// returned a transaction without a valid signature.
	ErrSigningRejected = errors.New("signing rejected")

	// ErrSubmissionFault is returned when the transaction was never sent, the
	// node answered the submission with an error, or the transaction was
	// finalized with an error. The ledger is unchanged by the transaction's
	// instructions.
	ErrSubmissionFault = errors.New("submission fault")

	// ErrConfirmationTimeout is returned when finality was not observed within
	// the configured wait. It is always accompanied by ErrAmbiguousOutcome.
	ErrConfirmationTimeout = errors.New("confirmation timeout")

	// ErrAmbiguousOutcome is returned when a fault occurred after submission,
	// including a submission that got no response, and the outcome of the
	// transaction is unknown. Callers must re-query
	// state rather than assume success or failure.
	ErrAmbiguousOutcome = errors.New("ambiguous outcome")
)

// classifiedError attaches one or more sentinel errors to an underlying cause
// so that errors.Is matches each sentinel and errors.As reaches the cause.
type classifiedError struct {
	kinds []error
	cause error
}

func classify(cause error, kinds ...error) error {
	return &classifiedError{
		kinds: kinds,
		cause: cause,
	}
}

func (e *classifiedError) Error() string {
	msg := e.kinds[0].Error()
	for _, kind := range e.kinds[1:] {
		msg += ", " + kind.Error()
	}
	if e.cause == nil {
		return msg
	}
	return msg + ": " + e.cause.Error()
}

func (e *classifiedError) Is(target error) bool {
	for _, kind := range e.kinds {
		if target == kind {
			return true
		}
	}
	return false
}

func (e *classifiedError) Unwrap() error {
	return e.cause
}
