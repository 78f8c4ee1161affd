package usecase

import (
	"errors"
	"fmt"

	"support-copilot/internal/copilot"
	"support-copilot/internal/inbox"
)

type ErrorCode string

const (
	ErrorNotFound         ErrorCode = "NOT_FOUND"
	ErrorInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrorResponderFailure ErrorCode = "RESPONDER_FAILURE"
	ErrorInternal         ErrorCode = "INTERNAL_ERROR"
)

type Error struct {
	Code   ErrorCode
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// classify maps core sentinel errors onto the usecase taxonomy.
func classify(reason string, err error) *Error {
	switch {
	case errors.Is(err, inbox.ErrNotFound):
		return newError(ErrorNotFound, "conversation_not_found", err)
	case errors.Is(err, copilot.ErrRecordNotFound):
		return newError(ErrorNotFound, "record_not_found", err)
	case errors.Is(err, inbox.ErrInvalidRole):
		return newError(ErrorInvalidInput, "invalid_sender_role", err)
	default:
		return newError(ErrorInternal, reason, err)
	}
}
