package llm

import (
	"context"
	"errors"
	"fmt"
)

// ModelUnavailableError indicates the model could not be reached: transport
// failure, non-success status, or an expired deadline.
type ModelUnavailableError struct {
	Op    string
	Cause error
}

func (e *ModelUnavailableError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("model unavailable (%s): %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("model unavailable: %v", e.Cause)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.Cause
}

// Timeout reports whether the call failed because its deadline expired.
func (e *ModelUnavailableError) Timeout() bool {
	return errors.Is(e.Cause, context.DeadlineExceeded)
}

// ModelResponseError indicates the model replied but the payload could not be
// turned into the expected shape. Raw holds the text for diagnostics; it must
// be logged, never shown to end users.
type ModelResponseError struct {
	Op      string
	Message string
	Raw     string
	Cause   error
}

func (e *ModelResponseError) Error() string {
	msg := e.Message
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	if e.Op != "" {
		return fmt.Sprintf("invalid model response (%s): %s", e.Op, msg)
	}
	return "invalid model response: " + msg
}

func (e *ModelResponseError) Unwrap() error {
	return e.Cause
}

// IsModelError reports whether err is a ModelUnavailableError or ModelResponseError.
func IsModelError(err error) bool {
	var unavailable *ModelUnavailableError
	var response *ModelResponseError
	return errors.As(err, &unavailable) || errors.As(err, &response)
}

// WithOp stamps op onto any model error in err's chain that has none.
func WithOp(err error, op string) error {
	var unavailable *ModelUnavailableError
	if errors.As(err, &unavailable) && unavailable.Op == "" {
		unavailable.Op = op
	}
	var response *ModelResponseError
	if errors.As(err, &response) && response.Op == "" {
		response.Op = op
	}
	return err
}
