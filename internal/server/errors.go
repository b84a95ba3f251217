package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/yecs/internal/assistant"
	"github.com/jonathan/yecs/internal/llm"
	"github.com/jonathan/yecs/internal/types"
	"github.com/jonathan/yecs/internal/workflow"
)

// BadRequestError indicates a missing or malformed request body.
type BadRequestError struct {
	Message string
	Cause   error
}

func (e *BadRequestError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *BadRequestError) Unwrap() error {
	return e.Cause
}

// ErrModelNotConfigured is returned by model-backed endpoints when no API key is set.
var ErrModelNotConfigured = errors.New("generative model is not configured")

// HTTPStatus returns the appropriate HTTP status code for an error.
// Model failures are 500s.
func HTTPStatus(err error) int {
	var (
		badRequest *BadRequestError
		validation *types.ValidationError
		transition *workflow.InvalidTransitionError
	)
	switch {
	case errors.As(err, &badRequest), errors.As(err, &validation), errors.Is(err, assistant.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.As(err, &transition), errors.Is(err, workflow.ErrSuperseded), errors.Is(err, assistant.ErrBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage returns the error text that is safe to show a client.
// Model errors never expose the raw reply.
func PublicMessage(err error) string {
	var (
		unavailable *llm.ModelUnavailableError
		response    *llm.ModelResponseError
	)
	switch {
	case errors.As(err, &unavailable):
		return "the scoring model is unavailable, please try again later"
	case errors.As(err, &response):
		return "the scoring model returned an unusable response"
	case HTTPStatus(err) == http.StatusInternalServerError && !errors.Is(err, ErrModelNotConfigured):
		return "internal server error"
	default:
		return err.Error()
	}
}
