package apierr

import (
	"fmt"
	"net/http"
)

const (
	CodeValidation = "validation_error"
	CodeUpstream   = "upstream_error"
	CodeParse      = "parse_error"
	CodeStorage    = "storage_error"
	CodeNotFound   = "not_found"
)

// Error is the typed failure every handler maps to an HTTP response. Status
// carries the outward status code; for upstream failures it passes the
// provider's status through.
type Error struct {
	Status int
	Code   string
	Err    error

	// Provider is set for upstream failures ("gemini", "tts").
	Provider string
	// Raw holds the unparseable model payload for parse failures.
	Raw string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Code != "" {
		return e.Code
	}
	if e.Status != 0 {
		return fmt.Sprintf("api error (%d)", e.Status)
	}
	return "api error"
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.Status
}

func New(status int, code string, err error) *Error {
	return &Error{Status: status, Code: code, Err: err}
}

func Validation(err error) *Error {
	return New(http.StatusBadRequest, CodeValidation, err)
}

func NotFound(err error) *Error {
	return New(http.StatusNotFound, CodeNotFound, err)
}

func Storage(err error) *Error {
	return New(http.StatusInternalServerError, CodeStorage, err)
}

// Upstream records a provider failure. The provider status is passed through
// when it is a valid HTTP status, mirroring the original functions which
// relayed Gemini/TTS statuses to the caller.
func Upstream(provider string, status int, body string) *Error {
	outward := status
	if outward < 400 || outward > 599 {
		outward = http.StatusBadGateway
	}
	return &Error{
		Status:   outward,
		Code:     CodeUpstream,
		Provider: provider,
		Err:      fmt.Errorf("%s request failed (%d): %s", provider, status, body),
	}
}

// Parse records model output that did not match the expected shape. The raw
// payload is retained for diagnostics and never substituted with empties.
func Parse(raw string, err error) *Error {
	return &Error{
		Status: http.StatusInternalServerError,
		Code:   CodeParse,
		Raw:    raw,
		Err:    fmt.Errorf("failed to parse model response: %w", err),
	}
}
