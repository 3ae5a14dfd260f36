package verdict

import (
	"errors"
	"fmt"

	"github.com/mdobak/go-xerrors"
)

// Kind classifies failures so callers can map them to a response.
type Kind int

const (
	// Unexpected covers anything that is not one of the kinds below.
	Unexpected Kind = iota
	// InvalidInput means the upload could not be decoded or yielded nothing to classify.
	InvalidInput
	// Configuration means a required setting such as an API key is missing.
	Configuration
	// Upstream means a remote provider failed or answered with a non-2xx status.
	Upstream
	// Parse means no usable verdict could be recovered from a provider answer.
	Parse
)

func (k Kind) String() string {
	switch k {
	case InvalidInput:
		return "invalid_input"
	case Configuration:
		return "configuration"
	case Upstream:
		return "upstream"
	case Parse:
		return "parse"
	default:
		return "unexpected"
	}
}

// Error carries a kind, a message safe to show to callers and the underlying cause.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Msg
	}
	return fmt.Sprintf("%s: %v", e.Msg, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// E builds an *Error. A non-nil cause is captured with a stack trace.
func E(kind Kind, msg string, cause error) *Error {
	if cause != nil {
		cause = xerrors.New(cause)
	}
	return &Error{Kind: kind, Msg: msg, Err: cause}
}

// InvalidInputf builds an InvalidInput error without a cause.
func InvalidInputf(format string, args ...any) *Error {
	return &Error{Kind: InvalidInput, Msg: fmt.Sprintf(format, args...)}
}

// KindOf resolves the kind of err through any wrapping.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Unexpected
}

// Message returns the caller-safe message of err, or fallback when err carries none.
func Message(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Msg != "" {
		return e.Msg
	}
	return fallback
}
