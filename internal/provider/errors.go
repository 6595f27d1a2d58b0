package provider

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindUnreachable ErrorKind = "unreachable"
	KindTimeout     ErrorKind = "timeout"
	KindMalformed   ErrorKind = "malformed"
)

// Error is a backend failure: unreachable, timed out, or answered with a
// payload that could not be decoded. It is the only error the router
// falls back on.
type Error struct {
	Provider string
	Kind     ErrorKind
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("provider %s %s: %v", e.Provider, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsProviderError reports whether err is or wraps a *Error.
func IsProviderError(err error) bool {
	var pe *Error
	return errors.As(err, &pe)
}

func malformed(provider string, err error) error {
	return &Error{Provider: provider, Kind: KindMalformed, Err: err}
}

// transportError wraps a failed call. Caller cancellation is returned as is
// so it never triggers a fallback.
func transportError(ctx context.Context, provider string, err error) error {
	if errors.Is(ctx.Err(), context.Canceled) {
		return ctx.Err()
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &Error{Provider: provider, Kind: KindTimeout, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return &Error{Provider: provider, Kind: KindTimeout, Err: err}
	}
	return &Error{Provider: provider, Kind: KindUnreachable, Err: err}
}
