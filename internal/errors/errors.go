package errors

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrPaymentNotFound = fmt.Errorf("payment %w", ErrNotFound)
	ErrEventNotFound   = fmt.Errorf("event %w", ErrNotFound)
	ErrSoldOut         = errors.New("event is sold out")
	ErrInvalidRequest  = errors.New("invalid request")
	ErrConfig          = errors.New("configuration error")
)

// Provider-side failures. Messages never carry credentials.
var (
	ErrUpstreamAuth     = errors.New("payment provider authentication failed")
	ErrUpstreamProtocol = errors.New("unexpected payment provider response")
)

var (
	ErrMalformedWebhook     = errors.New("malformed webhook")
	ErrTransientPersistence = errors.New("post-commit write failed")
)

// Is and As re-export the standard helpers so callers importing this package
// under its own name don't need a second errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
