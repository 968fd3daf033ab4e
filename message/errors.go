package message

import (
	"errors"
	"fmt"
)

var (
	ErrWrongKind          = errors.New("message: body kind mismatch")
	ErrReadOnly           = errors.New("message: read-only")
	ErrInvalidHeader      = errors.New("message: invalid header value")
	ErrUnknownHeader      = errors.New("message: unknown header")
	ErrInvalidProperty    = errors.New("message: invalid property")
	ErrAttachmentNotFound = errors.New("message: attachment not found")
)

// AccessError reports a failed read or write of a body, property or header.
type AccessError struct {
	Op  string // e.g. "get property", "set header"
	Key string
	Err error
}

func (e *AccessError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("message: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("message: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *AccessError) Unwrap() error { return e.Err }

func accessErr(op, key string, err error) error {
	return &AccessError{Op: op, Key: key, Err: err}
}

// IsAccessError reports whether err came from a message accessor.
func IsAccessError(err error) bool {
	var ae *AccessError
	return errors.As(err, &ae)
}
