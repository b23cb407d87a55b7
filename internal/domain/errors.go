package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrParse marks an upload that is not decodable as an email message
	ErrParse = errors.New("email could not be parsed")

	// ErrNotFound is returned for unknown scan ids
	ErrNotFound = errors.New("not found")

	// ErrInvalidDomain is returned when a string cannot be normalized to a domain
	ErrInvalidDomain = errors.New("invalid domain")

	// ErrStoreConflict is raised by storage adapters when a concurrent write
	// raced with ours. The reputation store retries it internally.
	ErrStoreConflict = errors.New("reputation store conflict")
)

// ParseError rejects an upload. errors.Is(err, ErrParse) holds for it.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", ErrParse, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s", ErrParse, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// NewParseError builds a ParseError with an optional cause
func NewParseError(reason string, cause error) *ParseError {
	return &ParseError{Reason: reason, Err: cause}
}
