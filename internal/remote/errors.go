package remote

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// ErrNotFound matches a ValidationError caused by a missing publication,
// whether reported by the backend (404) or detected against the local cache.
var ErrNotFound = errors.New("not found")

// NetworkError reports a request that did not complete: transport failure,
// timeout, or a response body that could not be decoded.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ValidationError reports a rejected request. Detail is the backend's reason
// (or the local validation message) and is meant to be shown verbatim.
type ValidationError struct {
	Op     string
	Status int
	Detail string
}

func (e *ValidationError) Error() string {
	return e.Detail
}

// Is lets errors.Is(err, ErrNotFound) match 404 responses.
func (e *ValidationError) Is(target error) bool {
	return target == ErrNotFound && e.Status == 404
}

// ConflictError reports a duplicate publication name on create.
type ConflictError struct {
	Name   string
	Detail string
}

func (e *ConflictError) Error() string {
	if e.Detail != "" {
		return e.Detail
	}
	return fmt.Sprintf("publication %q already exists", e.Name)
}

// StatusError reports a 5xx response from the backend.
type StatusError struct {
	Op     string
	Status int
	Detail string
}

func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: backend returned status %d: %s", e.Op, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s: backend returned status %d", e.Op, e.Status)
}

// Invalid builds a local ValidationError that mirrors a 4xx rejection.
func Invalid(op, detail string) error {
	return &ValidationError{Op: op, Status: 400, Detail: detail}
}

// NotFound builds a local ValidationError matching ErrNotFound.
func NotFound(op, name string) error {
	return &ValidationError{Op: op, Status: 404, Detail: fmt.Sprintf("Publication %q not found", name)}
}

// IsUnavailable reports whether err means the backend could not be reached.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var c *ConflictError
	return errors.As(err, &c)
}

func isUniqueViolation(detail string) bool {
	lower := strings.ToLower(detail)
	return strings.Contains(lower, "unique") || strings.Contains(lower, "already exists") || strings.Contains(lower, "duplicate")
}
