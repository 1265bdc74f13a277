package gitrepo

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Typed clone errors enabling structured classification without string
// parsing upstream.

type AuthError struct {
	Op, URL string
	Err     error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s auth error for %s: %v", e.Op, e.URL, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

type NotFoundError struct {
	Op, URL string
	Err     error
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s not found %s: %v", e.Op, e.URL, e.Err) }
func (e *NotFoundError) Unwrap() error { return e.Err }

type UnsupportedProtocolError struct {
	Op, URL string
	Err     error
}

func (e *UnsupportedProtocolError) Error() string {
	return fmt.Sprintf("%s unsupported protocol %s: %v", e.Op, e.URL, e.Err)
}
func (e *UnsupportedProtocolError) Unwrap() error { return e.Err }

type RateLimitError struct {
	Op, URL string
	Err     error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s rate limited %s: %v", e.Op, e.URL, e.Err)
}
func (e *RateLimitError) Unwrap() error { return e.Err }

type NetworkTimeoutError struct {
	Op, URL string
	Err     error
}

func (e *NetworkTimeoutError) Error() string {
	return fmt.Sprintf("%s network timeout %s: %v", e.Op, e.URL, e.Err)
}
func (e *NetworkTimeoutError) Unwrap() error { return e.Err }

// classifyCloneError wraps underlying go-git errors into typed variants when possible.
func classifyCloneError(url string, err error) error {
	if err == nil {
		return nil
	}
	l := strings.ToLower(err.Error())
	switch {
	case strings.Contains(l, "authentication") || strings.Contains(l, "auth fail") || strings.Contains(l, "invalid username or password"):
		return &AuthError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "not found") || strings.Contains(l, "repository does not exist"):
		return &NotFoundError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "unsupported protocol") || strings.Contains(l, "protocol not supported"):
		return &UnsupportedProtocolError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "rate limit") || strings.Contains(l, "too many requests"):
		return &RateLimitError{Op: "clone", URL: url, Err: err}
	case strings.Contains(l, "timeout") || strings.Contains(l, "i/o timeout"):
		return &NetworkTimeoutError{Op: "clone", URL: url, Err: err}
	default:
		return fmt.Errorf("failed to clone repository %s: %w", url, err)
	}
}

// isPermanentError reports whether retrying the operation cannot help.
func isPermanentError(err error) bool {
	if err == nil {
		return false
	}

	var authErr *AuthError
	var notFoundErr *NotFoundError
	var protoErr *UnsupportedProtocolError
	if errors.As(err, &authErr) || errors.As(err, &notFoundErr) || errors.As(err, &protoErr) {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "auth") || strings.Contains(msg, "permission") || strings.Contains(msg, "denied") {
		return true
	}
	if strings.Contains(msg, "not found") || strings.Contains(msg, "invalid reference") || strings.Contains(msg, "reference not found") {
		return true
	}
	if strings.Contains(msg, "unsupported protocol") {
		return true
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return !nerr.Timeout()
	}
	return false
}

// isRateLimited reports whether the error calls for a longer backoff.
func isRateLimited(err error) bool {
	var rl *RateLimitError
	return errors.As(err, &rl)
}
