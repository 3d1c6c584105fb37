// internal/blockchain/solbc/rpc/errors.go
package rpc

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoRPCNodes is returned when the client is built without endpoints.
	ErrNoRPCNodes = errors.New("no RPC nodes available")

	// ErrInvalidResponse marks answers that cannot be decoded into the expected shape.
	ErrInvalidResponse = errors.New("invalid RPC response")
)

// Error wraps a failed call with the node and method it was sent to.
type Error struct {
	Err     error
	NodeURL string
	Method  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("RPC error [%s] at %s: %v", e.Method, e.NodeURL, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError wraps err with call context.
func NewError(err error, nodeURL, method string) error {
	return &Error{
		Err:     err,
		NodeURL: nodeURL,
		Method:  method,
	}
}

// IsAccountNotFoundError reports whether the node said the account does not exist.
func IsAccountNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "could not find account") ||
		strings.Contains(msg, "account not found")
}

// IsRetryableError reports whether another attempt, possibly on another
// node, can succeed.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, ErrInvalidResponse) {
		return false
	}
	if IsAccountNotFoundError(err) {
		return false
	}

	msg := strings.ToLower(err.Error())
	return !(strings.Contains(msg, "invalid param") ||
		strings.Contains(msg, "invalid request") ||
		strings.Contains(msg, "unauthorized") ||
		strings.Contains(msg, "forbidden"))
}
