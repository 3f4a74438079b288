package antiforgery

import (
	"errors"
	"fmt"
)

var (
	// ErrNetworkUnavailable indicates the token endpoint could not be
	// reached. The caller may retry, this package does not.
	ErrNetworkUnavailable = errors.New("token endpoint unreachable")

	// ErrMalformedResponse indicates the token endpoint answered without a
	// usable token field.
	ErrMalformedResponse = errors.New("malformed token response")
)

// ServerRejectedError indicates the token endpoint answered the fetch with a
// non-2xx status.
type ServerRejectedError struct {
	Status int
}

func (e *ServerRejectedError) Error() string {
	return fmt.Sprintf("token endpoint rejected fetch: status %d", e.Status)
}
