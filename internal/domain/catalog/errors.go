package catalog

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error kinds recognized at the job boundary. Wrap with errors.Mark and test
// with errors.Is.
var (
	// ErrValidation marks malformed job input, rejected before any I/O.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an expected document or result that is absent.
	ErrNotFound = errors.New("not found")

	// ErrInconsistentState marks a multi-step correction that failed
	// mid-sequence and left partial writes. Requires operator re-run.
	ErrInconsistentState = errors.New("inconsistent state")
)

// APIError is the tagged error payload returned by the external API,
// carrying the upstream status and message. Always propagated, never
// retried internally.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: external api error %d: %s", e.Op, e.Status, e.Message)
}

// IsAPIError reports whether err carries an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
