package generate

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrBlocked means the model stopped without producing text.
	ErrBlocked = errors.New("generation blocked")

	// ErrEmpty means the response held no candidate text.
	ErrEmpty = errors.New("no generated text in response")

	// ErrMalformed means the generated text is not the JSON that was asked for.
	ErrMalformed = errors.New("malformed generated JSON")
)

// APIError is an error status returned by the generation endpoint.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error (HTTP %d): %s", e.Status, e.Message)
}

// InvalidKey reports whether the upstream rejected the API key.
func (e *APIError) InvalidKey() bool {
	return strings.Contains(e.Message, "API key not valid")
}

// Temporary reports whether retrying later may succeed.
func (e *APIError) Temporary() bool {
	return e.Status == 429 || e.Status >= 500
}
