package openaiservice

import (
	"errors"
	"fmt"
)

var (
	// ErrMissingCredential means no API key is configured. It is returned on
	// every call rather than failing at startup.
	ErrMissingCredential = errors.New("OPENAI_API_KEY is not configured")

	// ErrEmptyResponse means the API answered 200 without any usable choice or image.
	ErrEmptyResponse = errors.New("model API returned no content")

	ErrImageTooLarge = errors.New("downloaded image too large")
)

// APIError is a non-200 answer from the model API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("model API returned status %d: %s", e.StatusCode, e.Body)
}
