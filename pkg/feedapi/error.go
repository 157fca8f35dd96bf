package feedapi

import (
	"encoding/json"
	"io"
)

// An APIError represents an HTTP error returned by the feed server.
type APIError struct {
	StatusCode int
	Err        struct {
		Tag     string `json:"tag"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseError(r io.Reader, code int) error {
	var apierr APIError
	dec := json.NewDecoder(r)
	if err := dec.Decode(&apierr); err != nil {
		return err
	}
	apierr.StatusCode = code
	return &apierr
}

func (e *APIError) Error() string {
	return e.Err.Message
}

// Tag returns the server-side error tag, empty when none was rendered.
func (e *APIError) Tag() string {
	return e.Err.Tag
}
