package apierror

import "net/http"

// Well-known error tags surfaced by the feed API.
const (
	// TagUnknownColumn reports a payload field the store schema does not
	// carry. Clients react to it by retrying with a reduced field set.
	TagUnknownColumn = "unknown-column"
	// TagMissingField reports a required field absent from the payload.
	TagMissingField = "missing-field"
	// TagNotFound reports a row that does not exist.
	TagNotFound = "not-found"
)

type (
	// An Error represents the error format rendered by the feed API.
	Error struct {
		HTTPCode   int `json:"-"`
		FieldError err `json:"error"`
	}

	err struct {
		Tag     string `json:"tag,omitempty"`
		Message string `json:"message"`
	}
)

// StatusCode returns the HTTP status code.
func StatusCode(err error) int {
	if apierr, ok := err.(*Error); ok && apierr.HTTPCode > 0 {
		return apierr.HTTPCode
	}
	return http.StatusInternalServerError
}

// Tag returns the error tag, or an empty string for foreign errors.
func Tag(err error) string {
	if apierr, ok := err.(*Error); ok {
		return apierr.FieldError.Tag
	}
	return ""
}

// New returns a new Error with the given message.
func New(message string) *Error {
	return &Error{FieldError: err{Message: message}}
}

// NewWithTagCode returns a new Error with the given code, tag and message.
func NewWithTagCode(code int, tag, message string) *Error {
	return &Error{HTTPCode: code, FieldError: err{Tag: tag, Message: message}}
}

// Error implements error interface.
func (e *Error) Error() string {
	return e.FieldError.Message
}
