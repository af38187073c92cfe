package api

import (
	"fmt"
)

// ErrorCode is a machine readable error class sent next to the message.
type ErrorCode string

const (
	ErrCodeNotFound      ErrorCode = "not_found"
	ErrCodeInvalid       ErrorCode = "invalid"
	ErrCodeConflict      ErrorCode = "conflict"
	ErrCodeUnsatisfiable ErrorCode = "unsatisfiable"
	ErrCodeGeneral       ErrorCode = "general"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Message string    `json:"error"`
	Code    ErrorCode `json:"code,omitempty"`
}

func (e ErrorResponse) Error() string {
	return e.Message
}

// StatusError is an error with an HTTP status code and message,
// it is parsed on the client-side and not returned from the API
type StatusError struct {
	StatusCode   int       // e.g. 200
	Status       string    // e.g. "200 OK"
	ErrorMessage string    `json:"error"`
	Code         ErrorCode `json:"code,omitempty"`
}

func (e StatusError) Error() string {
	switch {
	case e.Status != "" && e.ErrorMessage != "":
		return fmt.Sprintf("%s: %s", e.Status, e.ErrorMessage)
	case e.Status != "":
		return e.Status
	case e.ErrorMessage != "":
		return e.ErrorMessage
	default:
		// this should not happen
		return "something went wrong, please see the aici server logs for details"
	}
}
