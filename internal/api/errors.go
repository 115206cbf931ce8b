package api

import (
	"fmt"
	"net/http"
)

// ApiError is returned for any non-2xx response. Message holds the response
// body text.
type ApiError struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
	Err        error  `json:"-"`
}

func (e *ApiError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("api error (%d): %s: %s", e.StatusCode, e.Message, e.Err.Error())
	}

	return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
}

func (e *ApiError) Unwrap() error {
	return e.Err
}

func NewApiError(statusCode int, body string) *ApiError {
	if body == "" {
		body = http.StatusText(statusCode)
	}

	return &ApiError{
		StatusCode: statusCode,
		Message:    body,
	}
}
