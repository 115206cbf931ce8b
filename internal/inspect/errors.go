package inspect

import (
	"net/http"
	"strings"

	"github.com/npezzotti/go-chatsync/internal/api"
)

func lower(s string) string {
	return strings.ToLower(s)
}

func NewInternalServerError(err error) *api.ApiError {
	return &api.ApiError{
		StatusCode: http.StatusInternalServerError,
		Message:    lower(http.StatusText(http.StatusInternalServerError)),
		Err:        err,
	}
}

func NewServiceUnavailableError(err error) *api.ApiError {
	return &api.ApiError{
		StatusCode: http.StatusServiceUnavailable,
		Message:    lower(http.StatusText(http.StatusServiceUnavailable)),
		Err:        err,
	}
}
