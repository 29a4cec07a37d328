package httpclient

import (
	"errors"
	"net/http"
)

var (
	// ErrLoginRequired is returned when the server rejects the session and
	// does not allow a token refresh. The login flow has been started.
	ErrLoginRequired = errors.New("sign-in required")
	ErrRefreshFailed = errors.New("token refresh failed")
)

type HTTPStatusError struct {
	StatusCode int
	Status     string
	// Message is the text shown to the user for this failure.
	Message string
}

func (e *HTTPStatusError) Error() string {
	if e == nil {
		return "http request failed"
	}
	switch {
	case e.Status != "" && e.Message != "":
		return e.Status + ": " + e.Message
	case e.Status != "":
		return e.Status
	case e.Message != "":
		return e.Message
	}
	return "http request failed"
}

func IsUnauthorized(err error) bool {
	var statusErr *HTTPStatusError
	if !errors.As(err, &statusErr) {
		return errors.Is(err, ErrLoginRequired)
	}
	return statusErr.StatusCode == http.StatusUnauthorized || statusErr.StatusCode == http.StatusForbidden
}

func StatusCode(err error) int {
	var statusErr *HTTPStatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode
	}
	return 0
}
