package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-resty/resty/v2"
)

// APIError is a non-2xx response from the server
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Reason     string `json:"error"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Reason
	}
	if e.Code != "" {
		return fmt.Sprintf("[%d] %s: %s", e.StatusCode, e.Code, msg)
	}
	return fmt.Sprintf("[%d] %s", e.StatusCode, msg)
}

// parseError builds an APIError from a response body. The body is either the
// server's structured error or plain text from something in front of it.
func parseError(status int, body []byte) error {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || (apiErr.Message == "" && apiErr.Reason == "") {
		apiErr = &APIError{Message: http.StatusText(status)}
		if len(body) > 0 && len(body) < 512 {
			apiErr.Message = string(body)
		}
	}
	apiErr.StatusCode = status
	return apiErr
}

func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return err
	}
	if !resp.IsSuccess() {
		return parseError(resp.StatusCode(), resp.Body())
	}
	return nil
}

func statusIs(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// IsUnauthorized reports a missing token
func IsUnauthorized(err error) bool { return statusIs(err, http.StatusUnauthorized) }

// IsForbidden reports a rejected token or another user's resource
func IsForbidden(err error) bool { return statusIs(err, http.StatusForbidden) }

// IsNotFound reports a missing resource
func IsNotFound(err error) bool { return statusIs(err, http.StatusNotFound) }

// IsRateLimited reports a 429
func IsRateLimited(err error) bool { return statusIs(err, http.StatusTooManyRequests) }
