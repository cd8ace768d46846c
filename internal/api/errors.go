package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"whispr/internal/models"
)

// RemoteError is a non-2xx response from the backend.
type RemoteError struct {
	Operation string
	Status    int
	// Message is the response body text, or a generic status message
	// when the body was empty.
	Message string
}

func (e *RemoteError) Error() string {
	return e.Message
}

// Reason extracts a human readable message from a JSON error body of the
// form {"error": "..."} or {"message": "..."}, falling back to Message.
func (e *RemoteError) Reason() string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(e.Message), &body); err == nil {
		if body.Error != "" {
			return body.Error
		}
		if body.Message != "" {
			return body.Message
		}
	}
	return e.Message
}

// NotFound reports whether the backend answered 404.
func (e *RemoteError) NotFound() bool { return e.Status == http.StatusNotFound }

// Unauthorized reports whether the backend rejected the credential.
func (e *RemoteError) Unauthorized() bool {
	return e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden
}

func newRemoteError(op string, status int, body []byte) *RemoteError {
	msg := string(body)
	if strings.TrimSpace(msg) == "" {
		msg = fmt.Sprintf("HTTP error! status: %d", status)
	}
	return &RemoteError{Operation: op, Status: status, Message: msg}
}

// DecodeError is a 2xx response whose body did not parse or failed the
// schema check.
type DecodeError struct {
	Operation string
	Err       error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: malformed response: %v", e.Operation, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AsRemote returns the RemoteError in err's chain, if any.
func AsRemote(err error) (*RemoteError, bool) {
	var re *RemoteError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	re, ok := AsRemote(err)
	return ok && re.NotFound()
}

// IsDecode reports whether err is a decode failure at the client edge or
// any other decode-class AppError.
func IsDecode(err error) bool {
	var de *DecodeError
	return errors.As(err, &de) || models.IsDecode(err)
}

// Message returns the text to show a user for err.
func Message(err error) string {
	if re, ok := AsRemote(err); ok {
		return re.Reason()
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
