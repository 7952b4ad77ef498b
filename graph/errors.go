// Package graph is a minimal Microsoft Graph client for uploading file content
// to the signed-in user's OneDrive.
package graph

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for HTTP status code classification.
// Use errors.Is(err, graph.ErrForbidden) to check.
var (
	ErrBadRequest          = errors.New("graph: bad request")
	ErrUnauthorized        = errors.New("graph: unauthorized")
	ErrForbidden           = errors.New("graph: forbidden")
	ErrNotFound            = errors.New("graph: not found")
	ErrConflict            = errors.New("graph: conflict")
	ErrTooLarge            = errors.New("graph: request entity too large")
	ErrThrottled           = errors.New("graph: throttled")
	ErrInsufficientStorage = errors.New("graph: insufficient storage")
	ErrServerError         = errors.New("graph: server error")
	ErrUnexpected          = errors.New("graph: unexpected status")
)

// GraphError is a non-2xx response from Graph. Message holds the raw response body.
type GraphError struct {
	StatusCode int
	RequestID  string
	Message    string
	Err        error // sentinel, for errors.Is()
}

func (e *GraphError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("graph: HTTP %d (request-id: %s): %s", e.StatusCode, e.RequestID, e.Message)
	}

	return fmt.Sprintf("graph: HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

// classifyStatus maps an HTTP status code to a sentinel error.
// Returns nil for 200 and 201, the only responses a simple upload succeeds with.
func classifyStatus(code int) error {
	switch code {
	case http.StatusBadRequest:
		return ErrBadRequest
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusForbidden:
		return ErrForbidden
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusConflict:
		return ErrConflict
	case http.StatusRequestEntityTooLarge:
		return ErrTooLarge
	case http.StatusTooManyRequests:
		return ErrThrottled
	case http.StatusInsufficientStorage:
		return ErrInsufficientStorage
	case http.StatusOK, http.StatusCreated:
		return nil
	default:
		if code >= http.StatusInternalServerError {
			return ErrServerError
		}

		return ErrUnexpected
	}
}
