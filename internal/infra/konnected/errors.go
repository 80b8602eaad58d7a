package konnected

import (
	"errors"
	"fmt"

	"gdo-bridge/internal/domain"
)

var (
	// ErrUnauthorized is returned when the device answers 401. It is never
	// retried.
	ErrUnauthorized = domain.ErrUnauthorized

	// ErrConnectionFailed is returned by Connect once the retry ceiling is
	// exhausted.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrRequestFailed wraps every unexpected HTTP status on a command or query.
	ErrRequestFailed = errors.New("request failed")

	// ErrMalformedMessage marks a push payload that could not be decoded.
	ErrMalformedMessage = errors.New("malformed message")

	// ErrUnmappedOperation is published when a button or switch has no
	// endpoint mapping.
	ErrUnmappedOperation = errors.New("unmapped operation")

	// ErrClosed is returned by a pending Connect whose stream was closed
	// before it opened.
	ErrClosed = errors.New("stream closed")
)

// RequestError describes an unexpected HTTP status.
type RequestError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("%s %s: unexpected status %s", e.Method, e.Path, e.Status)
}

func (e *RequestError) Unwrap() error { return ErrRequestFailed }
