package services

import (
	"errors"
	"strings"
)

var (
	// ErrConfiguration marks failures caused by missing or invalid operator
	// configuration, like an absent API key or download directory.
	ErrConfiguration = errors.New("configuration error")
	// ErrValidation marks failures caused by an item that is not in a usable
	// state for the requested operation.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks lookups that produced no result.
	ErrNotFound = errors.New("not found")
	// ErrExternalTool marks subprocess failures (spawn errors, non-zero exits).
	ErrExternalTool = errors.New("external tool error")
	// ErrProvider marks errors reported by a remote hosting provider's API.
	ErrProvider = errors.New("provider error")
	// ErrTransient marks I/O and network failures that a manual retry may clear.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above. The message argument is the
// user-facing text Detail recovers for queue item messages.
func Wrap(marker error, component, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &wrappedError{
		marker:  marker,
		detail:  buildDetail(component, operation, message),
		message: strings.TrimSpace(message),
		cause:   err,
	}
}

// Detail recovers the human-readable text a failed operation should surface in
// a queue item's message column: the message recorded by Wrap plus the cause
// chain, without the classification marker. Errors not produced by Wrap
// return their own text.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	var w *wrappedError
	if !errors.As(err, &w) {
		return err.Error()
	}
	text := w.message
	if text == "" {
		text = w.detail
	}
	if w.cause != nil {
		if text == "" {
			return w.cause.Error()
		}
		return text + ": " + w.cause.Error()
	}
	return text
}

type wrappedError struct {
	marker  error
	detail  string
	message string
	cause   error
}

func (e *wrappedError) Error() string {
	if e.cause != nil {
		return e.marker.Error() + ": " + e.detail + ": " + e.cause.Error()
	}
	return e.marker.Error() + ": " + e.detail
}

func (e *wrappedError) Unwrap() []error {
	if e.cause != nil {
		return []error{e.marker, e.cause}
	}
	return []error{e.marker}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
