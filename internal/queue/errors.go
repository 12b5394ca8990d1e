package queue

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyQueued marks duplicate adds whose URL matches an item still
	// moving through the pipeline.
	ErrAlreadyQueued = errors.New("url already in queue")

	// ErrAlreadyArchived marks duplicate adds whose URL matches an item that
	// finished archiving.
	ErrAlreadyArchived = errors.New("url already archived")

	// ErrNotFound reports a lookup or mutation against an unknown item ID.
	ErrNotFound = errors.New("queue item not found")

	// ErrNotRetryable reports a retry request for an item that is not failed
	// or already has a remote copy.
	ErrNotRetryable = errors.New("item not retryable")
)

// DuplicateError is returned by Add when the URL matches an existing item.
// It unwraps to ErrAlreadyArchived when the match finished archiving and to
// ErrAlreadyQueued otherwise.
type DuplicateError struct {
	URL    string
	Status Status
}

func (e *DuplicateError) Error() string {
	if e.Status == StatusEncoded {
		return fmt.Sprintf("URL '%s' has already been archived.", e.URL)
	}
	return fmt.Sprintf("URL '%s' already exists in the active queue (status: %s).", e.URL, e.Status)
}

func (e *DuplicateError) Unwrap() error {
	if e.Status == StatusEncoded {
		return ErrAlreadyArchived
	}
	return ErrAlreadyQueued
}
