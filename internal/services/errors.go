// Package services implements the orchestration layer over the feed cache:
// initial loads, incremental pagination, category refresh and media file
// retrieval. This file centralizes the service-level error values and types
// so callers can branch on them consistently.
package services

import (
	"errors"
	"fmt"
)

// ErrFeedClosed is returned when more pages are requested for a feed whose
// continuation is exhausted; the feed must be reset (re-fetched) first.
var ErrFeedClosed = errors.New("feed is closed")

// ErrNoRemoteMedia is returned when an item carries no URL for the
// requested media type.
var ErrNoRemoteMedia = errors.New("item has no URL for this media type")

// InternalFeedError reports an application-level error the server embedded
// in an otherwise successful feed payload.
type InternalFeedError struct {
	Message string
}

// Error implements error.
func (e *InternalFeedError) Error() string {
	return fmt.Sprintf("feed request failed: %s", e.Message)
}

// ForbiddenError reports a 403 from the media host. It is distinct from
// generic failures so callers can record forbidden content instead of a
// plain error.
type ForbiddenError struct {
	URL string
}

// Error implements error.
func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("resource %s returned 403", e.URL)
}
