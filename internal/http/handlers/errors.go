// Package handlers defines HTTP-layer error codes used across all API
// endpoints. The codes are lowercase snake_case and stable: clients branch
// on them for programmatic error handling, while the accompanying message
// stays human-readable.
package handlers

const (
	ErrCodeBadRequest       = "bad_request"
	ErrCodeForbidden        = "forbidden"
	ErrCodeNotFound         = "not_found"
	ErrCodeRateLimited      = "too_many_requests"
	ErrCodeInternal         = "internal_error"
	ErrCodeMethodNotAllowed = "method_not_allowed"

	// Domain-specific:
	ErrCodeFeedClosed     = "feed_closed"
	ErrCodeUpstreamFailed = "upstream_failed"
	ErrCodeMediaFailed    = "media_failed"
)
