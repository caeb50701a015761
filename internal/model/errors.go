package model

import "errors"

// ErrSnapshotNotFound is returned by checkpoint stores when no snapshot
// exists for a session.
var ErrSnapshotNotFound = errors.New("snapshot not found")

// ErrorKind names a category of per-URL failure or rejection.
// Kinds are stable strings so they can be stored in the database and
// aggregated in reports.
type ErrorKind string

// Fetch and processing error kinds.
const (
	// ErrorTimeout is a request that exceeded its deadline.
	ErrorTimeout ErrorKind = "timeout"

	// ErrorConnection is a DNS, dial, TLS or reset failure.
	ErrorConnection ErrorKind = "connection"

	// ErrorServer is an HTTP 5xx response.
	ErrorServer ErrorKind = "server_error"

	// ErrorRateLimited is an HTTP 429 response.
	ErrorRateLimited ErrorKind = "rate_limited"

	// ErrorClient is an HTTP 4xx response other than 429.
	ErrorClient ErrorKind = "client_error"

	// ErrorUnsupportedContentType is a 2xx response that is not HTML.
	ErrorUnsupportedContentType ErrorKind = "unsupported_content_type"

	// ErrorMalformedHTML is a body the HTML parser could not handle.
	ErrorMalformedHTML ErrorKind = "malformed_html"

	// ErrorTooManyRedirects is a redirect chain over the configured limit.
	ErrorTooManyRedirects ErrorKind = "too_many_redirects"

	// ErrorInvalidURL is a URL that could not be parsed or requested.
	ErrorInvalidURL ErrorKind = "invalid_url"

	// ErrorRobotsDisallowed is a URL blocked by the site's robots policy.
	ErrorRobotsDisallowed ErrorKind = "robots_disallowed"

	// ErrorStorage is a sink write failure.
	ErrorStorage ErrorKind = "storage"

	// ErrorCheckpoint is a checkpoint store write failure.
	ErrorCheckpoint ErrorKind = "checkpoint"

	// ErrorPanic is a recovered panic while processing one URL.
	ErrorPanic ErrorKind = "panic"

	// ErrorOther is anything not covered above.
	ErrorOther ErrorKind = "other"
)

// ErrorClass groups error kinds by how the crawler reacts to them.
type ErrorClass string

const (
	ClassPolicyRejection     ErrorClass = "policy_rejection"
	ClassContentRejection    ErrorClass = "content_rejection"
	ClassTransientFetchError ErrorClass = "transient_fetch_error"
	ClassPermanentFetchError ErrorClass = "permanent_fetch_error"
	ClassStorageFailure      ErrorClass = "storage_failure"
	ClassInternal            ErrorClass = "internal"
)

// Class returns the error class of k. Unknown kinds are internal.
func (k ErrorKind) Class() ErrorClass {
	switch k {
	case ErrorRobotsDisallowed:
		return ClassPolicyRejection
	case ErrorTimeout, ErrorConnection, ErrorServer, ErrorRateLimited:
		return ClassTransientFetchError
	case ErrorClient, ErrorUnsupportedContentType, ErrorMalformedHTML,
		ErrorTooManyRedirects, ErrorInvalidURL:
		return ClassPermanentFetchError
	case ErrorStorage, ErrorCheckpoint:
		return ClassStorageFailure
	default:
		return ClassInternal
	}
}

// IsTransient reports whether the failure may succeed on a later run.
// Transient failures are never retried within the same pass.
func (k ErrorKind) IsTransient() bool {
	return k.Class() == ClassTransientFetchError
}

// String implements fmt.Stringer.
func (k ErrorKind) String() string {
	return string(k)
}
