package frontier

import "errors"

var (
	// ErrInvalidURL is returned when a URL cannot be parsed or is not an
	// absolute http(s) URL with a host.
	ErrInvalidURL = errors.New("invalid url")
)
