package transport

import "errors"

var (
	// ErrInvalidProxyAddress is returned when the proxy address is not "host:port".
	ErrInvalidProxyAddress = errors.New("invalid proxy address format: expected host:port")

	// ErrProxyUnreachable is returned when no TCP connection to the proxy
	// can be established.
	ErrProxyUnreachable = errors.New("cannot connect to proxy")

	// ErrNotSOCKS5 is returned when the proxy answers but does not speak
	// unauthenticated SOCKS5.
	ErrNotSOCKS5 = errors.New("proxy is not an unauthenticated SOCKS5 proxy")

	// ErrTooManyRedirects is returned by the client when a redirect chain
	// exceeds the configured limit.
	ErrTooManyRedirects = errors.New("too many redirects")
)
