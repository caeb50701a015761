// Package transport builds the HTTP client shared by the fetcher and the
// robots cache.
//
// The client keeps a public-suffix-aware cookie jar, enforces a redirect
// limit and can route every connection through a SOCKS5 proxy.
package transport
