package frontier

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// Normalize returns the canonical form of rawURL used for deduplication.
//
// The scheme and host are lowercased, the fragment is removed, dot segments
// are resolved, default ports (:80 for http, :443 for https) are dropped and
// an empty path becomes "/". Only http and https URLs are accepted.
func Normalize(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	return normalizeURL(u)
}

// Resolve resolves ref against base and normalizes the result.
// It is used for links found on a page.
func Resolve(base *url.URL, ref string) (string, error) {
	r, err := url.Parse(strings.TrimSpace(ref))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidURL, err)
	}
	if base != nil {
		r = base.ResolveReference(r)
	}
	return normalizeURL(r)
}

func normalizeURL(u *url.URL) (string, error) {
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", fmt.Errorf("%w: missing host", ErrInvalidURL)
	}

	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		host += ":" + port
	}

	out := &url.URL{
		Scheme:   scheme,
		User:     u.User,
		Host:     host,
		Path:     cleanPath(u.Path),
		RawQuery: u.RawQuery,
	}
	return out.String(), nil
}

// cleanPath resolves dot segments while keeping a trailing slash, which is
// significant to most servers.
func cleanPath(p string) string {
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	cleaned := path.Clean(p)
	if cleaned != "/" && (strings.HasSuffix(p, "/") || strings.HasSuffix(p, "/.") || strings.HasSuffix(p, "/..")) {
		cleaned += "/"
	}
	return cleaned
}

// Host returns the lowercased host (with non-default port) of a normalized URL.
func Host(normalized string) string {
	u, err := url.Parse(normalized)
	if err != nil {
		return ""
	}
	return u.Host
}
