package transport

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strconv"
	"time"

	"golang.org/x/net/proxy"
	"golang.org/x/net/publicsuffix"
)

// DefaultMaxRedirects is the redirect limit used when Options.MaxRedirects is zero.
const DefaultMaxRedirects = 10

// checkProxyTimeout bounds the SOCKS5 handshake performed by CheckProxy.
const checkProxyTimeout = 2 * time.Second

// Options configures the HTTP client used for page and robots.txt fetches.
type Options struct {
	// Timeout is the overall per-request timeout.
	Timeout time.Duration

	// ProxyAddress is an optional SOCKS5 proxy in "host:port" form.
	ProxyAddress string

	// MaxRedirects limits the redirect chain of one request.
	MaxRedirects int

	// Cookie is a raw cookie string added to every request.
	Cookie string

	// Headers are extra headers added to every request.
	Headers map[string]string
}

// NewHTTPClient builds the crawler's HTTP client.
//
// Cookies are kept in a jar scoped by the public suffix list, so a site
// cannot set cookies for a whole registry domain. Exceeding the redirect
// limit fails the request with ErrTooManyRedirects.
//
// Compression is negotiated by the fetcher itself (it advertises gzip,
// deflate and br), so the transport's transparent gzip is disabled.
func NewHTTPClient(opts Options) (*http.Client, error) {
	maxRedirects := opts.MaxRedirects
	if maxRedirects <= 0 {
		maxRedirects = DefaultMaxRedirects
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
	}

	if opts.ProxyAddress != "" {
		if !isValidProxyAddress(opts.ProxyAddress) {
			return nil, ErrInvalidProxyAddress
		}
		dialer, err := proxy.SOCKS5("tcp", opts.ProxyAddress, nil, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("failed to create SOCKS5 dialer: %w", err)
		}
		transport.Proxy = nil
		if cd, ok := dialer.(proxy.ContextDialer); ok {
			transport.DialContext = cd.DialContext
		} else {
			transport.DialContext = func(_ context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			}
		}
	}

	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	var rt http.RoundTripper = transport
	if opts.Cookie != "" || len(opts.Headers) > 0 {
		rt = &headerInjectingTransport{
			base:    transport,
			cookie:  opts.Cookie,
			headers: opts.Headers,
		}
	}

	return &http.Client{
		Transport: rt,
		Timeout:   opts.Timeout,
		Jar:       jar,
		CheckRedirect: func(_ *http.Request, via []*http.Request) error {
			if len(via) > maxRedirects {
				return ErrTooManyRedirects
			}
			return nil
		},
	}, nil
}

// isValidProxyAddress checks if the address is in valid "host:port" format.
func isValidProxyAddress(address string) bool {
	host, port, err := net.SplitHostPort(address)
	if err != nil || host == "" {
		return false
	}
	n, err := strconv.Atoi(port)
	return err == nil && n >= 1 && n <= 65535
}

// SOCKS5 protocol constants used by CheckProxy.
const (
	socks5Version      = 0x05
	socks5AuthNone     = 0x00
	socks5AuthNoAccept = 0xFF
)

// CheckProxy verifies that address speaks SOCKS5 and accepts
// unauthenticated connections. It performs only the method negotiation.
func CheckProxy(ctx context.Context, address string) error {
	if !isValidProxyAddress(address) {
		return ErrInvalidProxyAddress
	}

	ctx, cancel := context.WithTimeout(ctx, checkProxyTimeout)
	defer cancel()

	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(checkProxyTimeout)); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
	}
	if _, err := conn.Write([]byte{socks5Version, 0x01, socks5AuthNone}); err != nil {
		return fmt.Errorf("%w: %w", ErrProxyUnreachable, err)
	}

	resp := make([]byte, 2)
	if _, err := io.ReadFull(conn, resp); err != nil {
		return fmt.Errorf("%w: %w", ErrNotSOCKS5, err)
	}
	if resp[0] != socks5Version || resp[1] == socks5AuthNoAccept || resp[1] != socks5AuthNone {
		return ErrNotSOCKS5
	}
	return nil
}

// headerInjectingTransport adds a cookie and custom headers to every
// request, including redirects.
type headerInjectingTransport struct {
	base    http.RoundTripper
	cookie  string
	headers map[string]string
}

// RoundTrip implements http.RoundTripper.
func (t *headerInjectingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())

	if t.cookie != "" {
		if existing := clone.Header.Get("Cookie"); existing != "" {
			clone.Header.Set("Cookie", existing+"; "+t.cookie)
		} else {
			clone.Header.Set("Cookie", t.cookie)
		}
	}
	for key, value := range t.headers {
		clone.Header.Set(key, value)
	}

	return t.base.RoundTrip(clone)
}
