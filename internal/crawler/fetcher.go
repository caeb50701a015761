package crawler

import (
	"bytes"
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/sitecrawler/internal/model"
	"github.com/nao1215/sitecrawler/internal/transport"
)

// DefaultMaxBodySize is the response body limit used when none is configured.
const DefaultMaxBodySize = 10 * 1024 * 1024

// FetchError is a classified per-URL failure. It never leaves the worker;
// the engine converts it into a statistics entry.
type FetchError struct {
	// Kind classifies the failure.
	Kind model.ErrorKind

	// URL is the requested URL.
	URL string

	// StatusCode is the HTTP status, when a response was received.
	StatusCode int

	// Err is the underlying error, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err != nil:
		return fmt.Sprintf("%s: %s (status %d): %v", e.Kind, e.URL, e.StatusCode, e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("%s: %s (status %d)", e.Kind, e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.URL)
	}
}

// Unwrap returns the underlying error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Response is a successful HTML fetch.
type Response struct {
	// FinalURL is the URL after redirects.
	FinalURL string

	// StatusCode is the 2xx status code.
	StatusCode int

	// ContentType is the Content-Type header value.
	ContentType string

	// Body is the decoded, UTF-8 body, truncated to the size limit.
	Body []byte

	// Duration is the wall time of the exchange including the body read.
	Duration time.Duration

	// FetchedAt is when the response headers arrived.
	FetchedAt time.Time
}

// Fetcher performs HTTP GET requests for the crawler.
type Fetcher struct {
	// client is the shared HTTP client.
	client *http.Client

	// userAgent is sent with every request.
	userAgent string

	// maxBodySize limits how much of a body is read.
	maxBodySize int64
}

// NewFetcher creates a fetcher. A non-positive maxBodySize selects
// DefaultMaxBodySize.
func NewFetcher(client *http.Client, userAgent string, maxBodySize int64) *Fetcher {
	if maxBodySize <= 0 {
		maxBodySize = DefaultMaxBodySize
	}
	return &Fetcher{client: client, userAgent: userAgent, maxBodySize: maxBodySize}
}

// Fetch downloads rawURL. Non-2xx responses and non-HTML content types are
// returned as *FetchError; so is every transport failure.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Kind: model.ErrorInvalidURL, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	start := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Kind: classifyError(err), URL: rawURL, Err: err}
	}
	defer resp.Body.Close()
	fetchedAt := time.Now()

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	if kind, ok := classifyStatus(resp.StatusCode); !ok {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &FetchError{Kind: kind, URL: rawURL, StatusCode: resp.StatusCode}
	}

	raw, err := f.readBody(resp)
	if err != nil {
		return nil, &FetchError{Kind: classifyError(err), URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(raw)
	}
	if !model.IsHTMLContentType(contentType) {
		return nil, &FetchError{
			Kind:       model.ErrorUnsupportedContentType,
			URL:        rawURL,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("content type %q", contentType),
		}
	}

	body, err := toUTF8(raw, contentType)
	if err != nil {
		return nil, &FetchError{Kind: model.ErrorMalformedHTML, URL: rawURL, StatusCode: resp.StatusCode, Err: err}
	}

	return &Response{
		FinalURL:    finalURL,
		StatusCode:  resp.StatusCode,
		ContentType: contentType,
		Body:        body,
		Duration:    time.Since(start),
		FetchedAt:   fetchedAt,
	}, nil
}

// readBody decodes the Content-Encoding and reads at most maxBodySize bytes.
// Bodies over the limit are truncated, not rejected.
func (f *Fetcher) readBody(resp *http.Response) ([]byte, error) {
	var reader io.Reader = resp.Body

	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}

// toUTF8 converts body to UTF-8 using the charset from contentType or the
// document's meta tags.
func toUTF8(body []byte, contentType string) ([]byte, error) {
	r, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		return nil, fmt.Errorf("charset: %w", err)
	}
	return io.ReadAll(r)
}

// classifyStatus maps an HTTP status to an error kind. It reports true for 2xx.
func classifyStatus(code int) (model.ErrorKind, bool) {
	switch {
	case code >= 200 && code <= 299:
		return "", true
	case code == http.StatusTooManyRequests:
		return model.ErrorRateLimited, false
	case code >= 500:
		return model.ErrorServer, false
	case code >= 400:
		return model.ErrorClient, false
	default:
		return model.ErrorOther, false
	}
}

// classifyError maps a transport error to an error kind.
func classifyError(err error) model.ErrorKind {
	if errors.Is(err, transport.ErrTooManyRedirects) {
		return model.ErrorTooManyRedirects
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return model.ErrorTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return model.ErrorTimeout
	}
	if errors.Is(err, context.Canceled) {
		return model.ErrorOther
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		var invalidHost url.InvalidHostError
		var escapeErr url.EscapeError
		if errors.As(urlErr.Err, &invalidHost) || errors.As(urlErr.Err, &escapeErr) {
			return model.ErrorInvalidURL
		}
		if strings.Contains(urlErr.Err.Error(), "unsupported protocol scheme") {
			return model.ErrorInvalidURL
		}
	}
	if errors.Is(err, gzip.ErrHeader) || errors.Is(err, gzip.ErrChecksum) {
		return model.ErrorMalformedHTML
	}
	return model.ErrorConnection
}
