package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/kennygrant/sanitize"

	"github.com/nao1215/sitecrawler/internal/model"
)

// maxDuplicateNames bounds the _1, _2, ... suffix search for one file name.
const maxDuplicateNames = 10000

// FileSink writes each accepted page under <dir>/<host>/ as three files
// sharing one stem:
//
//	<stem>.html  the decoded response body
//	<stem>.json  the page record with its extracted data
//	<stem>.meta  a short plain-text summary of the response
//
// The stem is derived from the URL path. When it is already taken, the
// sink appends _1, _2, ... until it finds a free name. FileSink is safe for
// concurrent use.
type FileSink struct {
	dir    string
	logger *slog.Logger
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) FileSinkOption {
	return func(s *FileSink) {
		s.logger = logger
	}
}

// NewFileSink creates dir if needed and returns a sink writing into it.
func NewFileSink(dir string, opts ...FileSinkOption) (*FileSink, error) {
	if dir == "" {
		return nil, ErrNoOutputDir
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	s := &FileSink{
		dir:    dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the output directory.
func (s *FileSink) Dir() string {
	return s.dir
}

// Persist writes the three files of page.
func (s *FileSink) Persist(ctx context.Context, page *model.PageRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	u, err := url.Parse(page.URL)
	if err != nil {
		return fmt.Errorf("failed to parse page url: %w", err)
	}

	hostDir := filepath.Join(s.dir, hostDirName(u.Host))
	if err := os.MkdirAll(hostDir, 0750); err != nil {
		return fmt.Errorf("failed to create host directory: %w", err)
	}

	htmlFile, stem, err := createUnique(hostDir, fileStem(u.Path))
	if err != nil {
		return err
	}
	_, werr := htmlFile.Write(page.Body)
	if cerr := htmlFile.Close(); werr == nil {
		werr = cerr
	}
	if werr != nil {
		return fmt.Errorf("failed to write page body: %w", werr)
	}

	extracted, err := json.MarshalIndent(page, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize page: %w", err)
	}
	if err := os.WriteFile(stem+".json", extracted, 0600); err != nil {
		return fmt.Errorf("failed to write extracted data: %w", err)
	}

	if err := os.WriteFile(stem+".meta", []byte(metaText(page)), 0600); err != nil {
		return fmt.Errorf("failed to write page metadata: %w", err)
	}

	s.logger.Debug("saved page", "url", page.URL, "file", stem+".html")
	return nil
}

// createUnique creates <dir>/<base>.html, or the first free
// <dir>/<base>_N.html, and returns the open file and its path without
// extension. O_EXCL makes the name reservation safe across goroutines.
func createUnique(dir, base string) (*os.File, string, error) {
	for i := range maxDuplicateNames {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d", base, i)
		}
		stem := filepath.Join(dir, name)
		f, err := os.OpenFile(stem+".html", os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
		if err == nil {
			return f, stem, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, "", fmt.Errorf("failed to create page file: %w", err)
		}
	}
	return nil, "", fmt.Errorf("%w: %s", ErrTooManyDuplicates, filepath.Join(dir, base))
}

// hostDirName turns a URL host into a directory name.
func hostDirName(host string) string {
	name := sanitize.Name(host)
	if name == "" || name == "." {
		return "unknown-host"
	}
	return name
}

// fileStem turns a URL path into a file name without extension.
// The site root becomes "index".
func fileStem(p string) string {
	p = strings.Trim(p, "/")
	if p == "" {
		return "index"
	}
	p = strings.TrimSuffix(p, path.Ext(p))

	var parts []string
	for _, segment := range strings.Split(p, "/") {
		if s := strings.Trim(sanitize.BaseName(segment), "-"); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return "page"
	}
	return strings.Join(parts, "_")
}

func metaText(page *model.PageRecord) string {
	var b strings.Builder
	fmt.Fprintf(&b, "URL: %s\n", page.URL)
	if page.FinalURL != "" && page.FinalURL != page.URL {
		fmt.Fprintf(&b, "Final URL: %s\n", page.FinalURL)
	}
	fmt.Fprintf(&b, "Status Code: %d\n", page.StatusCode)
	contentType := page.ContentType
	if contentType == "" {
		contentType = "N/A"
	}
	fmt.Fprintf(&b, "Content-Type: %s\n", contentType)
	fmt.Fprintf(&b, "Content-Length: %d\n", len(page.Body))
	fetched := page.FetchedAt
	if fetched.IsZero() {
		fetched = time.Now()
	}
	fmt.Fprintf(&b, "Downloaded: %s\n", fetched.Format(time.DateTime))
	return b.String()
}
