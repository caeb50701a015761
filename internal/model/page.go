package model

import (
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"

	"golang.org/x/crypto/sha3"
)

// Extraction limits carried over from the content extractor.
const (
	// MaxTextLength is the maximum number of characters of clean text kept
	// in a PageRecord. Filters run against the full text before truncation.
	MaxTextLength = 5000

	// MaxLinksPerKind limits the stored internal and external link lists.
	MaxLinksPerKind = 50

	// MaxImages limits the stored image list.
	MaxImages = 20

	// MaxDescriptionLength limits a description derived from the first paragraph.
	MaxDescriptionLength = 200
)

// PageRecord is the result of a successful fetch, extract and filter pass.
// It is immutable once created and is handed to the storage sink and to the
// checkpoint store's page-seen index.
type PageRecord struct {
	// SessionID is the session that fetched the page.
	SessionID string `json:"session_id"`

	// URL is the normalized URL that was dequeued from the frontier.
	URL string `json:"url"`

	// FinalURL is the URL after following redirects.
	FinalURL string `json:"final_url"`

	// Depth is the frontier depth of URL.
	Depth int `json:"depth"`

	// StatusCode is the HTTP response status code.
	StatusCode int `json:"status_code"`

	// ContentType is the raw Content-Type header value.
	ContentType string `json:"content_type"`

	// ContentLength is the number of decoded body bytes read.
	ContentLength int64 `json:"content_length"`

	// FetchDuration is the wall time of the HTTP exchange.
	FetchDuration time.Duration `json:"fetch_duration"`

	// FetchedAt is when the response was received.
	FetchedAt time.Time `json:"fetched_at"`

	// Links are the normalized absolute URLs discovered on the page.
	Links []string `json:"links"`

	// Metadata is the structured data extracted from the HTML.
	Metadata *PageMetadata `json:"metadata"`

	// PassedFilters reports whether the content filter accepted the page.
	// Records handed to a sink always have this set to true.
	PassedFilters bool `json:"passed_filters"`

	// ContentHash is the hex-encoded SHA3-256 of Body.
	ContentHash string `json:"content_hash"`

	// Body is the decoded response body. It is written by file sinks but
	// never serialized into JSON or the database.
	Body []byte `json:"-"`
}

// PageMetadata holds everything the extractor pulls out of an HTML document.
type PageMetadata struct {
	Title           string              `json:"title"`
	Description     string              `json:"description"`
	Keywords        []string            `json:"keywords,omitempty"`
	Language        string              `json:"language"`
	Author          string              `json:"author"`
	PublicationDate string              `json:"publication_date,omitempty"`
	WordCount       int                 `json:"word_count"`
	ParagraphCount  int                 `json:"paragraph_count"`
	Headings        map[string][]string `json:"heading_structure,omitempty"`

	// Text is the clean text content, truncated to MaxTextLength.
	Text string `json:"text_content"`

	InternalLinks   []Link            `json:"internal_links,omitempty"`
	ExternalLinks   []Link            `json:"external_links,omitempty"`
	Images          []Image           `json:"images,omitempty"`
	SocialLinks     []string          `json:"social_media_links,omitempty"`
	MetaTags        map[string]string `json:"meta_tags,omitempty"`
	StructuredData  []json.RawMessage `json:"structured_data,omitempty"`
	ContentSections map[string]int    `json:"content_sections,omitempty"`
	PageSizeBytes   int               `json:"page_size_bytes"`
}

// Link is an anchor found on a page.
type Link struct {
	URL   string `json:"url"`
	Text  string `json:"text,omitempty"`
	Title string `json:"title,omitempty"`
}

// Image is an <img> element found on a page.
type Image struct {
	URL    string `json:"url"`
	Alt    string `json:"alt,omitempty"`
	Title  string `json:"title,omitempty"`
	Width  string `json:"width,omitempty"`
	Height string `json:"height,omitempty"`
}

// ComputeContentHash returns the hex-encoded SHA3-256 digest of body.
// Empty content produces an empty hash.
func ComputeContentHash(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	sum := sha3.Sum256(body)
	return hex.EncodeToString(sum[:])
}

// Host returns the host component of the record's URL.
func (p *PageRecord) Host() string {
	rest := p.URL
	if i := strings.Index(rest, "://"); i >= 0 {
		rest = rest[i+3:]
	}
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		rest = rest[:i]
	}
	return rest
}

// Title returns the extracted title, or an empty string when no metadata
// is attached.
func (p *PageRecord) Title() string {
	if p.Metadata == nil {
		return ""
	}
	return p.Metadata.Title
}

// IsHTMLContentType reports whether a Content-Type header value denotes an
// HTML document. Parameters such as charset are ignored.
func IsHTMLContentType(contentType string) bool {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	return ct == "text/html" || ct == "application/xhtml+xml"
}
