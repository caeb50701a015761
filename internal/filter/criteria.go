package filter

import "slices"

// Criteria holds every filter setting of a session.
// A Criteria is built once at crawl start and must not be mutated afterwards;
// it is safe for concurrent use by all workers.
type Criteria struct {
	// AllowedDomains restricts crawling to these hosts and their subdomains.
	// Empty means any host.
	AllowedDomains []string `json:"allowed_domains,omitempty" yaml:"allowed_domains,omitempty"`

	// IncludePatterns are URL path globs of which at least one must match.
	IncludePatterns []string `json:"include_patterns,omitempty" yaml:"include_patterns,omitempty"`

	// ExcludePatterns are URL path globs that reject on any match.
	ExcludePatterns []string `json:"exclude_patterns,omitempty" yaml:"exclude_patterns,omitempty"`

	// IncludeExtensions, when set, limits URLs to these path extensions.
	IncludeExtensions []string `json:"include_extensions,omitempty" yaml:"include_extensions,omitempty"`

	// ExcludeExtensions rejects URLs whose path ends with any of these.
	ExcludeExtensions []string `json:"exclude_extensions,omitempty" yaml:"exclude_extensions,omitempty"`

	// SkipDynamicQueries rejects URLs whose query string mentions a
	// search, paging or API parameter.
	SkipDynamicQueries bool `json:"skip_dynamic_queries,omitempty" yaml:"skip_dynamic_queries,omitempty"`

	// IncludeKeywords are terms of which at least one must appear in the page.
	IncludeKeywords []string `json:"include_keywords,omitempty" yaml:"include_keywords,omitempty"`

	// ExcludeKeywords are terms that reject a page on any occurrence.
	ExcludeKeywords []string `json:"exclude_keywords,omitempty" yaml:"exclude_keywords,omitempty"`

	// MinLength is the minimum text length in characters. Zero disables it.
	MinLength int `json:"min_length,omitempty" yaml:"min_content_length,omitempty"`

	// MaxLength is the maximum text length in characters. Zero disables it.
	MaxLength int `json:"max_length,omitempty" yaml:"max_content_length,omitempty"`

	// RequireTitle rejects pages without a title.
	RequireTitle bool `json:"require_title,omitempty" yaml:"require_title,omitempty"`

	// Languages, when set, limits pages to these languages (BCP 47 tags,
	// compared by base language).
	Languages []string `json:"languages,omitempty" yaml:"languages,omitempty"`
}

// DefaultExcludeExtensions lists media, document, archive and asset
// extensions that never contain crawlable HTML.
var DefaultExcludeExtensions = []string{
	// media
	".jpg", ".jpeg", ".png", ".gif", ".bmp", ".svg", ".webp",
	".mp3", ".mp4", ".avi", ".mov", ".wmv", ".flv", ".mkv",
	".wav", ".flac", ".ogg", ".m4a", ".aac",
	// documents
	".pdf", ".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".rtf", ".odt", ".ods", ".odp",
	// archives
	".zip", ".rar", ".tar", ".gz", ".7z", ".bz2", ".xz",
	// code and data
	".css", ".js", ".json", ".xml", ".ico", ".woff", ".woff2",
	".ttf", ".eot", ".map",
}

// dynamicQueryParams are query fragments that mark search or API URLs.
var dynamicQueryParams = []string{
	"search", "q", "query", "id", "page", "offset", "limit",
	"sort", "filter", "ajax", "json", "xml", "api",
}

// Clone returns a deep copy of c. Callers that need to derive a modified
// Criteria from a shared one must clone first.
func (c Criteria) Clone() Criteria {
	out := c
	out.AllowedDomains = slices.Clone(c.AllowedDomains)
	out.IncludePatterns = slices.Clone(c.IncludePatterns)
	out.ExcludePatterns = slices.Clone(c.ExcludePatterns)
	out.IncludeExtensions = slices.Clone(c.IncludeExtensions)
	out.ExcludeExtensions = slices.Clone(c.ExcludeExtensions)
	out.IncludeKeywords = slices.Clone(c.IncludeKeywords)
	out.ExcludeKeywords = slices.Clone(c.ExcludeKeywords)
	out.Languages = slices.Clone(c.Languages)
	return out
}

// HasContentRules reports whether the content stage can reject anything.
func (c *Criteria) HasContentRules() bool {
	return len(c.IncludeKeywords) > 0 || len(c.ExcludeKeywords) > 0 ||
		c.MinLength > 0 || c.MaxLength > 0 || c.RequireTitle || len(c.Languages) > 0
}
