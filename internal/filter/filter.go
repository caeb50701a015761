package filter

import (
	"net/url"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/language"
)

// Reason explains why a candidate was rejected. Reasons are stable strings
// used as statistics keys.
type Reason string

// URL stage reasons.
const (
	ReasonInvalidURL        Reason = "invalid_url"
	ReasonUnsupportedScheme Reason = "unsupported_scheme"
	ReasonDomainNotAllowed  Reason = "domain_not_allowed"
	ReasonExcludedPattern   Reason = "excluded_pattern"
	ReasonNoIncludePattern  Reason = "no_include_pattern"
	ReasonExcludedExtension Reason = "excluded_extension"
	ReasonNoIncludeExt      Reason = "no_include_extension"
	ReasonDynamicQuery      Reason = "dynamic_query"
)

// Content stage reasons.
const (
	ReasonExcludedKeyword  Reason = "excluded_keyword"
	ReasonMissingKeyword   Reason = "missing_keyword"
	ReasonTooShort         Reason = "too_short"
	ReasonTooLong          Reason = "too_long"
	ReasonMissingTitle     Reason = "missing_title"
	ReasonLanguageMismatch Reason = "language_mismatch"
)

// Verdict is the outcome of a filter stage.
// A rejected candidate always carries a Reason; rejection is not an error.
type Verdict struct {
	Accepted bool
	Reason   Reason
	// Detail names the pattern, keyword or extension that decided the verdict.
	Detail string
}

// accept is the passing verdict.
var accept = Verdict{Accepted: true}

func reject(reason Reason, detail string) Verdict {
	return Verdict{Reason: reason, Detail: detail}
}

// Content is the extracted page data the content stage inspects.
type Content struct {
	Title    string
	Text     string
	Language string
}

// CheckURL runs the URL stage against rawURL. It never performs I/O.
//
// Include lists are satisfied by at least one match and an empty include
// list imposes no constraint. Exclude lists reject on any match. Exclusions
// are checked before inclusions.
func (c *Criteria) CheckURL(rawURL string) Verdict {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return reject(ReasonInvalidURL, rawURL)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme != "http" && scheme != "https" {
		return reject(ReasonUnsupportedScheme, u.Scheme)
	}

	if len(c.AllowedDomains) > 0 {
		host := strings.ToLower(u.Hostname())
		if !slices.ContainsFunc(c.AllowedDomains, func(d string) bool {
			return domainMatches(host, d)
		}) {
			return reject(ReasonDomainNotAllowed, host)
		}
	}

	p := u.Path
	if p == "" {
		p = "/"
	}

	for _, pattern := range c.ExcludePatterns {
		if matchPattern(pattern, p) {
			return reject(ReasonExcludedPattern, pattern)
		}
	}
	if len(c.IncludePatterns) > 0 && !slices.ContainsFunc(c.IncludePatterns, func(pattern string) bool {
		return matchPattern(pattern, p)
	}) {
		return reject(ReasonNoIncludePattern, p)
	}

	lowerPath := strings.ToLower(p)
	for _, ext := range c.ExcludeExtensions {
		if hasExtension(lowerPath, ext) {
			return reject(ReasonExcludedExtension, ext)
		}
	}
	if len(c.IncludeExtensions) > 0 && !slices.ContainsFunc(c.IncludeExtensions, func(ext string) bool {
		return hasExtension(lowerPath, ext)
	}) {
		return reject(ReasonNoIncludeExt, path.Ext(lowerPath))
	}

	if c.SkipDynamicQueries && u.RawQuery != "" {
		q := strings.ToLower(u.RawQuery)
		for _, param := range dynamicQueryParams {
			if strings.Contains(q, param) {
				return reject(ReasonDynamicQuery, param)
			}
		}
	}

	return accept
}

// CheckContent runs the content stage against extracted page data.
//
// Keywords match case-insensitively as substrings of the title and text.
// Length is measured in characters of the extracted text. When languages are
// configured, a page without a detected language is rejected.
func (c *Criteria) CheckContent(content Content) Verdict {
	if c.RequireTitle && strings.TrimSpace(content.Title) == "" {
		return reject(ReasonMissingTitle, "")
	}

	length := utf8.RuneCountInString(content.Text)
	if c.MinLength > 0 && length < c.MinLength {
		return reject(ReasonTooShort, "")
	}
	if c.MaxLength > 0 && length > c.MaxLength {
		return reject(ReasonTooLong, "")
	}

	if len(c.IncludeKeywords) > 0 || len(c.ExcludeKeywords) > 0 {
		haystack := strings.ToLower(content.Title + "\n" + content.Text)
		for _, kw := range c.ExcludeKeywords {
			if kw != "" && strings.Contains(haystack, strings.ToLower(kw)) {
				return reject(ReasonExcludedKeyword, kw)
			}
		}
		if len(c.IncludeKeywords) > 0 && !slices.ContainsFunc(c.IncludeKeywords, func(kw string) bool {
			return kw != "" && strings.Contains(haystack, strings.ToLower(kw))
		}) {
			return reject(ReasonMissingKeyword, "")
		}
	}

	if len(c.Languages) > 0 && !c.languageMatches(content.Language) {
		return reject(ReasonLanguageMismatch, content.Language)
	}

	return accept
}

// languageMatches compares base languages, so "en-US" satisfies "en".
func (c *Criteria) languageMatches(detected string) bool {
	detected = strings.TrimSpace(detected)
	if detected == "" {
		return false
	}
	tag, err := language.Parse(detected)
	if err != nil {
		return false
	}
	base, _ := tag.Base()
	for _, want := range c.Languages {
		wantTag, err := language.Parse(want)
		if err != nil {
			continue
		}
		wantBase, _ := wantTag.Base()
		if base == wantBase {
			return true
		}
	}
	return false
}

// domainMatches reports whether host is d or a subdomain of d.
func domainMatches(host, d string) bool {
	d = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(d), "."))
	return d != "" && (host == d || strings.HasSuffix(host, "."+d))
}

// hasExtension reports whether lowerPath ends with ext. ext may be given
// with or without the leading dot.
func hasExtension(lowerPath, ext string) bool {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext == "" {
		return false
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return strings.HasSuffix(lowerPath, ext)
}

// matchPattern checks if a path matches a glob pattern.
//
//   - "/admin/*" matches "/admin" and everything below it
//   - "*.pdf" matches any path ending in .pdf
//   - other patterns use filepath.Match, and patterns without a slash are
//     also tried against the last path segment
func matchPattern(pattern, p string) bool {
	if prefix, ok := strings.CutSuffix(pattern, "/*"); ok {
		if strings.HasPrefix(p, prefix+"/") || p == prefix {
			return true
		}
	}

	if ext, ok := strings.CutPrefix(pattern, "*"); ok && strings.HasPrefix(ext, ".") && !strings.ContainsAny(ext, "*?[") {
		if strings.HasSuffix(p, ext) {
			return true
		}
	}

	if matched, err := filepath.Match(pattern, p); err == nil && matched {
		return true
	}

	if strings.ContainsAny(pattern, "*?") && !strings.Contains(pattern, "/") {
		if matched, err := filepath.Match(pattern, path.Base(p)); err == nil && matched {
			return true
		}
	}

	return false
}
