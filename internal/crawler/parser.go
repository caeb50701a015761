package crawler

import (
	"encoding/json"
	"io"
	"net/url"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/nao1215/sitecrawler/internal/frontier"
	"github.com/nao1215/sitecrawler/internal/model"
)

// socialDomains are hosts whose links are reported as social media links.
var socialDomains = []string{
	"facebook.com", "twitter.com", "x.com", "linkedin.com",
	"instagram.com", "youtube.com", "github.com",
}

// contentSectionSelectors maps a section name to the selectors that count
// towards it.
var contentSectionSelectors = map[string][]string{
	"article":    {"article", ".article", ".post", ".content", ".main-content"},
	"navigation": {"nav", ".nav", ".navigation", ".menu"},
	"sidebar":    {".sidebar", ".aside", "aside"},
	"footer":     {"footer", ".footer"},
	"header":     {"header", ".header"},
}

// authorSelectors are tried in order when no author meta tag exists.
var authorSelectors = []string{".author", ".byline", `[rel="author"]`, ".writer"}

// dateSelectors are tried in order to find a publication date.
var dateSelectors = []string{
	`meta[property="article:published_time"]`,
	`meta[name="date"]`,
	`meta[name="publish-date"]`,
	"time[datetime]",
	".date",
	".publish-date",
}

// Parser extracts links and metadata from an HTML document.
// The DOM is built with golang.org/x/net/html and queried through goquery.
type Parser struct {
	// baseURL is the URL of the page being parsed, used for resolving relative URLs.
	baseURL *url.URL
}

// ParseResult contains everything extracted from one page.
type ParseResult struct {
	// Metadata is the structured page data. Its Text is truncated.
	Metadata *model.PageMetadata

	// Links are the distinct normalized absolute http(s) URLs of all anchors,
	// in document order.
	Links []string

	// FullText is the clean text before truncation. Content filters
	// run against it.
	FullText string
}

// NewParser creates a parser that resolves relative links against baseURL.
func NewParser(baseURL string) (*Parser, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Parser{baseURL: u}, nil
}

// Parse reads an HTML document and extracts its links and metadata.
// content must be UTF-8.
func (p *Parser) Parse(content io.Reader) (*ParseResult, error) {
	root, err := html.Parse(content)
	if err != nil {
		return nil, err
	}
	doc := goquery.NewDocumentFromNode(root)

	meta := &model.PageMetadata{
		Headings:        make(map[string][]string),
		MetaTags:        make(map[string]string),
		ContentSections: make(map[string]int),
	}

	meta.Title = collapse(doc.Find("title").First().Text())
	if meta.Title == "" {
		meta.Title = collapse(doc.Find("h1").First().Text())
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		name := s.AttrOr("name", "")
		if name == "" {
			name = s.AttrOr("property", "")
		}
		if c := s.AttrOr("content", ""); name != "" && c != "" {
			meta.MetaTags[name] = c
		}
	})

	meta.Description = p.description(doc, meta.MetaTags)
	if kw := meta.MetaTags["keywords"]; kw != "" {
		for k := range strings.SplitSeq(kw, ",") {
			if k = strings.TrimSpace(k); k != "" {
				meta.Keywords = append(meta.Keywords, k)
			}
		}
	}
	meta.Language = strings.TrimSpace(doc.Find("html").First().AttrOr("lang", ""))
	meta.Author = author(doc, meta.MetaTags)
	meta.PublicationDate = publicationDate(doc)
	meta.ParagraphCount = doc.Find("p").Length()

	for _, level := range []string{"h1", "h2", "h3", "h4", "h5", "h6"} {
		doc.Find(level).Each(func(_ int, s *goquery.Selection) {
			meta.Headings[level] = append(meta.Headings[level], collapse(s.Text()))
		})
	}

	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if json.Valid([]byte(raw)) {
			meta.StructuredData = append(meta.StructuredData, json.RawMessage(raw))
		}
	})

	for section, selectors := range contentSectionSelectors {
		n := 0
		for _, sel := range selectors {
			n += doc.Find(sel).Length()
		}
		meta.ContentSections[section] = n
	}

	links := p.extractLinks(doc, meta)
	p.extractImages(doc, meta)

	// Text extraction mutates the tree, so it runs last.
	doc.Find("script, style, noscript, template").Remove()
	meta.WordCount = len(strings.Fields(nodeText(doc.Find("body"))))

	doc.Find("nav, footer").Remove()
	region := doc.Find("main").First()
	if region.Length() == 0 {
		region = doc.Find("article").First()
	}
	if region.Length() == 0 {
		region = doc.Find("#content, .content").First()
	}
	if region.Length() == 0 {
		region = doc.Find("body").First()
	}
	fullText := collapse(nodeText(region))
	meta.Text = truncateRunes(fullText, model.MaxTextLength)

	return &ParseResult{
		Metadata: meta,
		Links:    links,
		FullText: fullText,
	}, nil
}

// description prefers the meta description, then og:description, then the
// first paragraph.
func (p *Parser) description(doc *goquery.Document, tags map[string]string) string {
	if d := strings.TrimSpace(tags["description"]); d != "" {
		return d
	}
	if d := strings.TrimSpace(tags["og:description"]); d != "" {
		return d
	}
	text := collapse(doc.Find("p").First().Text())
	if utf8.RuneCountInString(text) > model.MaxDescriptionLength {
		return truncateRunes(text, model.MaxDescriptionLength)
	}
	return text
}

// extractLinks collects crawlable links and the internal/external link lists.
func (p *Parser) extractLinks(doc *goquery.Document, meta *model.PageMetadata) []string {
	seen := make(map[string]struct{})
	social := make(map[string]struct{})
	var links []string

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if skipHref(href) {
			return
		}
		resolved, err := frontier.Resolve(p.baseURL, href)
		if err != nil {
			return
		}

		if isSocialLink(resolved) {
			if _, ok := social[resolved]; !ok {
				social[resolved] = struct{}{}
				meta.SocialLinks = append(meta.SocialLinks, resolved)
			}
		}

		link := model.Link{URL: resolved, Text: collapse(s.Text()), Title: s.AttrOr("title", "")}
		if strings.EqualFold(frontier.Host(resolved), p.baseURL.Host) {
			if len(meta.InternalLinks) < model.MaxLinksPerKind {
				meta.InternalLinks = append(meta.InternalLinks, link)
			}
		} else if len(meta.ExternalLinks) < model.MaxLinksPerKind {
			meta.ExternalLinks = append(meta.ExternalLinks, link)
		}

		if _, ok := seen[resolved]; ok {
			return
		}
		seen[resolved] = struct{}{}
		links = append(links, resolved)
	})
	return links
}

// extractImages collects up to model.MaxImages images.
func (p *Parser) extractImages(doc *goquery.Document, meta *model.PageMetadata) {
	doc.Find("img[src]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if len(meta.Images) >= model.MaxImages {
			return false
		}
		src, err := url.Parse(strings.TrimSpace(s.AttrOr("src", "")))
		if err != nil {
			return true
		}
		meta.Images = append(meta.Images, model.Image{
			URL:    p.baseURL.ResolveReference(src).String(),
			Alt:    s.AttrOr("alt", ""),
			Title:  s.AttrOr("title", ""),
			Width:  s.AttrOr("width", ""),
			Height: s.AttrOr("height", ""),
		})
		return true
	})
}

func author(doc *goquery.Document, tags map[string]string) string {
	if a := strings.TrimSpace(tags["author"]); a != "" {
		return a
	}
	for _, sel := range authorSelectors {
		if s := doc.Find(sel).First(); s.Length() > 0 {
			if a := collapse(s.Text()); a != "" {
				return a
			}
		}
	}
	return ""
}

func publicationDate(doc *goquery.Document) string {
	for _, sel := range dateSelectors {
		s := doc.Find(sel).First()
		if s.Length() == 0 {
			continue
		}
		for _, v := range []string{s.AttrOr("content", ""), s.AttrOr("datetime", ""), s.Text()} {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

// skipHref reports whether an href can never lead to a crawlable page.
func skipHref(href string) bool {
	if href == "" || strings.HasPrefix(href, "#") {
		return true
	}
	lower := strings.ToLower(href)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return true
		}
	}
	return false
}

func isSocialLink(link string) bool {
	host := strings.ToLower(frontier.Host(link))
	for _, d := range socialDomains {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}

// nodeText concatenates the text nodes under sel, separated by spaces.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}

// collapse trims s and replaces whitespace runs with a single space.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncateRunes shortens s to at most n characters, marking the cut with "...".
func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
