package extract

import (
	"net/url"
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// LinkKind classifies how a PDF link was discovered
type LinkKind string

const (
	LinkKindCitationMeta LinkKind = "citation_pdf_url" // Highwire/Google Scholar meta tag
	LinkKindEmbedded     LinkKind = "embedded"         // iframe, embed or object source
	LinkKindAnchor       LinkKind = "anchor"           // Plain <a href>
)

// linkRank orders kinds by how reliably they point at the article PDF
var linkRank = map[LinkKind]int{
	LinkKindCitationMeta: 0,
	LinkKindEmbedded:     1,
	LinkKindAnchor:       2,
}

// Link is a candidate PDF location found on a page
type Link struct {
	URL  string   `json:"url"`
	Kind LinkKind `json:"kind"`
	Text string   `json:"text,omitempty"`
}

// FindPDFLinks returns candidate PDF links in the page, most reliable first.
// Relative links are resolved against sourceURL.
func FindPDFLinks(htmlContent, sourceURL string) ([]Link, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, err
	}

	baseURL, err := url.Parse(sourceURL)
	if err != nil {
		return nil, err
	}

	var links []Link
	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "meta":
				if strings.EqualFold(attr(n, "name"), "citation_pdf_url") {
					if u := resolveURL(baseURL, strings.TrimSpace(attr(n, "content"))); u != "" {
						links = append(links, Link{URL: u, Kind: LinkKindCitationMeta})
					}
				}
			case "iframe", "embed":
				if u := resolveURL(baseURL, strings.TrimSpace(attr(n, "src"))); u != "" && looksLikePDF(u) {
					links = append(links, Link{URL: u, Kind: LinkKindEmbedded})
				}
			case "object":
				if u := resolveURL(baseURL, strings.TrimSpace(attr(n, "data"))); u != "" && looksLikePDF(u) {
					links = append(links, Link{URL: u, Kind: LinkKindEmbedded})
				}
			case "a":
				href := strings.TrimSpace(attr(n, "href"))
				if u := resolveURL(baseURL, href); u != "" && looksLikePDF(u) {
					links = append(links, Link{URL: u, Kind: LinkKindAnchor, Text: strings.TrimSpace(visibleText(n))})
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)

	links = dedupeLinks(links)
	sort.SliceStable(links, func(i, j int) bool {
		return linkRank[links[i].Kind] < linkRank[links[j].Kind]
	})
	return links, nil
}

// CitationPDFURL returns the citation_pdf_url meta tag value, or ""
func CitationPDFURL(htmlContent, sourceURL string) string {
	links, err := FindPDFLinks(htmlContent, sourceURL)
	if err != nil {
		return ""
	}
	for _, l := range links {
		if l.Kind == LinkKindCitationMeta {
			return l.URL
		}
	}
	return ""
}

// looksLikePDF reports whether a URL path names a PDF
func looksLikePDF(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.HasSuffix(p, ".pdf") || strings.Contains(p, "/pdf/") || strings.HasSuffix(p, "/pdf") ||
		strings.Contains(strings.ToLower(u.RawQuery), "pdf")
}

// resolveURL resolves a relative URL against a base URL
func resolveURL(base *url.URL, href string) string {
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}

	// Skip javascript: and mailto: links
	if strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "mailto:") {
		return ""
	}

	// Protocol-relative links are common on mirror pages
	if strings.HasPrefix(href, "//") {
		href = base.Scheme + ":" + href
	}

	parsed, err := url.Parse(href)
	if err != nil {
		return ""
	}

	resolved := base.ResolveReference(parsed)

	// Only keep http/https URLs
	if resolved.Scheme != "http" && resolved.Scheme != "https" {
		return ""
	}

	return resolved.String()
}

// dedupeLinks removes duplicate links, keeping the first occurrence
func dedupeLinks(links []Link) []Link {
	seen := make(map[string]bool)
	var unique []Link

	for _, l := range links {
		if !seen[l.URL] {
			seen[l.URL] = true
			unique = append(unique, l)
		}
	}

	return unique
}
