// Package web implements the network-facing read-only tools: web_search,
// read_url, and browse_interactive.
package web

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"
)

// maxFetchBytes bounds how much of a page is downloaded.
const maxFetchBytes = 2 << 20

// Extractor fetches pages and reduces them to readable text.
type Extractor struct {
	client        *http.Client
	skipSSRFCheck bool
}

// NewExtractor creates an Extractor with a 15s HTTP timeout.
func NewExtractor() *Extractor {
	return &Extractor{client: &http.Client{Timeout: 15 * time.Second}}
}

// NewExtractorForTesting allows localhost URLs; tests only.
func NewExtractorForTesting() *Extractor {
	e := NewExtractor()
	e.skipSSRFCheck = true
	return e
}

// Page is a fetched document reduced to its readable parts.
type Page struct {
	URL   string
	Title string
	Text  string
	Links []Link
}

// Link is one hyperlink found on a fetched page.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Fetch downloads a page and extracts title, text, and links.
func (e *Extractor) Fetch(ctx context.Context, rawURL string) (*Page, error) {
	if !e.skipSSRFCheck {
		if err := validateURL(rawURL); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", "quasar/1.0 (+developer assistant)")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain,*/*")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, fmt.Errorf("fetch %s: status %d", rawURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	html := string(body)
	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/plain") {
		return &Page{URL: rawURL, Text: cleanText(html)}, nil
	}

	return &Page{
		URL:   rawURL,
		Title: extractTitle(html),
		Text:  extractText(html),
		Links: extractLinks(html, rawURL),
	}, nil
}

// validateURL refuses non-http schemes and private or reserved hosts so
// the model cannot probe internal networks.
func validateURL(rawURL string) error {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", parsed.Scheme)
	}
	hostname := parsed.Hostname()
	if hostname == "" {
		return fmt.Errorf("URL must have a hostname")
	}
	if ip := net.ParseIP(hostname); ip != nil && isPrivateOrReserved(ip) {
		return fmt.Errorf("refusing to fetch private or reserved address %s", hostname)
	}
	addrs, err := net.LookupIP(hostname)
	if err != nil {
		return fmt.Errorf("resolve %s: %w", hostname, err)
	}
	for _, ip := range addrs {
		if isPrivateOrReserved(ip) {
			return fmt.Errorf("refusing to fetch %s: resolves to private or reserved address", hostname)
		}
	}
	return nil
}

func isPrivateOrReserved(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified() || ip.IsMulticast()
}

var (
	titleRe  = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	scriptRe = regexp.MustCompile(`(?is)<script[^>]*>.*?</script>|<style[^>]*>.*?</style>|<noscript[^>]*>.*?</noscript>|<svg[^>]*>.*?</svg>|<head[^>]*>.*?</head>`)
	tagRe    = regexp.MustCompile(`(?s)<[^>]*>`)
	anchorRe = regexp.MustCompile(`(?is)<a\s[^>]*href=["']([^"'#][^"']*)["'][^>]*>(.*?)</a>`)
	spaceRe  = regexp.MustCompile(`[ \t]+`)
	blankRe  = regexp.MustCompile(`\n{3,}`)
)

func extractTitle(html string) string {
	m := titleRe.FindStringSubmatch(html)
	if m == nil {
		return ""
	}
	return cleanText(m[1])
}

func extractText(html string) string {
	stripped := scriptRe.ReplaceAllString(html, " ")
	stripped = tagRe.ReplaceAllString(stripped, " ")
	return cleanText(decodeEntities(stripped))
}

func extractLinks(html, base string) []Link {
	baseURL, err := url.Parse(base)
	if err != nil {
		baseURL = nil
	}
	var links []Link
	seen := map[string]bool{}
	for _, m := range anchorRe.FindAllStringSubmatch(html, 50) {
		href := m[1]
		text := cleanText(tagRe.ReplaceAllString(m[2], " "))
		if text == "" {
			continue
		}
		if baseURL != nil {
			if ref, err := url.Parse(href); err == nil {
				href = baseURL.ResolveReference(ref).String()
			}
		}
		if seen[href] {
			continue
		}
		seen[href] = true
		links = append(links, Link{Text: text, URL: href})
	}
	return links
}

func decodeEntities(s string) string {
	replacer := strings.NewReplacer(
		"&amp;", "&", "&lt;", "<", "&gt;", ">", "&quot;", `"`,
		"&#39;", "'", "&apos;", "'", "&nbsp;", " ",
	)
	return replacer.Replace(s)
}

func cleanText(s string) string {
	s = spaceRe.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = blankRe.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
