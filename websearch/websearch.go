// Package websearch queries the DuckDuckGo HTML endpoint, which needs
// no API key, and parses result blocks out of the returned page.
package websearch

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
)

// Search defaults
const (
	DefaultEndpoint   = "https://html.duckduckgo.com/html/"
	DefaultTimeout    = 10 * time.Second
	DefaultMaxResults = 5
	MaxResults        = 10
)

// The endpoint serves a captcha page to clients without a browser agent
const userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Result is a single web search hit
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet"`
}

// Response is a complete web search answer
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

// Options configure the search client
type Options struct {
	Endpoint   string
	Timeout    time.Duration
	MaxResults int
}

// Client performs web searches. Safe for concurrent use.
type Client struct {
	endpoint   string
	maxResults int
	http       *http.Client
}

// New creates a search client, applying defaults to unset options
func New(options Options) *Client {
	if options.Endpoint == "" {
		options.Endpoint = DefaultEndpoint
	}
	if options.Timeout <= 0 {
		options.Timeout = DefaultTimeout
	}
	if options.MaxResults <= 0 {
		options.MaxResults = DefaultMaxResults
	}
	return &Client{
		endpoint:   options.Endpoint,
		maxResults: options.MaxResults,
		http:       &http.Client{Timeout: options.Timeout},
	}
}

// Search runs one query. maxResults 0 means the configured default and
// anything above 10 is clamped.
func (c *Client) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Validation("search query is required")
	}
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	if maxResults > MaxResults {
		maxResults = MaxResults
	}

	form := url.Values{"q": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return nil, errs.WebSearch(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", userAgent)

	res, err := c.http.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, errs.WebSearch(fmt.Errorf("request timed out after %s", c.http.Timeout))
		}
		return nil, errs.WebSearch(err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return nil, errs.WebSearch(fmt.Errorf("search endpoint returned status %d", res.StatusCode))
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errs.WebSearch(err)
	}

	results := parseResults(string(body), maxResults)
	log.Trace("[WebSearch] %q: %d results", truncate(query, 50), len(results))
	return &Response{Query: query, Results: results}, nil
}

// Each hit on the page is a block opening with class="result ".
// Plain string scanning is enough here, no HTML parser needed.
const resultMarker = `class="result `

func parseResults(page string, maxResults int) []Result {
	results := []Result{}

	pos := 0
	for len(results) < maxResults {
		start := strings.Index(page[pos:], resultMarker)
		if start == -1 {
			break
		}
		start += pos

		block := page[start:]
		if next := strings.Index(page[start+1:], resultMarker); next != -1 {
			block = page[start : start+1+next]
		}

		title, href := extractTitleURL(block)
		if title != "" && href != "" {
			results = append(results, Result{
				Title:   title,
				URL:     href,
				Snippet: extractSnippet(block),
			})
		}

		pos = start + len(resultMarker)
	}
	return results
}

// extractTitleURL pulls the result link out of one block:
// <a class="result__a" href="...">title</a>
func extractTitleURL(block string) (string, string) {
	linkPos := strings.Index(block, `class="result__a"`)
	if linkPos == -1 {
		return "", ""
	}

	href := ""
	if hrefStart := strings.Index(block[linkPos:], `href="`); hrefStart != -1 {
		hrefStart += linkPos + len(`href="`)
		if hrefEnd := strings.Index(block[hrefStart:], `"`); hrefEnd != -1 {
			href = unwrapRedirect(block[hrefStart : hrefStart+hrefEnd])
		}
	}

	title := ""
	if tagEnd := strings.Index(block[linkPos:], ">"); tagEnd != -1 {
		tagEnd += linkPos + 1
		if titleEnd := strings.Index(block[tagEnd:], "</a>"); titleEnd != -1 {
			title = cleanHTML(block[tagEnd : tagEnd+titleEnd])
		}
	}
	return title, href
}

// extractSnippet pulls the result__snippet body, which closes with
// either </a> or </span> depending on the page variant
func extractSnippet(block string) string {
	snippetPos := strings.Index(block, `class="result__snippet"`)
	if snippetPos == -1 {
		return ""
	}
	tagEnd := strings.Index(block[snippetPos:], ">")
	if tagEnd == -1 {
		return ""
	}
	tagEnd += snippetPos + 1

	end := strings.Index(block[tagEnd:], "</a>")
	if end == -1 {
		end = strings.Index(block[tagEnd:], "</span>")
	}
	if end == -1 {
		return ""
	}
	return cleanHTML(block[tagEnd : tagEnd+end])
}

// unwrapRedirect resolves the uddg= indirection the endpoint wraps
// around external links
func unwrapRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	parsed, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := parsed.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

var tagRe = regexp.MustCompile(`<[^>]+>`)

func cleanHTML(text string) string {
	text = tagRe.ReplaceAllString(text, "")
	text = html.UnescapeString(text)
	return strings.Join(strings.Fields(text), " ")
}

func truncate(text string, max int) string {
	if len(text) <= max {
		return text
	}
	return text[:max]
}
