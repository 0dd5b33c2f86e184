package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gsaaad/ag1-researchagent/config"
	"github.com/gsaaad/ag1-researchagent/errors"
	"golang.org/x/net/html"
)

const (
	searchEndpoint  = "https://html.duckduckgo.com/html/"
	searchBodyLimit = 1 << 20 // 1MB
	maxResultsCap   = 25
)

// SearchResult is a single parsed web search hit.
type SearchResult struct {
	Title   string
	URL     string
	Snippet string
}

// WebSearchTool searches the web through the DuckDuckGo HTML endpoint,
// which needs no API key.
type WebSearchTool struct {
	client     *http.Client
	maxResults int
	timeout    time.Duration
}

func NewWebSearchTool(cfg config.Search) *WebSearchTool {
	return &WebSearchTool{
		client:     http.DefaultClient,
		maxResults: cfg.MaxResults,
		timeout:    time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

func (t *WebSearchTool) Name() string { return "web_search" }
func (t *WebSearchTool) Description() string {
	return "Searches the internet for current information, news and articles. Returns titled results with URLs and snippets."
}

func (t *WebSearchTool) Schema() Schema {
	return Schema{
		Required: []string{"query"},
		Properties: map[string]Property{
			"query":       {Type: "string", Description: "The search query"},
			"max_results": {Type: "integer", Description: "Maximum number of results to return", Default: t.maxResults},
		},
	}
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", errors.New("missing or invalid 'query' argument")
	}

	maxResults := t.maxResults
	// JSON numbers arrive as float64 from every provider.
	if mr, ok := args["max_results"].(float64); ok && int(mr) > 0 {
		maxResults = int(mr)
	}
	if maxResults > maxResultsCap {
		maxResults = maxResultsCap
	}

	results, err := t.search(ctx, query, maxResults)
	if err != nil {
		return "", errors.Wrapf(err, "web search for '%s' failed", query)
	}
	if len(results) == 0 {
		return fmt.Sprintf("No results found for: %s", query), nil
	}
	return formatSearchResults(query, results), nil
}

func (t *WebSearchTool) search(ctx context.Context, query string, maxResults int) ([]SearchResult, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	searchURL := searchEndpoint + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, err
	}
	// The HTML endpoint rejects requests without browser-ish headers.
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("search endpoint returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, searchBodyLimit))
	if err != nil {
		return nil, err
	}
	return parseSearchResults(string(body), maxResults)
}

// parseSearchResults extracts results from the DuckDuckGo HTML page,
// which marks each hit with class "result results_links".
func parseSearchResults(htmlContent string, maxResults int) ([]SearchResult, error) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse search response")
	}

	var results []SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if len(results) >= maxResults {
			return
		}
		if n.Type == html.ElementNode && n.Data == "div" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result") && strings.Contains(class, "results_links") {
				r := extractResult(n)
				if r.URL != "" && r.Title != "" {
					results = append(results, r)
				}
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return results, nil
}

func extractResult(n *html.Node) SearchResult {
	var result SearchResult
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			class := attrValue(n, "class")
			if strings.Contains(class, "result__a") {
				result.URL = unwrapRedirect(attrValue(n, "href"))
				result.Title = textContent(n)
			} else if strings.Contains(class, "result__snippet") {
				result.Snippet = textContent(n)
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return result
}

// unwrapRedirect resolves DuckDuckGo's /l/?uddg= redirect links to the
// target URL.
func unwrapRedirect(href string) string {
	const prefix = "//duckduckgo.com/l/?uddg="
	if !strings.HasPrefix(href, prefix) {
		return href
	}
	decoded, err := url.QueryUnescape(strings.TrimPrefix(href, prefix))
	if err != nil {
		return href
	}
	if idx := strings.Index(decoded, "&"); idx > 0 {
		decoded = decoded[:idx]
	}
	return decoded
}

func attrValue(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(strings.TrimSpace(n.Data))
			sb.WriteString(" ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.TrimSpace(sb.String())
}

func formatSearchResults(query string, results []SearchResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Search results for '%s':\n\n", query)
	for i, r := range results {
		fmt.Fprintf(&sb, "%d. %s\n   %s\n", i+1, r.Title, r.URL)
		if r.Snippet != "" {
			fmt.Fprintf(&sb, "   %s\n", r.Snippet)
		}
		sb.WriteString("\n")
	}
	return strings.TrimSpace(sb.String())
}
