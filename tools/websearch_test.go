package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gsaaad/ag1-researchagent/config"
)

const searchFixture = `<html><body>
<div class="result results_links results_links_deep web-result">
  <div class="links_main links_deep result__body">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F&amp;rut=abc">Go Documentation</a>
    </h2>
    <a class="result__snippet" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc%2F">Learn how to <b>use Go</b>.</a>
  </div>
</div>
<div class="result results_links results_links_deep web-result">
  <div class="links_main links_deep result__body">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="https://go.dev/tour/">A Tour of Go</a>
    </h2>
    <a class="result__snippet" href="https://go.dev/tour/">An interactive introduction.</a>
  </div>
</div>
<div class="result results_links results_links_deep web-result">
  <div class="links_main links_deep result__body">
    <h2 class="result__title">
      <a rel="nofollow" class="result__a" href="https://gobyexample.com/">Go by Example</a>
    </h2>
  </div>
</div>
</body></html>`

func TestParseSearchResults(t *testing.T) {
	results, err := parseSearchResults(searchFixture, 10)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	first := results[0]
	if first.Title != "Go Documentation" {
		t.Errorf("title = %q", first.Title)
	}
	if first.URL != "https://go.dev/doc/" {
		t.Errorf("redirect not unwrapped: url = %q", first.URL)
	}
	if !strings.Contains(first.Snippet, "use Go") {
		t.Errorf("snippet = %q", first.Snippet)
	}

	if results[1].URL != "https://go.dev/tour/" {
		t.Errorf("plain url mangled: %q", results[1].URL)
	}
}

func TestParseSearchResultsLimit(t *testing.T) {
	results, err := parseSearchResults(searchFixture, 2)
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestUnwrapRedirect(t *testing.T) {
	tests := []struct {
		href string
		want string
	}{
		{"//duckduckgo.com/l/?uddg=https%3A%2F%2Fexample.com%2Fpage&rut=xyz", "https://example.com/page"},
		{"https://example.com/direct", "https://example.com/direct"},
		{"//duckduckgo.com/l/?uddg=%ZZ", "//duckduckgo.com/l/?uddg=%ZZ"},
	}
	for _, tc := range tests {
		if got := unwrapRedirect(tc.href); got != tc.want {
			t.Errorf("unwrapRedirect(%q) = %q, want %q", tc.href, got, tc.want)
		}
	}
}

func TestWebSearchExecute(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") == "" {
			t.Error("missing query parameter")
		}
		w.Write([]byte(searchFixture))
	}))
	defer srv.Close()

	tool := NewWebSearchTool(config.Search{MaxResults: 5, TimeoutSeconds: 5})
	tool.client = srv.Client()

	// Point the request at the test server by rewriting its transport.
	tool.client.Transport = rewriteHost(srv.URL, tool.client.Transport)

	result, err := tool.Execute(context.Background(), map[string]interface{}{"query": "golang"})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !strings.Contains(result, "Go Documentation") {
		t.Errorf("result missing expected entry: %q", result)
	}
	if !strings.Contains(result, "https://go.dev/doc/") {
		t.Errorf("result missing URL: %q", result)
	}
}

func TestWebSearchExecuteValidation(t *testing.T) {
	tool := NewWebSearchTool(config.Search{MaxResults: 5, TimeoutSeconds: 5})

	if _, err := tool.Execute(context.Background(), map[string]interface{}{}); err == nil {
		t.Error("Execute without query should fail")
	}
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"query": "   "}); err == nil {
		t.Error("Execute with blank query should fail")
	}
}

// rewriteHost redirects every request to the test server regardless of
// the original URL.
func rewriteHost(target string, next http.RoundTripper) http.RoundTripper {
	return roundTripFunc(func(req *http.Request) (*http.Response, error) {
		redirected, err := http.NewRequestWithContext(req.Context(), req.Method, target+"?"+req.URL.RawQuery, nil)
		if err != nil {
			return nil, err
		}
		redirected.Header = req.Header
		if next == nil {
			next = http.DefaultTransport
		}
		return next.RoundTrip(redirected)
	})
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
