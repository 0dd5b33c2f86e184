package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gsaaad/ag1-researchagent/errors"
)

const (
	wikipediaEndpoint    = "https://en.wikipedia.org/w/api.php"
	wikipediaBodyLimit   = 1 << 20
	wikipediaSearchLimit = 4
	defaultSentences     = 5
	maxSentences         = 10
)

// WikipediaTool fetches article summaries from the MediaWiki API. It
// searches for the best matching article and returns plain-text extracts.
type WikipediaTool struct {
	client   *http.Client
	endpoint string
}

func NewWikipediaTool() *WikipediaTool {
	return &WikipediaTool{
		client:   &http.Client{Timeout: 30 * time.Second},
		endpoint: wikipediaEndpoint,
	}
}

func (t *WikipediaTool) Name() string { return "wikipedia" }
func (t *WikipediaTool) Description() string {
	return "Looks up encyclopedic background on a topic from Wikipedia. Good for definitions, history and established facts."
}

func (t *WikipediaTool) Schema() Schema {
	return Schema{
		Required: []string{"topic"},
		Properties: map[string]Property{
			"topic":     {Type: "string", Description: "The topic to look up"},
			"sentences": {Type: "integer", Description: "Number of summary sentences to return", Default: defaultSentences},
		},
	}
}

func (t *WikipediaTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	topic, ok := args["topic"].(string)
	if !ok || strings.TrimSpace(topic) == "" {
		return "", errors.New("missing or invalid 'topic' argument")
	}

	sentences := defaultSentences
	if s, ok := args["sentences"].(float64); ok && int(s) > 0 {
		sentences = int(s)
	}
	if sentences > maxSentences {
		sentences = maxSentences
	}

	pages, err := t.query(ctx, topic, sentences)
	if err != nil {
		return "", errors.Wrapf(err, "wikipedia lookup for '%s' failed", topic)
	}
	if len(pages) == 0 {
		return fmt.Sprintf("No Wikipedia article found for: %s", topic), nil
	}

	// The top-ranked search hit carries the summary; the rest become
	// pointers the model can follow up on.
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s\n\n%s", pages[0].Title, strings.TrimSpace(pages[0].Extract))
	if len(pages) > 1 {
		sb.WriteString("\n\nRelated articles:")
		for _, p := range pages[1:] {
			fmt.Fprintf(&sb, "\n- %s", p.Title)
		}
	}
	return sb.String(), nil
}

type wikipediaPage struct {
	Index   int    `json:"index"`
	Title   string `json:"title"`
	Extract string `json:"extract"`
}

type wikipediaResponse struct {
	Query struct {
		Pages map[string]wikipediaPage `json:"pages"`
	} `json:"query"`
}

func (t *WikipediaTool) query(ctx context.Context, topic string, sentences int) ([]wikipediaPage, error) {
	params := url.Values{}
	params.Set("action", "query")
	params.Set("format", "json")
	params.Set("generator", "search")
	params.Set("gsrsearch", topic)
	params.Set("gsrlimit", strconv.Itoa(wikipediaSearchLimit))
	params.Set("prop", "extracts")
	params.Set("explaintext", "1")
	params.Set("exsentences", strconv.Itoa(sentences))
	// TextExtracts hands out extracts in page-ID order, not search-rank
	// order, so asking for fewer extracts than search hits can leave the
	// top hit without one.
	params.Set("exlimit", strconv.Itoa(wikipediaSearchLimit))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "researchagent/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, errors.New("wikipedia API returned HTTP %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, wikipediaBodyLimit))
	if err != nil {
		return nil, err
	}

	var parsed wikipediaResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, errors.Wrapf(err, "failed to parse wikipedia response")
	}

	pages := make([]wikipediaPage, 0, len(parsed.Query.Pages))
	for _, p := range parsed.Query.Pages {
		pages = append(pages, p)
	}
	// The pages map is keyed by page ID; search rank lives in "index".
	sort.Slice(pages, func(i, j int) bool { return pages[i].Index < pages[j].Index })
	return pages, nil
}
