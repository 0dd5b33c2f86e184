package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/gsaaad/ag1-researchagent/errors"
	"github.com/gsaaad/ag1-researchagent/notes"
)

// SaveNoteTool persists a research note to the local note index.
type SaveNoteTool struct {
	store *notes.Store
}

func (t *SaveNoteTool) Name() string { return "save_note" }
func (t *SaveNoteTool) Description() string {
	return "Saves a research note for later recall. Use it to record findings worth keeping across sessions."
}

func (t *SaveNoteTool) Schema() Schema {
	return Schema{
		Required: []string{"title", "body"},
		Properties: map[string]Property{
			"title":  {Type: "string", Description: "Short title for the note"},
			"body":   {Type: "string", Description: "The note content"},
			"source": {Type: "string", Description: "Optional provenance, e.g. a URL or article title"},
		},
	}
}

func (t *SaveNoteTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	title, titleOk := args["title"].(string)
	body, bodyOk := args["body"].(string)
	if !titleOk || !bodyOk || strings.TrimSpace(title) == "" || strings.TrimSpace(body) == "" {
		return "", errors.New("missing or invalid 'title' or 'body' arguments")
	}
	source, _ := args["source"].(string)

	id, err := t.store.Save(title, body, source)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Saved note '%s' (id %s)", title, id), nil
}

// SearchNotesTool recalls previously saved notes by full-text search.
type SearchNotesTool struct {
	store *notes.Store
}

func (t *SearchNotesTool) Name() string { return "search_notes" }
func (t *SearchNotesTool) Description() string {
	return "Searches previously saved research notes and returns the best matches."
}

func (t *SearchNotesTool) Schema() Schema {
	return Schema{
		Required: []string{"query"},
		Properties: map[string]Property{
			"query": {Type: "string", Description: "What to look for"},
			"limit": {Type: "integer", Description: "Maximum number of notes to return", Default: 5},
		},
	}
}

func (t *SearchNotesTool) Execute(ctx context.Context, args map[string]interface{}) (string, error) {
	query, ok := args["query"].(string)
	if !ok || strings.TrimSpace(query) == "" {
		return "", errors.New("missing or invalid 'query' argument")
	}
	limit := 5
	if l, ok := args["limit"].(float64); ok && int(l) > 0 {
		limit = int(l)
	}

	results, err := t.store.Search(query, limit)
	if err != nil {
		return "", err
	}
	if len(results) == 0 {
		return fmt.Sprintf("No saved notes match: %s", query), nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d note(s):\n", len(results))
	for i, r := range results {
		fmt.Fprintf(&sb, "\n%d. %s\n%s\n", i+1, r.Title, r.Body)
		if r.Source != "" {
			fmt.Fprintf(&sb, "Source: %s\n", r.Source)
		}
	}
	return strings.TrimSpace(sb.String()), nil
}
