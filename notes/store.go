// Package notes provides persistent full-text storage for research notes
// taken during agent sessions. Notes are indexed with Bleve so the agent
// can recall earlier findings with ranked BM25 search.
package notes

import (
	"os"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/google/uuid"
	"github.com/gsaaad/ag1-researchagent/errors"
)

// Note is a single stored research note.
type Note struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// Result is a search hit with its relevance score.
type Result struct {
	Note
	Score float64
}

// Store wraps a Bleve index holding notes.
type Store struct {
	mu    sync.RWMutex
	index bleve.Index
}

// Open opens the note index at path, creating it if it does not exist.
func Open(path string) (*Store, error) {
	var index bleve.Index
	var err error

	if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
		index, err = bleve.New(path, buildIndexMapping())
		if err != nil {
			return nil, errors.Wrapf(err, "failed to create note index at '%s'", path)
		}
	} else {
		index, err = bleve.Open(path)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to open note index at '%s'", path)
		}
	}
	return &Store{index: index}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	noteMapping := bleve.NewDocumentMapping()

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = standard.Name

	keywordFieldMapping := bleve.NewKeywordFieldMapping()
	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	noteMapping.AddFieldMappingsAt("title", textFieldMapping)
	noteMapping.AddFieldMappingsAt("body", textFieldMapping)
	noteMapping.AddFieldMappingsAt("source", keywordFieldMapping)
	noteMapping.AddFieldMappingsAt("created_at", dateFieldMapping)

	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultMapping = noteMapping
	indexMapping.DefaultAnalyzer = standard.Name
	return indexMapping
}

// Save indexes a note and returns its generated ID.
func (s *Store) Save(title, body, source string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	note := Note{
		ID:        uuid.New().String(),
		Title:     title,
		Body:      body,
		Source:    source,
		CreatedAt: time.Now(),
	}
	if err := s.index.Index(note.ID, note); err != nil {
		return "", errors.Wrapf(err, "failed to index note")
	}
	return note.ID, nil
}

// Search returns the notes best matching the query, most relevant first.
func (s *Store) Search(queryText string, limit int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	searchReq := bleve.NewSearchRequest(bleve.NewMatchQuery(queryText))
	searchReq.Size = limit
	searchReq.Fields = []string{"title", "body", "source"}

	searchResult, err := s.index.Search(searchReq)
	if err != nil {
		return nil, errors.Wrapf(err, "note search failed")
	}

	results := make([]Result, 0, len(searchResult.Hits))
	for _, hit := range searchResult.Hits {
		r := Result{Score: hit.Score}
		r.ID = hit.ID
		if v, ok := hit.Fields["title"].(string); ok {
			r.Title = v
		}
		if v, ok := hit.Fields["body"].(string); ok {
			r.Body = v
		}
		if v, ok := hit.Fields["source"].(string); ok {
			r.Source = v
		}
		results = append(results, r)
	}
	return results, nil
}

// Count returns the number of indexed notes.
func (s *Store) Count() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Close releases the underlying index.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}
