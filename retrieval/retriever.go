// Package retrieval queries the restaurant similarity index and turns its
// serialized records into scored candidates.
package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/imkonsowa/restaurants-assistant/models"
)

const DefaultTopK = 15

// Index is the similarity index. Results come ordered by score, best first.
type Index interface {
	Search(ctx context.Context, query string, k int) ([]models.ScoredDocument, error)
}

// Record is a restaurant from the index. Attributes keeps the remaining
// fields of the serialized record for formatting.
type Record struct {
	Name       string          `json:"name"`
	Address    string          `json:"address"`
	PlaceID    string          `json:"place_id"`
	Instagram  string          `json:"instagram,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Location   models.Location `json:"-"`
	Attributes map[string]any  `json:"attributes,omitempty"`
}

// Destination is what routing should aim at: the indexed point when there is
// one, the address otherwise.
func (r Record) Destination() string {
	if r.Location.Valid {
		return r.Location.String()
	}
	return r.Address
}

type Candidate struct {
	Record
	Score float64 `json:"score"`
}

type Retriever struct {
	index Index
	k     int
}

func NewRetriever(index Index, k int) *Retriever {
	if k < 1 {
		k = DefaultTopK
	}

	return &Retriever{index: index, k: k}
}

// Retrieve returns up to k candidates in index order. Records that cannot be
// parsed are skipped.
func (r *Retriever) Retrieve(ctx context.Context, preference string) ([]Candidate, error) {
	docs, err := r.index.Search(ctx, preference, r.k)
	if err != nil {
		return nil, fmt.Errorf("failed to search index: %w", err)
	}

	candidates := make([]Candidate, 0, len(docs))
	for _, doc := range docs {
		record, err := ParseRecord(doc.Content)
		if err != nil {
			slog.Debug("skipping unparseable record", "err", err)
			continue
		}
		record.Tags = doc.Tags
		record.Location = doc.Location

		candidates = append(candidates, Candidate{Record: record, Score: doc.Score})
	}

	return candidates, nil
}

// ParseRecord decodes {"<name>": {"Address": ..., "Place ID": ..., ...}}.
func ParseRecord(content string) (Record, error) {
	var outer map[string]json.RawMessage
	if err := json.Unmarshal([]byte(content), &outer); err != nil {
		return Record{}, fmt.Errorf("invalid record: %w", err)
	}
	if len(outer) != 1 {
		return Record{}, fmt.Errorf("record must hold exactly one restaurant, got %d", len(outer))
	}

	var record Record
	for name, raw := range outer {
		var fields map[string]any
		if err := json.Unmarshal(raw, &fields); err != nil {
			return Record{}, fmt.Errorf("invalid record %q: %w", name, err)
		}

		record.Name = strings.TrimSpace(name)
		record.Address = stringField(fields, "Address")
		record.PlaceID = stringField(fields, "Place ID")
		record.Instagram = stringField(fields, "Instagram")

		delete(fields, "Address")
		delete(fields, "Place ID")
		delete(fields, "Instagram")
		if len(fields) > 0 {
			record.Attributes = fields
		}
	}

	if record.Name == "" || record.Address == "" || record.PlaceID == "" {
		return Record{}, fmt.Errorf("record %q misses name, address or place id", record.Name)
	}

	return record, nil
}

func stringField(fields map[string]any, key string) string {
	s, _ := fields[key].(string)
	return strings.TrimSpace(s)
}
