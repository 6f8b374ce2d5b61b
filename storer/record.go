package storer

import (
	"strings"
	"time"
)

const DefaultCategory = "custom"

type Record struct {
	Id          string    `json:"id"`
	Description string    `json:"description"`
	Payload     string    `json:"payload"`
	Category    string    `json:"category"`
	Embedding   []float32 `json:"embedding,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type Match struct {
	Id          string  `json:"id"`
	Similarity  float64 `json:"similarity"`
	Description string  `json:"description"`
	Payload     string  `json:"payload"`
	Category    string  `json:"category"`
}

type Stats struct {
	Total      int            `json:"total"`
	Categories map[string]int `json:"categories"`
	Location   string         `json:"location"`
	Dimension  int            `json:"dimension"`
}

func (r Record) Match(similarity float64) Match {
	return Match{
		Id:          r.Id,
		Similarity:  similarity,
		Description: r.Description,
		Payload:     r.Payload,
		Category:    r.Category,
	}
}

// Prepare validates rec and fills defaults. The embedding is copied so the
// caller may reuse its slice.
func Prepare(rec Record) (Record, error) {
	rec.Id = strings.TrimSpace(rec.Id)
	if len(rec.Id) == 0 {
		return Record{}, invalid("id is required")
	}

	if len(strings.TrimSpace(rec.Description)) == 0 {
		return Record{}, invalid("description is required")
	}

	if len(rec.Embedding) == 0 {
		return Record{}, invalid("embedding is required")
	}

	if len(strings.TrimSpace(rec.Category)) == 0 {
		rec.Category = DefaultCategory
	}

	cpy := make([]float32, len(rec.Embedding))
	copy(cpy, rec.Embedding)
	rec.Embedding = cpy

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	return rec, nil
}
