package search

import (
	"time"

	"github.com/contiapp/conti-server/internal/domain"
)

// SheetDocument is the indexed view of a song sheet.
type SheetDocument struct {
	ID         string
	Name       string
	Artist     string
	ArrangedBy string
	Key        string
	Categories []string
	Language   string
	CreatedAt  time.Time
}

// ToMap converts the document to the field names used by the mapping.
func (d *SheetDocument) ToMap() map[string]any {
	m := map[string]any{
		"type":        "sheet",
		"name":        d.Name,
		"artist":      d.Artist,
		"arranged_by": d.ArrangedBy,
		"key":         d.Key,
		"language":    d.Language,
		"created_at":  d.CreatedAt,
	}
	if len(d.Categories) > 0 {
		m["category"] = d.Categories
	}
	return m
}

// SheetToDocument builds the search document for s.
func SheetToDocument(s *domain.SongSheet) *SheetDocument {
	categories := make([]string, len(s.Category))
	for i, c := range s.Category {
		categories[i] = string(c)
	}
	return &SheetDocument{
		ID:         s.ID,
		Name:       s.Name,
		Artist:     s.Artist,
		ArrangedBy: s.ArrangedBy,
		Key:        string(s.Key),
		Categories: categories,
		Language:   string(s.Language),
		CreatedAt:  s.CreatedAt,
	}
}
