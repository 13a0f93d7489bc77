package search

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"
)

// SearchParams configures a sheet search.
type SearchParams struct {
	Query string

	// Exact-match filters; empty means any.
	Key      string
	Category string
	Language string

	Limit  int
	Offset int
}

// DefaultLimit is used when SearchParams.Limit is not positive.
const DefaultLimit = 20

// SearchResult is one page of hits.
type SearchResult struct {
	Query  string      `json:"query"`
	Total  uint64      `json:"total"`
	TookMs int64       `json:"took_ms"`
	Hits   []SearchHit `json:"hits"`
}

// SearchHit is one matching sheet.
type SearchHit struct {
	ID         string            `json:"id"`
	Score      float64           `json:"score"`
	Name       string            `json:"song_name"`
	Artist     string            `json:"song_artist,omitempty"`
	ArrangedBy string            `json:"song_arranged_by,omitempty"`
	Key        string            `json:"song_key"`
	Highlights map[string]string `json:"highlights,omitempty"`
}

var storedFields = []string{"name", "artist", "arranged_by", "key"}

// Search runs params against the index, best match first.
func (s *SearchIndex) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	limit := params.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	req := bleve.NewSearchRequestOptions(buildSearchQuery(params), limit, params.Offset, false)
	req.Fields = storedFields
	if strings.TrimSpace(params.Query) != "" {
		req.Highlight = bleve.NewHighlight()
		req.Highlight.AddField("name")
		req.Highlight.AddField("artist")
		req.SortBy([]string{"-_score", "name"})
	} else {
		req.SortBy([]string{"-created_at"})
	}

	res, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("execute search: %w", err)
	}

	result := &SearchResult{
		Query:  params.Query,
		Total:  res.Total,
		TookMs: res.Took.Milliseconds(),
		Hits:   make([]SearchHit, 0, len(res.Hits)),
	}
	for _, hit := range res.Hits {
		h := SearchHit{ID: hit.ID, Score: hit.Score}
		h.Name, _ = hit.Fields["name"].(string)
		h.Artist, _ = hit.Fields["artist"].(string)
		h.ArrangedBy, _ = hit.Fields["arranged_by"].(string)
		h.Key, _ = hit.Fields["key"].(string)
		if len(hit.Fragments) > 0 {
			h.Highlights = make(map[string]string, len(hit.Fragments))
			for field, fragments := range hit.Fragments {
				if len(fragments) > 0 {
					h.Highlights[field] = fragments[0]
				}
			}
		}
		result.Hits = append(result.Hits, h)
	}
	return result, nil
}

// buildSearchQuery ORs the text matches and ANDs the filters.
func buildSearchQuery(params SearchParams) query.Query {
	var must []query.Query

	if q := strings.TrimSpace(params.Query); q != "" {
		name := bleve.NewMatchQuery(q)
		name.SetField("name")
		name.SetBoost(3.0)

		artist := bleve.NewMatchQuery(q)
		artist.SetField("artist")
		artist.SetBoost(1.5)

		arranger := bleve.NewMatchQuery(q)
		arranger.SetField("arranged_by")

		text := []query.Query{name, artist, arranger}

		// Latin titles get typo tolerance and prefix completion. Hangul is
		// already bigrammed, where edit distance is not meaningful.
		if isLatin(q) && utf8.RuneCountInString(q) >= 3 {
			fuzzy := bleve.NewFuzzyQuery(strings.ToLower(q))
			fuzzy.SetField("name")
			fuzzy.SetFuzziness(1)
			fuzzy.SetBoost(0.8)

			prefix := bleve.NewPrefixQuery(strings.ToLower(q))
			prefix.SetField("name")
			prefix.SetBoost(0.5)
			text = append(text, fuzzy, prefix)
		}
		must = append(must, bleve.NewDisjunctionQuery(text...))
	}

	for field, value := range map[string]string{
		"key":      params.Key,
		"category": params.Category,
		"language": params.Language,
	} {
		if value == "" {
			continue
		}
		tq := bleve.NewTermQuery(value)
		tq.SetField(field)
		must = append(must, tq)
	}

	switch len(must) {
	case 0:
		return bleve.NewMatchAllQuery()
	case 1:
		return must[0]
	default:
		return bleve.NewConjunctionQuery(must...)
	}
}

func isLatin(s string) bool {
	for _, r := range s {
		if r >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
