package search

import (
	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/mapping"
)

// buildIndexMapping creates the mapping for sheet documents.
//
// Titles, artists and arrangers mix Hangul and Latin script, so text fields
// use the CJK analyzer: Hangul runs become bigrams and Latin words are
// lowercased whole. Key, category and language are exact-match filters.
func buildIndexMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = cjk.AnalyzerName

	doc := bleve.NewDocumentMapping()

	for _, field := range []string{"name", "artist", "arranged_by"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = cjk.AnalyzerName
		fm.Store = true
		fm.IncludeTermVectors = true
		doc.AddFieldMappingsAt(field, fm)
	}

	for _, field := range []string{"type", "key", "category", "language"} {
		fm := bleve.NewTextFieldMapping()
		fm.Analyzer = keyword.Name
		fm.Store = true
		doc.AddFieldMappingsAt(field, fm)
	}

	created := bleve.NewDateTimeFieldMapping()
	created.Store = true
	doc.AddFieldMappingsAt("created_at", created)

	indexMapping.AddDocumentMapping("_default", doc)
	return indexMapping
}
