// Package search maintains a full-text index over the song sheet library.
package search

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
)

// SearchIndex wraps a Bleve index. All methods are safe for concurrent use;
// Rebuild takes the write lock and blocks everything else while it runs.
type SearchIndex struct {
	index  bleve.Index
	path   string
	logger *slog.Logger
	mu     sync.RWMutex
}

// Options configures the search index.
type Options struct {
	// Path is the index directory, e.g. {data}/search/sheets.bleve.
	Path   string
	Logger *slog.Logger
}

// mappingVersion is bumped whenever buildIndexMapping changes. A mismatch
// with the version file on disk recreates the index on open.
const mappingVersion = "1"

// NewSearchIndex opens the index at opts.Path, recreating it when it is
// missing, unreadable or built with another mapping version.
func NewSearchIndex(opts Options) (*SearchIndex, error) {
	if opts.Path == "" {
		return nil, fmt.Errorf("search index path cannot be empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(opts.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create search directory: %w", err)
	}

	versionPath := strings.TrimSuffix(opts.Path, filepath.Ext(opts.Path)) + ".version"

	var index bleve.Index
	if _, err := os.Stat(opts.Path); err == nil {
		existing, readErr := os.ReadFile(versionPath)
		switch {
		case readErr != nil || string(existing) != mappingVersion:
			logger.Info("search mapping changed, rebuilding index",
				"old_version", string(existing),
				"new_version", mappingVersion,
			)
		default:
			index, err = bleve.Open(opts.Path)
			if err != nil {
				logger.Warn("failed to open search index, recreating", "path", opts.Path, "error", err)
				index = nil
			}
		}
		if index == nil {
			if err := os.RemoveAll(opts.Path); err != nil {
				return nil, fmt.Errorf("remove old index: %w", err)
			}
		}
	}

	if index == nil {
		var err error
		index, err = bleve.New(opts.Path, buildIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("create index: %w", err)
		}
		if err := os.WriteFile(versionPath, []byte(mappingVersion), 0o644); err != nil {
			logger.Warn("failed to write search version file", "error", err)
		}
		logger.Info("created search index", "path", opts.Path, "mapping_version", mappingVersion)
	}

	return &SearchIndex{index: index, path: opts.Path, logger: logger}, nil
}

// Close releases the index.
func (s *SearchIndex) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index.Close()
}

// IndexSheet adds or replaces one document.
func (s *SearchIndex) IndexSheet(doc *SheetDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Index(doc.ID, doc.ToMap())
}

// IndexSheets indexes documents in batches of 500.
func (s *SearchIndex) IndexSheets(docs []*SheetDocument) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	const batchSize = 500
	for start := 0; start < len(docs); start += batchSize {
		end := min(start+batchSize, len(docs))
		batch := s.index.NewBatch()
		for _, doc := range docs[start:end] {
			if err := batch.Index(doc.ID, doc.ToMap()); err != nil {
				return fmt.Errorf("batch index %s: %w", doc.ID, err)
			}
		}
		if err := s.index.Batch(batch); err != nil {
			return fmt.Errorf("commit batch %d-%d: %w", start, end, err)
		}
	}
	return nil
}

// DeleteSheet removes a document.
func (s *SearchIndex) DeleteSheet(id string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.Delete(id)
}

// DocumentCount returns the number of indexed documents.
func (s *SearchIndex) DocumentCount() (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.index.DocCount()
}

// Rebuild drops the index and creates an empty one. Callers reindex afterwards.
func (s *SearchIndex) Rebuild() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.index.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if err := os.RemoveAll(s.path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	index, err := bleve.New(s.path, buildIndexMapping())
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	s.index = index
	s.logger.Info("rebuilt search index", "path", s.path)
	return nil
}
