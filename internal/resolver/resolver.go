// Package resolver decides whether an uploaded song sheet creates a new
// record, replaces the pages of an existing version, or is rejected because
// it disagrees with what is already stored for the song.
package resolver

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/store"
)

// Store is the document store the resolver reads and writes.
type Store interface {
	FindByIdentity(ctx context.Context, identity domain.Identity) ([]*domain.SongSheet, error)
	CreateSheet(ctx context.Context, sheet *domain.SongSheet) error
	UpdateSheet(ctx context.Context, sheet *domain.SongSheet) error
}

// FileDeleter removes uploaded files by storage id.
type FileDeleter interface {
	DeleteFiles(ctx context.Context, fileIDs []string) error
}

// ErrConcurrentSubmission is returned when another submission created the
// same version between the lookup and the write.
var ErrConcurrentSubmission = domainerrors.Conflict("this version was submitted concurrently, retry")

// Result is the applied outcome of a submission.
type Result struct {
	Outcome Outcome
	// SheetID is the created or updated record. Empty on REJECT.
	SheetID string
	// Sheet is the persisted record after CREATE or UPDATE.
	Sheet     *domain.SongSheet
	Conflicts []Conflict
	Warnings  []Conflict
	// SupersededFileIDs are the files of the page set an UPDATE replaced.
	// They are reported, not deleted.
	SupersededFileIDs []string
	// CleanupFailed is set when a REJECT could not delete every uploaded file.
	CleanupFailed bool
}

// Resolver applies submissions against a Store.
type Resolver struct {
	store  Store
	files  FileDeleter
	logger *slog.Logger
	now    func() time.Time
	strict bool
	checks singleflight.Group
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// WithStrictIdentity rejects new versions that disagree with sibling versions
// of the same song on category, bpm or language.
func WithStrictIdentity(strict bool) Option {
	return func(r *Resolver) { r.strict = strict }
}

// New creates a resolver.
func New(s Store, files FileDeleter, logger *slog.Logger, opts ...Option) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Resolver{
		store:  s,
		files:  files,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Submit resolves c and applies the outcome. A store failure returns an error
// and leaves uploaded files in place; a REJECT is a normal result.
func (r *Resolver) Submit(ctx context.Context, c Candidate) (*Result, error) {
	matches, err := r.store.FindByIdentity(ctx, c.Identity())
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to look up existing sheets")
	}

	matches = sameIdentity(matches, c.Identity())
	decision := Decide(c.probe(), matches, r.strict)

	switch decision.Outcome {
	case OutcomeReject:
		return r.reject(ctx, c, decision, matches), nil
	case OutcomeUpdate:
		return r.update(ctx, c, decision)
	default:
		return r.create(ctx, c, decision)
	}
}

func (r *Resolver) create(ctx context.Context, c Candidate, d Decision) (*Result, error) {
	sheet := newSheet(c, r.now())
	if err := r.store.CreateSheet(ctx, sheet); err != nil {
		if errors.Is(err, store.ErrVersionExists) {
			return nil, ErrConcurrentSubmission.WithCause(err)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to save sheet")
	}

	r.logger.Info("song sheet created",
		"sheet_id", sheet.ID,
		"song_name", sheet.Name,
		"song_key", sheet.Key,
		"pages", len(sheet.Pages),
		"warnings", len(d.Warnings),
	)
	return &Result{
		Outcome:  OutcomeCreate,
		SheetID:  sheet.ID,
		Sheet:    sheet,
		Warnings: d.Warnings,
	}, nil
}

func (r *Resolver) update(ctx context.Context, c Candidate, d Decision) (*Result, error) {
	updated := applyUpdate(d.Match, c, r.now())
	if err := r.store.UpdateSheet(ctx, updated); err != nil {
		if errors.Is(err, store.ErrVersionExists) || errors.Is(err, store.ErrSheetNotFound) {
			return nil, ErrConcurrentSubmission.WithCause(err)
		}
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to update sheet")
	}

	r.logger.Info("song sheet pages replaced",
		"sheet_id", updated.ID,
		"song_name", updated.Name,
		"song_key", updated.Key,
		"pages", len(updated.Pages),
	)
	return &Result{
		Outcome:           OutcomeUpdate,
		SheetID:           updated.ID,
		Sheet:             updated,
		SupersededFileIDs: superseded(d.Match.ImageIDs, updated.ImageIDs),
	}, nil
}

// reject deletes the candidate's uploads, except files a stored version of
// the song still references.
func (r *Resolver) reject(ctx context.Context, c Candidate, d Decision, matches []*domain.SongSheet) *Result {
	result := &Result{Outcome: OutcomeReject, Conflicts: d.Conflicts}

	orphaned := unreferenced(c.FileIDs(), matches)
	if len(orphaned) < len(c.Pages) {
		r.logger.Warn("rejected submission named files of a stored sheet; keeping them",
			"song_name", c.Name,
			"kept", len(c.Pages)-len(orphaned),
		)
	}

	// Cleanup is best effort: the conflict report is what the caller needs.
	if len(orphaned) > 0 {
		if err := r.files.DeleteFiles(ctx, orphaned); err != nil {
			result.CleanupFailed = true
			r.logger.Warn("failed to delete files of rejected submission",
				"file_ids", orphaned,
				"error", err,
			)
		}
	}

	attrs := []any{"song_name", c.Name, "song_key", c.Key, "conflicts", len(d.Conflicts)}
	if d.Match != nil {
		attrs = append(attrs, "sheet_id", d.Match.ID)
	}
	r.logger.Info("song sheet submission rejected", attrs...)
	return result
}

func superseded(before, after []string) []string {
	keep := make(map[string]struct{}, len(after))
	for _, id := range after {
		keep[id] = struct{}{}
	}
	var out []string
	for _, id := range before {
		if _, ok := keep[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// unreferenced returns the ids in fileIDs that no sheet in sheets holds.
func unreferenced(fileIDs []string, sheets []*domain.SongSheet) []string {
	held := make(map[string]struct{})
	for _, s := range sheets {
		for _, id := range s.ImageIDs {
			held[id] = struct{}{}
		}
	}
	out := make([]string, 0, len(fileIDs))
	for _, id := range fileIDs {
		if _, ok := held[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}
