package service

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/keylock"
	"github.com/contiapp/conti-server/internal/normalize"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/validation"
)

// SheetIndex keeps full-text search in step with the library. *search.SearchIndex implements it.
type SheetIndex interface {
	IndexSheet(doc *search.SheetDocument) error
	IndexSheets(docs []*search.SheetDocument) error
	DeleteSheet(id string) error
	Rebuild() error
	Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error)
}

// SheetService owns the song sheet library: submissions through the identity
// resolver, browsing, search and manager edits.
type SheetService struct {
	sheets    store.SheetRepository
	resolver  *resolver.Resolver
	files     resolver.FileDeleter
	index     SheetIndex
	events    EventEmitter
	validator *validation.Validator
	locks     *keylock.Map[string]
	logger    *slog.Logger
	now       func() time.Time
}

// NewSheetService creates a sheet service. index and events may be nil.
func NewSheetService(
	sheets store.SheetRepository,
	res *resolver.Resolver,
	files resolver.FileDeleter,
	index SheetIndex,
	events EventEmitter,
	validator *validation.Validator,
	logger *slog.Logger,
) *SheetService {
	return &SheetService{
		sheets:    sheets,
		resolver:  res,
		files:     files,
		index:     index,
		events:    emitterOrDiscard(events),
		validator: validator,
		locks:     keylock.New[string](),
		logger:    logger,
		now:       time.Now,
	}
}

func normalizeSubmission(s resolver.Submission) resolver.Submission {
	s.SongName = normalize.Text(s.SongName)
	s.SongArtist = normalize.Text(s.SongArtist)
	s.SongArrangedBy = normalize.Text(s.SongArrangedBy)
	s.SongKey = normalize.Text(s.SongKey)
	s.SongCategory = normalize.Text(s.SongCategory)
	s.SongBPM = normalize.Text(s.SongBPM)
	s.SongLanguage = normalize.Language(s.SongLanguage)
	return s
}

// Submit resolves an upload into CREATE, UPDATE or REJECT and applies it.
// Submissions of one song are serialized.
func (s *SheetService) Submit(ctx context.Context, sub resolver.Submission) (*resolver.Result, error) {
	candidate, err := resolver.NewCandidate(normalizeSubmission(sub))
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(candidate.Identity().IndexKey())
	defer unlock()

	result, err := s.resolver.Submit(ctx, candidate)
	if err != nil {
		s.logger.Error("Song sheet submission failed",
			"song_name", candidate.Name,
			"song_artist", candidate.Artist,
			"error", err,
		)
		return nil, err
	}

	s.logger.Info("Resolved song sheet submission",
		"outcome", result.Outcome,
		"sheet_id", result.SheetID,
		"song_name", candidate.Name,
		"song_key", candidate.Key,
		"conflicts", len(result.Conflicts),
		"warnings", len(result.Warnings),
	)

	switch result.Outcome {
	case resolver.OutcomeCreate:
		s.reindex(result.Sheet)
		s.events.Emit(sse.NewSheetCreatedEvent(result.Sheet))
	case resolver.OutcomeUpdate:
		s.reindex(result.Sheet)
		s.events.Emit(sse.NewSheetUpdatedEvent(result.Sheet))
	}
	return result, nil
}

// Check answers the live precheck without writing anything.
func (s *SheetService) Check(ctx context.Context, q resolver.Query) (*resolver.CheckResult, error) {
	q.SongName = normalize.Text(q.SongName)
	q.SongArtist = normalize.Text(q.SongArtist)
	q.SongArrangedBy = normalize.Text(q.SongArrangedBy)
	q.SongKey = normalize.Text(q.SongKey)
	q.SongCategory = normalize.Text(q.SongCategory)
	q.SongBPM = normalize.Text(q.SongBPM)
	q.SongLanguage = normalize.Language(q.SongLanguage)
	return s.resolver.Check(ctx, q)
}

// Sheet list orderings.
const (
	SortNewest = "newest"
	SortName   = "name"
)

// ListSheetsParams filters and orders the library listing.
type ListSheetsParams struct {
	Sort     string `json:"sort" validate:"omitempty,oneof=newest name"`
	Key      string `json:"key" validate:"omitempty,songkey"`
	Category string `json:"category" validate:"omitempty,category"`
	Language string `json:"language" validate:"omitempty,language"`
}

// List returns the library, newest first unless params.Sort is SortName.
func (s *SheetService) List(ctx context.Context, params ListSheetsParams) ([]*domain.SongSheet, error) {
	params.Language = normalize.Language(params.Language)
	if err := s.validator.Validate(params); err != nil {
		return nil, err
	}

	sheets, err := s.sheets.ListSheets(ctx)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list sheets")
	}

	var (
		key      domain.Key
		category domain.Category
	)
	if params.Key != "" {
		key, _ = domain.ParseKey(params.Key)
	}
	if params.Category != "" {
		category, _ = domain.ParseCategory(params.Category)
	}
	lang := domain.Language(params.Language)

	filtered := make([]*domain.SongSheet, 0, len(sheets))
	for _, sh := range sheets {
		if key != "" && sh.Key != key {
			continue
		}
		if category != "" && !sh.Category.Contains(category) {
			continue
		}
		if lang != "" && sh.Language != lang {
			continue
		}
		filtered = append(filtered, sh)
	}

	if params.Sort == SortName {
		slices.SortStableFunc(filtered, func(a, b *domain.SongSheet) int {
			return cmp.Or(
				normalize.Compare(a.Name, b.Name),
				normalize.Compare(a.Artist, b.Artist),
				keyIndex(a.Key)-keyIndex(b.Key),
			)
		})
	} else {
		slices.SortStableFunc(filtered, func(a, b *domain.SongSheet) int {
			return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(a.ID, b.ID))
		})
	}
	return filtered, nil
}

func keyIndex(k domain.Key) int {
	return slices.Index(domain.Keys, k)
}

// Search runs a full-text query over names, artists and arrangers.
func (s *SheetService) Search(ctx context.Context, params search.SearchParams) (*search.SearchResult, error) {
	if s.index == nil {
		return nil, domainerrors.Unavailable("search is not available")
	}
	params.Query = normalize.Text(params.Query)
	params.Language = normalize.Language(params.Language)
	result, err := s.index.Search(ctx, params)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "search failed")
	}
	return result, nil
}

// Get loads one sheet.
func (s *SheetService) Get(ctx context.Context, sheetID string) (*domain.SongSheet, error) {
	return s.sheets.GetSheet(ctx, sheetID)
}

// UpdateSheetRequest is a partial metadata edit. Nil fields are left alone.
type UpdateSheetRequest struct {
	SongName       *string  `json:"song_name,omitempty" validate:"omitempty,min=1,max=200"`
	SongArtist     *string  `json:"song_artist,omitempty" validate:"omitempty,max=200"`
	SongKey        *string  `json:"song_key,omitempty" validate:"omitempty,songkey"`
	SongArrangedBy *string  `json:"song_arranged_by,omitempty" validate:"omitempty,max=200"`
	SongCategory   []string `json:"song_category,omitempty" validate:"omitempty,min=1,dive,category"`
	SongBPM        *string  `json:"song_bpm,omitempty" validate:"omitempty,bpm"`
	SongLanguage   *string  `json:"song_language,omitempty" validate:"omitempty,language"`
}

func (r *UpdateSheetRequest) normalize() {
	for _, p := range []*string{r.SongName, r.SongArtist, r.SongKey, r.SongArrangedBy, r.SongBPM} {
		if p != nil {
			*p = normalize.Text(*p)
		}
	}
	if r.SongLanguage != nil {
		*r.SongLanguage = normalize.Language(*r.SongLanguage)
	}
	for i, c := range r.SongCategory {
		r.SongCategory[i] = normalize.Text(c)
	}
}

func (r *UpdateSheetRequest) apply(sh *domain.SongSheet) {
	if r.SongName != nil {
		sh.Name = *r.SongName
	}
	if r.SongArtist != nil {
		sh.Artist = *r.SongArtist
	}
	if r.SongKey != nil {
		sh.Key, _ = domain.ParseKey(*r.SongKey)
	}
	if r.SongArrangedBy != nil {
		sh.ArrangedBy = *r.SongArrangedBy
	}
	if r.SongCategory != nil {
		categories := make([]domain.Category, 0, len(r.SongCategory))
		for _, raw := range r.SongCategory {
			c, _ := domain.ParseCategory(raw)
			categories = append(categories, c)
		}
		sh.Category = domain.NewCategorySet(categories...)
	}
	if r.SongBPM != nil {
		sh.BPM, _ = domain.NormalizeBPM(*r.SongBPM)
	}
	if r.SongLanguage != nil {
		sh.Language = domain.Language(*r.SongLanguage)
	}
}

// Update edits sheet metadata. Moving the sheet onto a version that already
// exists, or giving it category, bpm or language values that disagree with
// other versions of the song, fails with a conflict.
func (s *SheetService) Update(ctx context.Context, userID, sheetID string, req UpdateSheetRequest) (*domain.SongSheet, error) {
	req.normalize()
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}
	if req.SongName != nil && *req.SongName == "" {
		return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"song_name": "is required"})
	}

	existing, err := s.sheets.GetSheet(ctx, sheetID)
	if err != nil {
		return nil, err
	}

	updated := existing.Clone()
	req.apply(updated)

	unlock := s.lockIdentities(existing.Identity(), updated.Identity())
	defer unlock()

	siblings, err := s.sheets.FindByIdentity(ctx, updated.Identity())
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to look up existing sheets")
	}
	if conflicts := siblingConflicts(updated, siblings); len(conflicts) > 0 {
		return nil, domainerrors.Conflict("edit disagrees with other versions of this song").WithDetails(conflicts)
	}

	updated.MarkUpdated(userID, s.now())
	if err := s.sheets.UpdateSheet(ctx, updated); err != nil {
		if errors.Is(err, store.ErrVersionExists) {
			return nil, domainerrors.Conflict("another sheet already has this song, key and arranger").WithCause(err)
		}
		return nil, err
	}

	s.logger.Info("Updated song sheet", "sheet_id", updated.ID, "updated_by", userID)
	s.reindex(updated)
	s.events.Emit(sse.NewSheetUpdatedEvent(updated))
	return updated, nil
}

// siblingConflicts checks updated against the other versions of its song.
// Each category, bpm and language value of updated is compared the same way
// a submission would be.
func siblingConflicts(updated *domain.SongSheet, siblings []*domain.SongSheet) []resolver.Conflict {
	var conflicts []resolver.Conflict
	for _, sib := range siblings {
		if sib.ID == updated.ID {
			continue
		}
		probe := resolver.Probe{BPM: updated.BPM, Language: updated.Language}
		found := resolver.Conflicts(sib, probe)
		for _, c := range updated.Category {
			probe := resolver.Probe{Category: c}
			found = append(found, resolver.Conflicts(sib, probe)...)
		}
		for i := range found {
			found[i].SheetID = sib.ID
		}
		conflicts = append(conflicts, found...)
	}
	return conflicts
}

// lockIdentities locks one or two identities in a fixed order.
func (s *SheetService) lockIdentities(a, b domain.Identity) func() {
	ka, kb := a.IndexKey(), b.IndexKey()
	if ka == kb {
		return s.locks.Lock(ka)
	}
	if kb < ka {
		ka, kb = kb, ka
	}
	first := s.locks.Lock(ka)
	second := s.locks.Lock(kb)
	return func() {
		second()
		first()
	}
}

// Delete removes a sheet and, best effort, its page files.
func (s *SheetService) Delete(ctx context.Context, userID, sheetID string) error {
	sh, err := s.sheets.GetSheet(ctx, sheetID)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(sh.Identity().IndexKey())
	defer unlock()

	if err := s.sheets.DeleteSheet(ctx, sheetID); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete sheet")
	}

	if len(sh.ImageIDs) > 0 {
		if err := s.files.DeleteFiles(ctx, sh.ImageIDs); err != nil {
			s.logger.Warn("Failed to delete page files of deleted sheet",
				"sheet_id", sheetID,
				"file_ids", sh.ImageIDs,
				"error", err,
			)
		}
	}

	if s.index != nil {
		if err := s.index.DeleteSheet(sheetID); err != nil {
			s.logger.Warn("Failed to remove sheet from search index", "sheet_id", sheetID, "error", err)
		}
	}

	s.logger.Info("Deleted song sheet", "sheet_id", sheetID, "deleted_by", userID)
	s.events.Emit(sse.NewSheetDeletedEvent(sheetID))
	return nil
}

// DeleteFiles removes uploaded files that were never submitted, e.g. when a
// manager clears the upload form.
func (s *SheetService) DeleteFiles(ctx context.Context, fileIDs []string) error {
	if len(fileIDs) == 0 {
		return domainerrors.BadRequest("file_ids must not be empty")
	}
	if err := s.files.DeleteFiles(ctx, fileIDs); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete files")
	}
	s.logger.Info("Deleted uploaded files", "count", len(fileIDs))
	return nil
}

// Reindex rebuilds the search index from the library and returns the number
// of indexed sheets.
func (s *SheetService) Reindex(ctx context.Context) (int, error) {
	if s.index == nil {
		return 0, domainerrors.Unavailable("search is not available")
	}
	sheets, err := s.sheets.ListSheets(ctx)
	if err != nil {
		return 0, fmt.Errorf("list sheets: %w", err)
	}
	if err := s.index.Rebuild(); err != nil {
		return 0, fmt.Errorf("rebuild index: %w", err)
	}

	docs := make([]*search.SheetDocument, len(sheets))
	for i, sh := range sheets {
		docs[i] = search.SheetToDocument(sh)
	}
	if err := s.index.IndexSheets(docs); err != nil {
		return 0, fmt.Errorf("index sheets: %w", err)
	}
	s.logger.Info("Rebuilt search index", "sheets", len(docs))
	return len(docs), nil
}

func (s *SheetService) reindex(sh *domain.SongSheet) {
	if s.index == nil || sh == nil {
		return
	}
	if err := s.index.IndexSheet(search.SheetToDocument(sh)); err != nil {
		s.logger.Warn("Failed to index sheet", "sheet_id", sh.ID, "error", err)
	}
}
