package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"time"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/id"
	"github.com/contiapp/conti-server/internal/normalize"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/validation"
)

// SetlistService manages users' setlists.
type SetlistService struct {
	store     *store.Store
	sheets    store.SheetRepository
	events    EventEmitter
	validator *validation.Validator
	logger    *slog.Logger
	now       func() time.Time
}

// NewSetlistService creates a setlist service.
func NewSetlistService(
	store *store.Store,
	sheets store.SheetRepository,
	events EventEmitter,
	validator *validation.Validator,
	logger *slog.Logger,
) *SetlistService {
	return &SetlistService{
		store:     store,
		sheets:    sheets,
		events:    emitterOrDiscard(events),
		validator: validator,
		logger:    logger,
		now:       time.Now,
	}
}

// CreateSetlistRequest creates a setlist from sheet ids in order.
type CreateSetlistRequest struct {
	Name       string   `json:"name" validate:"required,max=100"`
	TargetDate string   `json:"target_date" validate:"date"`
	SheetIDs   []string `json:"sheet_ids" validate:"max=50,dive,required"`
}

// UpdateSetlistRequest edits a setlist. Nil fields are left alone. A non-nil
// SheetIDs replaces the song list, keeping the existing snapshot of songs that stay.
type UpdateSetlistRequest struct {
	Name       *string  `json:"name,omitempty" validate:"omitempty,max=100"`
	TargetDate *string  `json:"target_date,omitempty" validate:"omitempty,date"`
	SheetIDs   []string `json:"sheet_ids,omitempty" validate:"omitempty,max=50,dive,required"`
}

// Create builds a new setlist owned by userID.
func (s *SetlistService) Create(ctx context.Context, userID string, req CreateSetlistRequest) (*domain.Setlist, error) {
	req.Name = normalize.Text(req.Name)
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	songs, err := s.snapshot(ctx, req.SheetIDs, nil)
	if err != nil {
		return nil, err
	}

	setlistID, err := id.Generate(id.PrefixSetlist)
	if err != nil {
		return nil, err
	}
	setlist := &domain.Setlist{
		Name:       req.Name,
		TargetDate: req.TargetDate,
		OwnerID:    userID,
		Songs:      songs,
	}
	setlist.ID = setlistID
	setlist.InitTimestamps(s.now())

	if err := s.store.CreateSetlist(ctx, setlist); err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to create setlist")
	}

	s.logger.Info("Created setlist", "setlist_id", setlist.ID, "owner_id", userID, "songs", len(songs))
	s.events.Emit(sse.NewSetlistEvent(sse.EventSetlistCreated, setlist))
	return setlist, nil
}

// snapshot resolves sheet ids into setlist songs. Songs already present in
// keep are reused so later sheet edits do not leak into the setlist.
func (s *SetlistService) snapshot(ctx context.Context, sheetIDs []string, keep []domain.SetlistSong) ([]domain.SetlistSong, error) {
	kept := make(map[string]domain.SetlistSong, len(keep))
	for _, song := range keep {
		kept[song.SheetID] = song
	}

	songs := make([]domain.SetlistSong, 0, len(sheetIDs))
	for _, sheetID := range sheetIDs {
		if song, ok := kept[sheetID]; ok {
			songs = append(songs, song)
			continue
		}
		sheet, err := s.sheets.GetSheet(ctx, sheetID)
		if err != nil {
			if domainerrors.CodeOf(err) == domainerrors.CodeNotFound {
				return nil, domainerrors.ValidationWithDetails("unknown sheet in setlist", map[string]string{"sheet_ids": sheetID})
			}
			return nil, err
		}
		songs = append(songs, domain.SnapshotSheet(sheet))
	}
	return songs, nil
}

// ListMine returns userID's setlists, upcoming target dates first and
// undated ones last.
func (s *SetlistService) ListMine(ctx context.Context, userID string) ([]*domain.Setlist, error) {
	setlists, err := s.store.ListSetlistsByOwner(ctx, userID)
	if err != nil {
		return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to list setlists")
	}
	slices.SortFunc(setlists, func(a, b *domain.Setlist) int {
		if (a.TargetDate == "") != (b.TargetDate == "") {
			if a.TargetDate == "" {
				return 1
			}
			return -1
		}
		return cmp.Or(
			cmp.Compare(b.TargetDate, a.TargetDate),
			b.UpdatedAt.Compare(a.UpdatedAt),
		)
	})
	return setlists, nil
}

// Get loads a setlist. Setlist ids are shared with team members through the
// calendar, so any signed-in user may read one.
func (s *SetlistService) Get(ctx context.Context, setlistID string) (*domain.Setlist, error) {
	return s.store.GetSetlist(ctx, setlistID)
}

// Slides flattens a setlist into presentation slides.
func (s *SetlistService) Slides(ctx context.Context, setlistID string) ([]domain.Slide, error) {
	setlist, err := s.store.GetSetlist(ctx, setlistID)
	if err != nil {
		return nil, err
	}
	return setlist.Slides(), nil
}

func (s *SetlistService) getOwned(ctx context.Context, userID, setlistID string) (*domain.Setlist, error) {
	setlist, err := s.store.GetSetlist(ctx, setlistID)
	if err != nil {
		return nil, err
	}
	if setlist.OwnerID != userID {
		return nil, domainerrors.Forbidden("only the owner can change this setlist")
	}
	return setlist, nil
}

// Update edits a setlist owned by userID.
func (s *SetlistService) Update(ctx context.Context, userID, setlistID string, req UpdateSetlistRequest) (*domain.Setlist, error) {
	if req.Name != nil {
		*req.Name = normalize.Text(*req.Name)
		if *req.Name == "" {
			return nil, domainerrors.ValidationWithDetails("validation failed", map[string]string{"name": "is required"})
		}
	}
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	setlist, err := s.getOwned(ctx, userID, setlistID)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		setlist.Name = *req.Name
	}
	if req.TargetDate != nil {
		setlist.TargetDate = *req.TargetDate
	}
	if req.SheetIDs != nil {
		songs, err := s.snapshot(ctx, req.SheetIDs, setlist.Songs)
		if err != nil {
			return nil, err
		}
		setlist.Songs = songs
	}
	setlist.Touch(s.now())

	if err := s.store.UpdateSetlist(ctx, setlist); err != nil {
		return nil, err
	}

	s.events.Emit(sse.NewSetlistEvent(sse.EventSetlistUpdated, setlist))
	return setlist, nil
}

// Delete removes a setlist owned by userID.
func (s *SetlistService) Delete(ctx context.Context, userID, setlistID string) error {
	if _, err := s.getOwned(ctx, userID, setlistID); err != nil {
		return err
	}
	if err := s.store.DeleteSetlist(ctx, setlistID); err != nil {
		return domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to delete setlist")
	}
	s.logger.Info("Deleted setlist", "setlist_id", setlistID, "owner_id", userID)
	s.events.Emit(sse.NewSetlistDeletedEvent(userID, setlistID))
	return nil
}
