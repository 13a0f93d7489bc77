package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/id"
)

// FindByIdentity returns all versions sharing name and artist.
func (s *Store) FindByIdentity(ctx context.Context, identity domain.Identity) ([]*domain.SongSheet, error) {
	sheets, err := s.Sheets.ListByIndex(ctx, "identity", identity.IndexKey())
	if err != nil {
		return nil, fmt.Errorf("find sheets by identity: %w", err)
	}
	return sheets, nil
}

// GetSheet loads one sheet.
func (s *Store) GetSheet(ctx context.Context, sheetID string) (*domain.SongSheet, error) {
	sheet, err := s.Sheets.Get(ctx, sheetID)
	if err != nil {
		return nil, translate(err, ErrSheetNotFound)
	}
	return sheet, nil
}

// CreateSheet persists a new sheet. The version index is checked inside the
// write transaction, so two concurrent creates of one version cannot both win.
func (s *Store) CreateSheet(ctx context.Context, sheet *domain.SongSheet) error {
	if err := sheet.CheckPages(); err != nil {
		return err
	}
	if sheet.ID == "" {
		sheetID, err := id.Generate(id.PrefixSheet)
		if err != nil {
			return err
		}
		sheet.ID = sheetID
	}

	if err := s.Sheets.Create(ctx, sheet.ID, sheet); err != nil {
		// A transaction conflict here means another writer touched the same
		// version index key first.
		if errors.Is(err, ErrAlreadyExists) || errors.Is(err, badger.ErrConflict) {
			return ErrVersionExists
		}
		return fmt.Errorf("create sheet: %w", err)
	}
	return nil
}

// UpdateSheet replaces a sheet. Renaming it onto another existing version fails with ErrVersionExists.
func (s *Store) UpdateSheet(ctx context.Context, sheet *domain.SongSheet) error {
	if err := sheet.CheckPages(); err != nil {
		return err
	}
	err := s.Sheets.Update(ctx, sheet.ID, sheet)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound):
		return ErrSheetNotFound
	case errors.Is(err, ErrAlreadyExists):
		return ErrVersionExists
	default:
		return fmt.Errorf("update sheet: %w", err)
	}
}

// DeleteSheet removes a sheet. Missing sheets are not an error.
func (s *Store) DeleteSheet(ctx context.Context, sheetID string) error {
	return s.Sheets.Delete(ctx, sheetID)
}

// ListSheets returns every sheet in key order.
func (s *Store) ListSheets(ctx context.Context) ([]*domain.SongSheet, error) {
	return s.Sheets.Collect(ctx)
}
