package store

import (
	"context"

	"github.com/contiapp/conti-server/internal/domain"
)

// SheetRepository is the song sheet library. *Store implements it on Badger and
// mongostore.SheetRepository implements it on MongoDB.
type SheetRepository interface {
	// FindByIdentity returns every version of the song, in no particular order.
	FindByIdentity(ctx context.Context, identity domain.Identity) ([]*domain.SongSheet, error)
	GetSheet(ctx context.Context, id string) (*domain.SongSheet, error)
	// CreateSheet assigns an id when sheet.ID is empty. A second sheet with
	// the same version fails with ErrVersionExists.
	CreateSheet(ctx context.Context, sheet *domain.SongSheet) error
	UpdateSheet(ctx context.Context, sheet *domain.SongSheet) error
	DeleteSheet(ctx context.Context, id string) error
	ListSheets(ctx context.Context) ([]*domain.SongSheet, error)
}

var _ SheetRepository = (*Store)(nil)
