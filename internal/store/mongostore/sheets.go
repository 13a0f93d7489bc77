package mongostore

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/id"
	"github.com/contiapp/conti-server/internal/store"
)

// SheetRepository stores sheets in the music_sheets collection.
type SheetRepository struct {
	coll Collection
}

var _ store.SheetRepository = (*SheetRepository)(nil)

// NewSheetRepository wraps coll.
func NewSheetRepository(coll Collection) *SheetRepository {
	return &SheetRepository{coll: coll}
}

func identityFilter(identity domain.Identity) bson.M {
	return bson.M{"songName": identity.Name, "songArtist": identity.Artist}
}

func idFilter(sheetID string) bson.M {
	return bson.M{"_id": sheetID}
}

// FindByIdentity returns all versions sharing name and artist.
func (r *SheetRepository) FindByIdentity(ctx context.Context, identity domain.Identity) ([]*domain.SongSheet, error) {
	return r.find(ctx, identityFilter(identity))
}

// GetSheet loads one sheet.
func (r *SheetRepository) GetSheet(ctx context.Context, sheetID string) (*domain.SongSheet, error) {
	var sheet domain.SongSheet
	if err := r.coll.FindOne(ctx, idFilter(sheetID)).Decode(&sheet); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, store.ErrSheetNotFound
		}
		return nil, fmt.Errorf("get sheet: %w", err)
	}
	return &sheet, nil
}

// CreateSheet inserts a sheet. The unique version index rejects a second
// document with the same name, artist, key and arranger.
func (r *SheetRepository) CreateSheet(ctx context.Context, sheet *domain.SongSheet) error {
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
	if err := r.coll.InsertOne(ctx, sheet); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrVersionExists
		}
		return fmt.Errorf("create sheet: %w", err)
	}
	return nil
}

// UpdateSheet replaces the stored document.
func (r *SheetRepository) UpdateSheet(ctx context.Context, sheet *domain.SongSheet) error {
	if err := sheet.CheckPages(); err != nil {
		return err
	}
	matched, err := r.coll.ReplaceOne(ctx, idFilter(sheet.ID), sheet)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return store.ErrVersionExists
		}
		return fmt.Errorf("update sheet: %w", err)
	}
	if matched == 0 {
		return store.ErrSheetNotFound
	}
	return nil
}

// DeleteSheet removes a sheet. Missing sheets are not an error.
func (r *SheetRepository) DeleteSheet(ctx context.Context, sheetID string) error {
	if _, err := r.coll.DeleteOne(ctx, idFilter(sheetID)); err != nil {
		return fmt.Errorf("delete sheet: %w", err)
	}
	return nil
}

// ListSheets returns every sheet, newest first.
func (r *SheetRepository) ListSheets(ctx context.Context) ([]*domain.SongSheet, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	return r.find(ctx, bson.M{}, opts)
}

func (r *SheetRepository) find(ctx context.Context, filter any, opts ...*options.FindOptions) ([]*domain.SongSheet, error) {
	cur, err := r.coll.Find(ctx, filter, opts...)
	if err != nil {
		return nil, fmt.Errorf("find sheets: %w", err)
	}
	defer cur.Close(ctx)

	sheets := []*domain.SongSheet{}
	if err := cur.All(ctx, &sheets); err != nil {
		return nil, fmt.Errorf("decode sheets: %w", err)
	}
	return sheets, nil
}
