package api

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/contiapp/conti-server/internal/domain"
	"github.com/contiapp/conti-server/internal/service"
)

func (s *Server) registerSetlistRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "createSetlist",
		Method:        http.MethodPost,
		Path:          "/api/v1/setlists",
		Summary:       "Create setlist",
		Description:   "Creates a setlist from sheets in order. Each song is a snapshot of the sheet at this moment.",
		Tags:          []string{"Setlists"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusCreated,
	}, s.handleCreateSetlist)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSetlists",
		Method:      http.MethodGet,
		Path:        "/api/v1/setlists",
		Summary:     "List my setlists",
		Description: "Returns the current user's setlists, latest service date first",
		Tags:        []string{"Setlists"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListSetlists)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSetlist",
		Method:      http.MethodGet,
		Path:        "/api/v1/setlists/{id}",
		Summary:     "Get setlist",
		Description: "Returns a setlist by ID",
		Tags:        []string{"Setlists"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSetlist)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSetlist",
		Method:      http.MethodPatch,
		Path:        "/api/v1/setlists/{id}",
		Summary:     "Update setlist",
		Description: "Renames, re-dates, reorders or replaces songs. Owner only.",
		Tags:        []string{"Setlists"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateSetlist)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSetlist",
		Method:        http.MethodDelete,
		Path:          "/api/v1/setlists/{id}",
		Summary:       "Delete setlist",
		Description:   "Deletes a setlist. Owner only.",
		Tags:          []string{"Setlists"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSetlist)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSetlistSlides",
		Method:      http.MethodGet,
		Path:        "/api/v1/setlists/{id}/slides",
		Summary:     "Get setlist slides",
		Description: "Flattens the setlist into one slide per sheet page for presentation",
		Tags:        []string{"Setlists"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSetlistSlides)
}

// === DTOs ===

// SetlistSongResponse is a song snapshot inside a setlist.
type SetlistSongResponse struct {
	SheetID        string   `json:"sheet_id" doc:"Sheet the snapshot was taken from"`
	SongName       string   `json:"song_name" doc:"Song title"`
	SongArtist     string   `json:"song_artist" doc:"Artist"`
	SongKey        string   `json:"song_key" doc:"Musical key"`
	SongArrangedBy string   `json:"song_arranged_by,omitempty" doc:"Arranger"`
	SongBPM        string   `json:"song_bpm,omitempty" doc:"Tempo"`
	Pages          []string `json:"pages" doc:"Page image URLs"`
	ImageURL       string   `json:"image_url,omitempty" doc:"Primary page URL"`
}

// SetlistResponse contains setlist data in API responses.
type SetlistResponse struct {
	ID         string                `json:"id" doc:"Setlist ID"`
	Name       string                `json:"name" doc:"Setlist name"`
	TargetDate string                `json:"target_date,omitempty" doc:"Service date (YYYY-MM-DD)"`
	OwnerID    string                `json:"owner_id" doc:"Owner user ID"`
	Songs      []SetlistSongResponse `json:"songs" doc:"Songs in order"`
	CreatedAt  time.Time             `json:"created_at" doc:"Creation time"`
	UpdatedAt  time.Time             `json:"updated_at" doc:"Last update time"`
}

// SetlistOutput wraps a setlist response for Huma.
type SetlistOutput struct {
	Body SetlistResponse
}

// CreateSetlistInput wraps the create request for Huma.
type CreateSetlistInput struct {
	Body struct {
		Name       string   `json:"name" minLength:"1" maxLength:"100" doc:"Setlist name"`
		TargetDate string   `json:"target_date,omitempty" doc:"Service date (YYYY-MM-DD)"`
		SheetIDs   []string `json:"sheet_ids,omitempty" maxItems:"50" doc:"Sheets in order"`
	}
}

// ListSetlistsResponse contains a list of setlists.
type ListSetlistsResponse struct {
	Setlists []SetlistResponse `json:"setlists" doc:"Setlists"`
}

// ListSetlistsOutput wraps the list response for Huma.
type ListSetlistsOutput struct {
	Body ListSetlistsResponse
}

// SetlistIDInput addresses one setlist.
type SetlistIDInput struct {
	ID string `path:"id" doc:"Setlist ID"`
}

// UpdateSetlistInput wraps an edit for Huma.
type UpdateSetlistInput struct {
	ID   string `path:"id" doc:"Setlist ID"`
	Body service.UpdateSetlistRequest
}

// SlidesResponse is a setlist flattened into pages.
type SlidesResponse struct {
	SetlistID string         `json:"setlist_id" doc:"Setlist ID"`
	Slides    []domain.Slide `json:"slides" doc:"One slide per page, in order"`
}

// SlidesOutput wraps the slides response for Huma.
type SlidesOutput struct {
	Body SlidesResponse
}

// === Handlers ===

func (s *Server) handleCreateSetlist(ctx context.Context, input *CreateSetlistInput) (*SetlistOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	setlist, err := s.services.Setlist.Create(ctx, userID, service.CreateSetlistRequest{
		Name:       input.Body.Name,
		TargetDate: input.Body.TargetDate,
		SheetIDs:   input.Body.SheetIDs,
	})
	if err != nil {
		return nil, err
	}
	return &SetlistOutput{Body: mapSetlist(setlist)}, nil
}

func (s *Server) handleListSetlists(ctx context.Context, _ *struct{}) (*ListSetlistsOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	setlists, err := s.services.Setlist.ListMine(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := ListSetlistsResponse{Setlists: make([]SetlistResponse, len(setlists))}
	for i, sl := range setlists {
		resp.Setlists[i] = mapSetlist(sl)
	}
	return &ListSetlistsOutput{Body: resp}, nil
}

func (s *Server) handleGetSetlist(ctx context.Context, input *SetlistIDInput) (*SetlistOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	setlist, err := s.services.Setlist.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &SetlistOutput{Body: mapSetlist(setlist)}, nil
}

func (s *Server) handleUpdateSetlist(ctx context.Context, input *UpdateSetlistInput) (*SetlistOutput, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	setlist, err := s.services.Setlist.Update(ctx, userID, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &SetlistOutput{Body: mapSetlist(setlist)}, nil
}

func (s *Server) handleDeleteSetlist(ctx context.Context, input *SetlistIDInput) (*struct{}, error) {
	userID, err := GetUserID(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Setlist.Delete(ctx, userID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

func (s *Server) handleGetSetlistSlides(ctx context.Context, input *SetlistIDInput) (*SlidesOutput, error) {
	if _, err := GetUserID(ctx); err != nil {
		return nil, err
	}

	slides, err := s.services.Setlist.Slides(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &SlidesOutput{Body: SlidesResponse{SetlistID: input.ID, Slides: nonNil(slides)}}, nil
}

// === Helpers ===

func mapSetlist(sl *domain.Setlist) SetlistResponse {
	songs := make([]SetlistSongResponse, len(sl.Songs))
	for i, song := range sl.Songs {
		songs[i] = SetlistSongResponse{
			SheetID:        song.SheetID,
			SongName:       song.Name,
			SongArtist:     song.Artist,
			SongKey:        string(song.Key),
			SongArrangedBy: song.ArrangedBy,
			SongBPM:        song.BPM,
			Pages:          nonNil(song.Pages),
			ImageURL:       song.ImageURL,
		}
	}
	return SetlistResponse{
		ID:         sl.ID,
		Name:       sl.Name,
		TargetDate: sl.TargetDate,
		OwnerID:    sl.OwnerID,
		Songs:      songs,
		CreatedAt:  sl.CreatedAt,
		UpdatedAt:  sl.UpdatedAt,
	}
}
