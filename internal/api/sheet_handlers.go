package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/service"
)

func (s *Server) registerSheetRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID: "submitSheet",
		Method:      http.MethodPost,
		Path:        "/api/v1/sheets",
		Summary:     "Submit song sheet",
		Description: "Resolves an upload against the library. Returns 201 when a new record is created and 200 when an existing version is updated or the submission is rejected as conflicting.",
		Tags:        []string{"Sheets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSubmitSheet)

	huma.Register(s.api, huma.Operation{
		OperationID: "checkSheetIdentity",
		Method:      http.MethodPost,
		Path:        "/api/v1/sheets/check",
		Summary:     "Check song identity",
		Description: "Predicts the outcome of a submission without writing anything",
		Tags:        []string{"Sheets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleCheckSheet)

	huma.Register(s.api, huma.Operation{
		OperationID: "listSheets",
		Method:      http.MethodGet,
		Path:        "/api/v1/sheets",
		Summary:     "List sheets",
		Description: "Returns the library, newest first or by name in Korean order",
		Tags:        []string{"Sheets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleListSheets)

	huma.Register(s.api, huma.Operation{
		OperationID: "searchSheets",
		Method:      http.MethodGet,
		Path:        "/api/v1/sheets/search",
		Summary:     "Search sheets",
		Description: "Full-text search over song names, artists and arrangers",
		Tags:        []string{"Sheets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleSearchSheets)

	huma.Register(s.api, huma.Operation{
		OperationID: "getSheet",
		Method:      http.MethodGet,
		Path:        "/api/v1/sheets/{id}",
		Summary:     "Get sheet",
		Description: "Returns a sheet by ID",
		Tags:        []string{"Sheets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleGetSheet)

	huma.Register(s.api, huma.Operation{
		OperationID: "updateSheet",
		Method:      http.MethodPatch,
		Path:        "/api/v1/sheets/{id}",
		Summary:     "Update sheet",
		Description: "Edits sheet metadata. Omitted fields are unchanged.",
		Tags:        []string{"Sheets"},
		Security:    []map[string][]string{{"bearer": {}}},
	}, s.handleUpdateSheet)

	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteSheet",
		Method:        http.MethodDelete,
		Path:          "/api/v1/sheets/{id}",
		Summary:       "Delete sheet",
		Description:   "Deletes a sheet and its page files",
		Tags:          []string{"Sheets"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteSheet)
}

// === DTOs ===

// PageRequest is one uploaded page, as returned by the upload endpoint.
type PageRequest struct {
	URL          string `json:"url" doc:"Public URL of the page image"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" doc:"Public URL of the thumbnail"`
	FilePath     string `json:"file_path,omitempty" doc:"Storage path of the page image"`
	FileID       string `json:"file_id" doc:"Storage file ID"`
	BlurHash     string `json:"blur_hash,omitempty" doc:"Blur placeholder"`
}

// SubmitSheetRequest is the upload form of a song sheet.
type SubmitSheetRequest struct {
	SongName       string        `json:"song_name" doc:"Song title"`
	SongArtist     string        `json:"song_artist,omitempty" doc:"Artist, may be empty"`
	SongKey        string        `json:"song_key" doc:"Musical key (C, Db, D, ... B)"`
	SongArrangedBy string        `json:"song_arranged_by,omitempty" doc:"Arranger, may be empty"`
	SongCategory   string        `json:"song_category" doc:"One of 상향, 외향, 내향, JOY"`
	SongBPM        string        `json:"song_bpm,omitempty" doc:"Tempo"`
	SongLanguage   string        `json:"song_language" doc:"한국어 or 영어"`
	Pages          []PageRequest `json:"pages" doc:"Uploaded pages in order; the first is the primary image"`
}

// SubmitSheetInput wraps the submit request for Huma.
type SubmitSheetInput struct {
	Body SubmitSheetRequest
}

// SheetResponse contains song sheet data in API responses.
type SheetResponse struct {
	ID             string    `json:"id" doc:"Sheet ID"`
	SongName       string    `json:"song_name" doc:"Song title"`
	SongArtist     string    `json:"song_artist" doc:"Artist"`
	SongKey        string    `json:"song_key" doc:"Musical key"`
	SongArrangedBy string    `json:"song_arranged_by" doc:"Arranger"`
	SongCategory   []string  `json:"song_category" doc:"Worship-flow categories"`
	SongBPM        string    `json:"song_bpm,omitempty" doc:"Tempo"`
	SongLanguage   string    `json:"song_language,omitempty" doc:"Lyric language"`
	Pages          []string  `json:"pages" doc:"Page image URLs in order"`
	ImageIDs       []string  `json:"image_ids" doc:"Storage file IDs, one per page"`
	ImageURL       string    `json:"image_url" doc:"Primary page URL"`
	ThumbnailURL   string    `json:"thumbnail_url,omitempty" doc:"Primary page thumbnail URL"`
	FilePath       string    `json:"file_path" doc:"Primary page storage path"`
	BlurHash       string    `json:"blur_hash,omitempty" doc:"Primary page blur placeholder"`
	UploadedBy     string    `json:"uploaded_by" doc:"User who created the sheet"`
	UpdatedBy      string    `json:"updated_by,omitempty" doc:"User who last changed the sheet"`
	CreatedAt      time.Time `json:"created_at" doc:"Creation time"`
	UpdatedAt      time.Time `json:"updated_at" doc:"Last update time"`
}

// SubmitSheetResponse is the applied outcome of a submission.
type SubmitSheetResponse struct {
	Outcome           string              `json:"outcome" enum:"CREATE,UPDATE,REJECT" doc:"Resolver outcome"`
	SheetID           string              `json:"sheet_id,omitempty" doc:"Created or updated sheet"`
	Sheet             *SheetResponse      `json:"sheet,omitempty" doc:"Sheet after the write"`
	Conflicts         []resolver.Conflict `json:"conflicts" doc:"Why the submission was rejected"`
	Warnings          []resolver.Conflict `json:"warnings" doc:"Disagreements with other versions of the song"`
	SupersededFileIDs []string            `json:"superseded_file_ids,omitempty" doc:"Files of the page set an update replaced"`
	CleanupFailed     bool                `json:"cleanup_failed,omitempty" doc:"Set when rejected uploads could not all be deleted"`
}

// SubmitSheetOutput wraps the submit response for Huma.
type SubmitSheetOutput struct {
	Status int
	Body   SubmitSheetResponse
}

// CheckSheetRequest is a live precheck of the upload form.
type CheckSheetRequest struct {
	SongName       string `json:"song_name" doc:"Song title"`
	SongArtist     string `json:"song_artist,omitempty" doc:"Artist"`
	SongKey        string `json:"song_key" doc:"Musical key"`
	SongArrangedBy string `json:"song_arranged_by,omitempty" doc:"Arranger"`
	SongCategory   string `json:"song_category,omitempty" doc:"Category; compared only when given"`
	SongBPM        string `json:"song_bpm,omitempty" doc:"Tempo; compared only when given"`
	SongLanguage   string `json:"song_language,omitempty" doc:"Language; compared only when given"`
}

// CheckSheetInput wraps the check request for Huma.
type CheckSheetInput struct {
	Body CheckSheetRequest
}

// CheckSheetOutput wraps the check result for Huma.
type CheckSheetOutput struct {
	Body *resolver.CheckResult
}

// ListSheetsInput contains filters for listing sheets.
type ListSheetsInput struct {
	Sort     string `query:"sort" enum:"newest,name" default:"newest" doc:"Sort order"`
	Key      string `query:"key" doc:"Only sheets in this key"`
	Category string `query:"category" doc:"Only sheets with this category"`
	Language string `query:"language" doc:"Only sheets in this language"`
}

// ListSheetsResponse contains a list of sheets.
type ListSheetsResponse struct {
	Sheets []SheetResponse `json:"sheets" doc:"Sheets"`
	Total  int             `json:"total" doc:"Number of sheets"`
}

// ListSheetsOutput wraps the list response for Huma.
type ListSheetsOutput struct {
	Body ListSheetsResponse
}

// SearchSheetsInput contains search parameters.
type SearchSheetsInput struct {
	Query    string `query:"q" required:"true" minLength:"1" doc:"Search text"`
	Key      string `query:"key" doc:"Only sheets in this key"`
	Category string `query:"category" doc:"Only sheets with this category"`
	Language string `query:"language" doc:"Only sheets in this language"`
	Limit    int    `query:"limit" default:"20" minimum:"1" maximum:"100" doc:"Page size"`
	Offset   int    `query:"offset" default:"0" minimum:"0" doc:"Hits to skip"`
}

// SearchSheetsOutput wraps the search result for Huma.
type SearchSheetsOutput struct {
	Body *search.SearchResult
}

// SheetIDInput addresses one sheet.
type SheetIDInput struct {
	ID string `path:"id" doc:"Sheet ID"`
}

// UpdateSheetInput wraps a metadata edit for Huma.
type UpdateSheetInput struct {
	ID   string `path:"id" doc:"Sheet ID"`
	Body service.UpdateSheetRequest
}

// SheetOutput wraps a sheet response for Huma.
type SheetOutput struct {
	Body SheetResponse
}

// === Handlers ===

func (s *Server) handleSubmitSheet(ctx context.Context, input *SubmitSheetInput) (*SubmitSheetOutput, error) {
	user, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	pages := make([]domain.Page, len(input.Body.Pages))
	for i, p := range input.Body.Pages {
		pages[i] = domain.Page{
			URL:          p.URL,
			ThumbnailURL: p.ThumbnailURL,
			FilePath:     p.FilePath,
			FileID:       p.FileID,
			BlurHash:     p.BlurHash,
		}
	}
	if err := s.checkUploadsExist(pages); err != nil {
		return nil, err
	}

	result, err := s.services.Sheet.Submit(ctx, resolver.Submission{
		SongName:       input.Body.SongName,
		SongArtist:     input.Body.SongArtist,
		SongKey:        input.Body.SongKey,
		SongArrangedBy: input.Body.SongArrangedBy,
		SongCategory:   input.Body.SongCategory,
		SongBPM:        input.Body.SongBPM,
		SongLanguage:   input.Body.SongLanguage,
		Pages:          pages,
		UserID:         user.ID,
	})
	if err != nil {
		return nil, err
	}

	status := http.StatusOK
	if result.Outcome == resolver.OutcomeCreate {
		status = http.StatusCreated
	}

	resp := SubmitSheetResponse{
		Outcome:           string(result.Outcome),
		SheetID:           result.SheetID,
		Conflicts:         nonNil(result.Conflicts),
		Warnings:          nonNil(result.Warnings),
		SupersededFileIDs: result.SupersededFileIDs,
		CleanupFailed:     result.CleanupFailed,
	}
	if result.Sheet != nil {
		sheet := mapSheet(result.Sheet)
		resp.Sheet = &sheet
	}
	return &SubmitSheetOutput{Status: status, Body: resp}, nil
}

// checkUploadsExist rejects pages that reference files this server never stored.
func (s *Server) checkUploadsExist(pages []domain.Page) error {
	if s.storage == nil || s.storage.Pages == nil {
		return nil
	}
	details := make(map[string]string)
	for i, p := range pages {
		if p.FileID != "" && !s.storage.Pages.Exists(p.FileID) {
			details[fmt.Sprintf("pages[%d].file_id", i)] = "unknown upload"
		}
	}
	if len(details) > 0 {
		return domainerrors.ValidationWithDetails("invalid submission", details)
	}
	return nil
}

func (s *Server) handleCheckSheet(ctx context.Context, input *CheckSheetInput) (*CheckSheetOutput, error) {
	if _, err := RequireManager(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Sheet.Check(ctx, resolver.Query{
		SongName:       input.Body.SongName,
		SongArtist:     input.Body.SongArtist,
		SongKey:        input.Body.SongKey,
		SongArrangedBy: input.Body.SongArrangedBy,
		SongCategory:   input.Body.SongCategory,
		SongBPM:        input.Body.SongBPM,
		SongLanguage:   input.Body.SongLanguage,
	})
	if err != nil {
		return nil, err
	}
	result.Versions = nonNil(result.Versions)
	result.Conflicts = nonNil(result.Conflicts)
	result.Warnings = nonNil(result.Warnings)
	return &CheckSheetOutput{Body: result}, nil
}

func (s *Server) handleListSheets(ctx context.Context, input *ListSheetsInput) (*ListSheetsOutput, error) {
	if _, err := RequireUser(ctx); err != nil {
		return nil, err
	}

	sheets, err := s.services.Sheet.List(ctx, service.ListSheetsParams{
		Sort:     input.Sort,
		Key:      input.Key,
		Category: input.Category,
		Language: input.Language,
	})
	if err != nil {
		return nil, err
	}

	resp := ListSheetsResponse{
		Sheets: make([]SheetResponse, len(sheets)),
		Total:  len(sheets),
	}
	for i, sh := range sheets {
		resp.Sheets[i] = mapSheet(sh)
	}
	return &ListSheetsOutput{Body: resp}, nil
}

func (s *Server) handleSearchSheets(ctx context.Context, input *SearchSheetsInput) (*SearchSheetsOutput, error) {
	if _, err := RequireUser(ctx); err != nil {
		return nil, err
	}

	result, err := s.services.Sheet.Search(ctx, search.SearchParams{
		Query:    input.Query,
		Key:      input.Key,
		Category: input.Category,
		Language: input.Language,
		Limit:    input.Limit,
		Offset:   input.Offset,
	})
	if err != nil {
		return nil, err
	}
	result.Hits = nonNil(result.Hits)
	return &SearchSheetsOutput{Body: result}, nil
}

func (s *Server) handleGetSheet(ctx context.Context, input *SheetIDInput) (*SheetOutput, error) {
	if _, err := RequireUser(ctx); err != nil {
		return nil, err
	}

	sheet, err := s.services.Sheet.Get(ctx, input.ID)
	if err != nil {
		return nil, err
	}
	return &SheetOutput{Body: mapSheet(sheet)}, nil
}

func (s *Server) handleUpdateSheet(ctx context.Context, input *UpdateSheetInput) (*SheetOutput, error) {
	user, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	sheet, err := s.services.Sheet.Update(ctx, user.ID, input.ID, input.Body)
	if err != nil {
		return nil, err
	}
	return &SheetOutput{Body: mapSheet(sheet)}, nil
}

func (s *Server) handleDeleteSheet(ctx context.Context, input *SheetIDInput) (*struct{}, error) {
	user, err := RequireManager(ctx)
	if err != nil {
		return nil, err
	}

	if err := s.services.Sheet.Delete(ctx, user.ID, input.ID); err != nil {
		return nil, err
	}
	return nil, nil
}

// === Helpers ===

func mapSheet(sh *domain.SongSheet) SheetResponse {
	categories := make([]string, len(sh.Category))
	for i, c := range sh.Category {
		categories[i] = string(c)
	}
	return SheetResponse{
		ID:             sh.ID,
		SongName:       sh.Name,
		SongArtist:     sh.Artist,
		SongKey:        string(sh.Key),
		SongArrangedBy: sh.ArrangedBy,
		SongCategory:   categories,
		SongBPM:        sh.BPM,
		SongLanguage:   string(sh.Language),
		Pages:          nonNil(sh.Pages),
		ImageIDs:       nonNil(sh.ImageIDs),
		ImageURL:       sh.ImageURL,
		ThumbnailURL:   sh.ThumbnailURL,
		FilePath:       sh.FilePath,
		BlurHash:       sh.BlurHash,
		UploadedBy:     sh.UploadedBy,
		UpdatedBy:      sh.UpdatedBy,
		CreatedAt:      sh.CreatedAt,
		UpdatedAt:      sh.UpdatedAt,
	}
}

// nonNil keeps empty lists as [] rather than null on the wire.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
