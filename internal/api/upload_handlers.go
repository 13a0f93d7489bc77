package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	"github.com/go-chi/chi/v5"

	"github.com/contiapp/conti-server/internal/http/response"
	"github.com/contiapp/conti-server/internal/media/images"
)

// multipartOverhead is the room left for form boundaries and headers on top
// of the file itself.
const multipartOverhead = 64 << 10

func (s *Server) registerUploadRoutes() {
	huma.Register(s.api, huma.Operation{
		OperationID:   "deleteUploads",
		Method:        http.MethodPost,
		Path:          "/api/v1/uploads/delete",
		Summary:       "Delete uploads",
		Description:   "Removes uploaded page files that were never submitted, e.g. when the upload form is cleared",
		Tags:          []string{"Uploads"},
		Security:      []map[string][]string{{"bearer": {}}},
		DefaultStatus: http.StatusNoContent,
	}, s.handleDeleteUploads)

	// Direct chi routes for multipart upload and file streaming
	s.router.Post("/api/v1/uploads", s.handleUploadPage)
	s.router.Get("/uploads/{file}", s.handleServeUpload)
}

// === DTOs ===

// DeleteUploadsRequest lists the files to remove.
type DeleteUploadsRequest struct {
	FileIDs []string `json:"file_ids" doc:"Storage file IDs"`
}

// DeleteUploadsInput wraps the delete request for Huma.
type DeleteUploadsInput struct {
	Body DeleteUploadsRequest
}

// === Handlers ===

func (s *Server) handleDeleteUploads(ctx context.Context, input *DeleteUploadsInput) (*struct{}, error) {
	if _, err := RequireManager(ctx); err != nil {
		return nil, err
	}
	if err := s.services.Sheet.DeleteFiles(ctx, input.Body.FileIDs); err != nil {
		return nil, err
	}
	return nil, nil
}

// handleUploadPage stores one page image sent as the "file" field of a
// multipart form and returns its locators.
func (s *Server) handleUploadPage(w http.ResponseWriter, r *http.Request) {
	user, err := RequireManager(r.Context())
	if err != nil {
		response.HandleError(w, err, s.logger)
		return
	}
	if s.storage == nil || s.storage.Pages == nil {
		response.Error(w, http.StatusServiceUnavailable, "Uploads are not configured", s.logger)
		return
	}

	maxSize := s.opts.MaxUploadBytes
	r.Body = http.MaxBytesReader(w, r.Body, maxSize+multipartOverhead)
	if err := r.ParseMultipartForm(maxSize); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.BadRequest(w, "File too large. Maximum size is "+strconv.FormatInt(maxSize, 10)+" bytes", s.logger)
			return
		}
		response.BadRequest(w, "Failed to parse form data", s.logger)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "No file uploaded. Use 'file' field in multipart form", s.logger)
		return
	}
	defer file.Close()

	if header.Size > maxSize {
		response.BadRequest(w, "File too large. Maximum size is "+strconv.FormatInt(maxSize, 10)+" bytes", s.logger)
		return
	}

	data, err := io.ReadAll(file)
	if err != nil {
		s.logger.Error("Failed to read uploaded file", "error", err)
		response.InternalError(w, "Failed to read uploaded file", s.logger)
		return
	}

	upload, err := s.storage.Pages.Save(r.Context(), data)
	if err != nil {
		if errors.Is(err, images.ErrUnsupportedFormat) {
			response.BadRequest(w, "Invalid image format. Supported formats: JPEG, PNG, WebP, GIF", s.logger)
			return
		}
		s.logger.Error("Failed to save uploaded page", "error", err, "user_id", user.ID)
		response.InternalError(w, "Failed to save uploaded file", s.logger)
		return
	}

	s.logger.Info("Stored uploaded page",
		"file_id", upload.FileID,
		"size", upload.Size,
		"content_type", upload.ContentType,
		"user_id", user.ID,
	)
	response.Created(w, upload, s.logger)
}

// handleServeUpload streams a stored page or thumbnail. File names are fresh
// UUIDs, so responses never change and can be cached for long.
func (s *Server) handleServeUpload(w http.ResponseWriter, r *http.Request) {
	if s.storage == nil || s.storage.Pages == nil {
		response.NotFound(w, "file not found", s.logger)
		return
	}

	fileID := chi.URLParam(r, "file")
	f, err := s.storage.Pages.Open(fileID)
	if err != nil {
		switch {
		case errors.Is(err, images.ErrInvalidFileID), errors.Is(err, images.ErrFileNotFound):
			response.NotFound(w, "file not found", s.logger)
		default:
			s.logger.Error("Failed to open upload", "file_id", fileID, "error", err)
			response.InternalError(w, "failed to read file", s.logger)
		}
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		response.InternalError(w, "failed to read file", s.logger)
		return
	}

	w.Header().Set("Content-Type", images.ContentTypeForExt(strings.TrimPrefix(filepath.Ext(fileID), ".")))
	w.Header().Set("Cache-Control", CacheOneWeek)
	http.ServeContent(w, r, fileID, info.ModTime(), f)
}
