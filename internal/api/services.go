package api

import (
	"github.com/contiapp/conti-server/internal/media/images"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/service"
)

// Services groups all business logic services used by the API server.
// This reduces the parameter count for NewServer and improves testability.
type Services struct {
	Auth    *service.AuthService
	User    *service.UserService
	Sheet   *service.SheetService
	Setlist *service.SetlistService
	Team    *service.TeamService
	Search  *search.SearchIndex // Only read by the health check
}

// StorageServices groups file storage handlers used by the API server.
type StorageServices struct {
	Pages *images.Storage // Uploaded sheet pages and their thumbnails
}
