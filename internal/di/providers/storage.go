package providers

import (
	"fmt"

	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/logger"
	"github.com/contiapp/conti-server/internal/media/images"
)

// ProvidePageStorage provides storage for uploaded sheet pages.
func ProvidePageStorage(i do.Injector) (*images.Storage, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	pages, err := images.NewStorage(
		cfg.Storage.UploadPath,
		cfg.Server.PublicURL+"/uploads",
		cfg.Storage.ThumbnailWidth,
		log.Logger,
	)
	if err != nil {
		return nil, fmt.Errorf("page storage: %w", err)
	}

	log.Info("Page storage initialized",
		"path", cfg.Storage.UploadPath,
		"max_upload_bytes", cfg.Storage.MaxUploadBytes,
	)

	return pages, nil
}
