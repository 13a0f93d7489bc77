// Package providers contains dependency injection providers for the Conti server.
package providers

import (
	"os"

	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/logger"
)

// ProvideConfig provides the application configuration.
func ProvideConfig(i do.Injector) (*config.Config, error) {
	return config.LoadConfig(os.Args[1:])
}

// ProvideLogger provides the structured logger.
func ProvideLogger(i do.Injector) (*logger.Logger, error) {
	cfg := do.MustInvoke[*config.Config](i)

	log := logger.New(logger.Config{
		Format:      cfg.Logger.Format,
		Level:       logger.ParseLevel(cfg.Logger.Level),
		AddSource:   cfg.App.Environment == "development",
		Environment: cfg.App.Environment,
	})

	log.Info("Starting Conti Server",
		"environment", cfg.App.Environment,
		"log_level", cfg.Logger.Level,
		"metadata_path", cfg.Metadata.BasePath,
		"db_driver", cfg.Database.Driver,
		"strict_identity", cfg.Resolver.StrictIdentity,
	)

	return log, nil
}
