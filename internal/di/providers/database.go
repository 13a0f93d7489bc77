package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/samber/do/v2"

	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/logger"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/store/mongostore"
)

// SSEManagerHandle wraps the SSE manager with its context for lifecycle management.
type SSEManagerHandle struct {
	*sse.Manager
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable.
func (h *SSEManagerHandle) Shutdown() error {
	h.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.Manager.Shutdown(ctx)
}

// ProvideSSEManager provides the server-sent events manager.
func ProvideSSEManager(i do.Injector) (*SSEManagerHandle, error) {
	log := do.MustInvoke[*logger.Logger](i)

	manager := sse.NewManager(log.Logger)

	// Start in background
	ctx, cancel := context.WithCancel(context.Background())
	go manager.Start(ctx)

	log.Info("SSE manager started")

	return &SSEManagerHandle{
		Manager: manager,
		cancel:  cancel,
	}, nil
}

// StoreHandle wraps the store with shutdown capability.
type StoreHandle struct {
	*store.Store
}

// Shutdown implements do.Shutdownable.
func (h *StoreHandle) Shutdown() error {
	return h.Close()
}

// ProvideStore provides the database store.
func ProvideStore(i do.Injector) (*StoreHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	dbPath := cfg.DatabasePath()
	db, err := store.New(dbPath, log.Logger)
	if err != nil {
		return nil, err
	}

	log.Info("Database initialized", "path", dbPath)

	return &StoreHandle{Store: db}, nil
}

// SheetRepositoryHandle holds the song sheet backend selected by DB_DRIVER.
// Users, sessions, setlists and teams always live in badger.
type SheetRepositoryHandle struct {
	store.SheetRepository
	mongo *mongostore.Client
}

// Shutdown implements do.Shutdownable.
func (h *SheetRepositoryHandle) Shutdown() error {
	if h.mongo == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return h.mongo.Close(ctx)
}

// ProvideSheetRepository provides the song sheet repository.
func ProvideSheetRepository(i do.Injector) (*SheetRepositoryHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	storeHandle := do.MustInvoke[*StoreHandle](i)

	if cfg.Database.Driver != config.DriverMongo {
		return &SheetRepositoryHandle{SheetRepository: storeHandle.Store}, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Database.QueryTimeout)
	defer cancel()

	client, err := mongostore.Connect(ctx, cfg.Database.MongoURI, cfg.Database.MongoDB, cfg.Database.QueryTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect mongo: %w", err)
	}
	sheets := client.Collection(mongostore.CollectionSheets)
	if err := mongostore.EnsureIndexes(ctx, sheets); err != nil {
		_ = client.Close(context.Background())
		return nil, fmt.Errorf("ensure mongo indexes: %w", err)
	}

	log.Info("Song sheets stored in MongoDB", "database", cfg.Database.MongoDB)

	return &SheetRepositoryHandle{
		SheetRepository: mongostore.NewSheetRepository(sheets),
		mongo:           client,
	}, nil
}

// ProvideSlogLogger provides access to the underlying slog.Logger for packages that need it.
func ProvideSlogLogger(i do.Injector) (*slog.Logger, error) {
	log := do.MustInvoke[*logger.Logger](i)
	return log.Logger, nil
}
