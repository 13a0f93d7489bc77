package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/contiapp/conti-server/internal/config"
	"github.com/contiapp/conti-server/internal/logger"
	"github.com/contiapp/conti-server/internal/media/images"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/service"
	"github.com/contiapp/conti-server/internal/store"
	"github.com/contiapp/conti-server/internal/validation"
)

// commandContext opens the data directory on first use and shares it across
// the command that runs.
type commandContext struct {
	dataFlag    *string
	envFileFlag *string
	logOutput   io.Writer

	openOnce sync.Once
	openErr  error
	cfg      *config.Config
	logger   *slog.Logger
	store    *store.Store
	index    *search.SearchIndex
	sheets   *service.SheetService
	users    *service.UserService
}

func newCommandContext(dataFlag, envFileFlag *string) *commandContext {
	return &commandContext{
		dataFlag:    dataFlag,
		envFileFlag: envFileFlag,
		logOutput:   os.Stderr,
	}
}

func (c *commandContext) args() []string {
	var args []string
	if c.dataFlag != nil && strings.TrimSpace(*c.dataFlag) != "" {
		args = append(args, "--metadata-path", strings.TrimSpace(*c.dataFlag))
	}
	if c.envFileFlag != nil {
		args = append(args, "--env-file", *c.envFileFlag)
	}
	return args
}

func (c *commandContext) open() error {
	c.openOnce.Do(func() {
		cfg, err := config.LoadConfig(c.args())
		if err != nil {
			c.openErr = err
			return
		}
		c.cfg = cfg
		c.logger = logger.New(logger.Config{
			Writer:      c.logOutput,
			Level:       slog.LevelWarn,
			Environment: cfg.App.Environment,
		}).Logger

		st, err := store.New(cfg.DatabasePath(), c.logger)
		if err != nil {
			c.openErr = fmt.Errorf("open database %s (is the server running?): %w", cfg.DatabasePath(), err)
			return
		}
		c.store = st

		index, err := search.NewSearchIndex(search.Options{Path: cfg.SearchIndexPath(), Logger: c.logger})
		if err != nil {
			c.openErr = fmt.Errorf("open search index: %w", err)
			return
		}
		c.index = index

		pages, err := images.NewStorage(cfg.Storage.UploadPath, cfg.Server.PublicURL+"/uploads", cfg.Storage.ThumbnailWidth, c.logger)
		if err != nil {
			c.openErr = err
			return
		}

		res := resolver.New(st, pages, c.logger, resolver.WithStrictIdentity(cfg.Resolver.StrictIdentity))
		c.sheets = service.NewSheetService(st, res, pages, index, nil, validation.New(), c.logger)
		c.users = service.NewUserService(st, c.logger)
	})
	return c.openErr
}

// Close releases whatever open acquired.
func (c *commandContext) Close() error {
	var errs []error
	if c.index != nil {
		errs = append(errs, c.index.Close())
		c.index = nil
	}
	if c.store != nil {
		errs = append(errs, c.store.Close())
		c.store = nil
	}
	return errors.Join(errs...)
}

func (c *commandContext) sheetService() (*service.SheetService, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	return c.sheets, nil
}

func (c *commandContext) userService() (*service.UserService, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	return c.users, nil
}

func (c *commandContext) database() (*store.Store, error) {
	if err := c.open(); err != nil {
		return nil, err
	}
	return c.store, nil
}
