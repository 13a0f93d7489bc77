// Package store persists Conti entities in an embedded Badger database.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"github.com/contiapp/conti-server/internal/domain"
)

// Key prefixes.
const (
	sheetPrefix     = "sheet:"
	userPrefix      = "user:"
	sessionPrefix   = "session:"
	setlistPrefix   = "setlist:"
	teamPrefix      = "team:"
	teamEventPrefix = "team_event:"
)

// Store wraps a Badger database and exposes one Entity per collection.
type Store struct {
	db     *badger.DB
	logger *slog.Logger

	Sheets     *Entity[domain.SongSheet]
	Users      *Entity[domain.User]
	Sessions   *Entity[domain.Session]
	Setlists   *Entity[domain.Setlist]
	Teams      *Entity[domain.Team]
	TeamEvents *Entity[domain.TeamEvent]
}

// New opens (or creates) the database at path.
func New(path string, logger *slog.Logger) (*Store, error) {
	opts := badger.DefaultOptions(path)
	opts.Logger = nil
	opts.SyncWrites = true
	opts.CompactL0OnClose = true

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	s := &Store{db: db, logger: logger}
	s.initEntities()

	if logger != nil {
		logger.Info("Badger database opened", "path", path)
	}
	return s, nil
}

// Close closes the database. Closing twice is a no-op.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	if s.logger != nil {
		s.logger.Info("Closing database connection")
	}
	return s.db.Close()
}

// Ping runs an empty read transaction.
func (s *Store) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.db.IsClosed() {
		return errors.New("database is closed")
	}
	return s.db.View(func(*badger.Txn) error { return nil })
}

func (s *Store) initEntities() {
	s.Sheets = NewEntity[domain.SongSheet](s, sheetPrefix).
		WithIndex("identity", func(sh *domain.SongSheet) []string {
			return []string{sh.Identity().IndexKey()}
		}).
		WithUniqueIndex("version", func(sh *domain.SongSheet) []string {
			return []string{sh.Version().IndexKey()}
		})

	s.Users = NewEntity[domain.User](s, userPrefix).
		WithUniqueIndex("kakao", func(u *domain.User) []string {
			if u.KakaoID == "" {
				return nil
			}
			return []string{u.KakaoID}
		}).
		WithIndex("role", func(u *domain.User) []string {
			return []string{string(u.Role)}
		})

	s.Sessions = NewEntity[domain.Session](s, sessionPrefix).
		WithUniqueIndex("token", func(ss *domain.Session) []string {
			return []string{ss.RefreshTokenHash}
		}).
		WithIndex("user", func(ss *domain.Session) []string {
			return []string{ss.UserID}
		})

	s.Setlists = NewEntity[domain.Setlist](s, setlistPrefix).
		WithIndex("owner", func(sl *domain.Setlist) []string {
			return []string{sl.OwnerID}
		})

	s.Teams = NewEntity[domain.Team](s, teamPrefix).
		WithUniqueIndex("join_code", func(t *domain.Team) []string {
			return []string{t.JoinCode}
		}).
		WithLookupTransform("join_code", normalizeJoinCode).
		WithIndex("member", func(t *domain.Team) []string {
			return t.Members
		})

	s.TeamEvents = NewEntity[domain.TeamEvent](s, teamEventPrefix).
		WithIndex("team", func(ev *domain.TeamEvent) []string {
			return []string{ev.TeamID}
		})
}

// translate maps the generic sentinels onto entity-specific ones.
func translate(err, notFound error) error {
	if errors.Is(err, ErrNotFound) {
		return notFound
	}
	return err
}
