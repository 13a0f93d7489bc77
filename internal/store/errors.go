package store

import domainerrors "github.com/contiapp/conti-server/internal/errors"

// Generic sentinels returned by Entity. They are domain errors so the API layer
// maps them without a store-specific translation step.
var (
	ErrNotFound      = domainerrors.NotFound("resource not found")
	ErrAlreadyExists = domainerrors.AlreadyExists("resource already exists")
)

// Entity-specific sentinels. errors.Is(ErrSheetNotFound, ErrNotFound) holds
// because domain errors compare by code.
var (
	ErrSheetNotFound   = domainerrors.NotFound("song sheet not found")
	ErrVersionExists   = domainerrors.AlreadyExists("a sheet for this song, key and arranger already exists")
	ErrUserNotFound    = domainerrors.NotFound("user not found")
	ErrSessionNotFound = domainerrors.NotFound("session not found")
	ErrSetlistNotFound = domainerrors.NotFound("setlist not found")
	ErrTeamNotFound    = domainerrors.NotFound("team not found")
	ErrEventNotFound   = domainerrors.NotFound("team event not found")
)
