// Package id generates identifiers for persisted entities.
package id

import (
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes used for entity identifiers.
const (
	PrefixSheet   = "sheet"
	PrefixUser    = "usr"
	PrefixSession = "sess"
	PrefixSetlist = "set"
	PrefixTeam    = "team"
	PrefixToken   = "tok"
)

const (
	joinCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	joinCodeLength   = 6
)

// Generate returns "prefix-<nanoid>" using the default 21 character URL-safe alphabet.
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is Generate that panics when the system has no entropy.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// JoinCode returns a short uppercase code members type to join a team.
// Visually ambiguous characters (0, O, 1, I) are excluded.
func JoinCode() (string, error) {
	code, err := gonanoid.Generate(joinCodeAlphabet, joinCodeLength)
	if err != nil {
		return "", fmt.Errorf("generate join code: %w", err)
	}
	return code, nil
}
