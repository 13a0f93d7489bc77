package resolver

import (
	"fmt"
	"slices"
	"strings"
	"unicode"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
)

// Submission is the raw upload form as it arrives at the boundary.
type Submission struct {
	SongName       string
	SongArtist     string
	SongKey        string
	SongArrangedBy string
	SongCategory   string
	SongBPM        string
	SongLanguage   string
	Pages          []domain.Page
	UserID         string
}

// Candidate is a validated, normalized submission. It is a value: the
// resolver never mutates it, and its page list is owned by the candidate.
type Candidate struct {
	Name       string
	Artist     string
	Key        domain.Key
	ArrangedBy string
	Category   domain.Category
	BPM        string
	Language   domain.Language
	// Pages is ordered; index 0 is the primary image.
	Pages  []domain.Page
	UserID string
}

// NewCandidate normalizes s into a Candidate. Every invalid field is reported
// in one validation error.
func NewCandidate(s Submission) (Candidate, error) {
	details := map[string]string{}
	c := Candidate{
		Name:       strings.TrimSpace(s.SongName),
		Artist:     strings.TrimSpace(s.SongArtist),
		ArrangedBy: strings.TrimSpace(s.SongArrangedBy),
		UserID:     s.UserID,
	}

	if c.Name == "" {
		details["song_name"] = "is required"
	}
	checkText(details, "song_name", c.Name)
	checkText(details, "song_artist", c.Artist)
	checkText(details, "song_arranged_by", c.ArrangedBy)

	key, err := domain.ParseKey(s.SongKey)
	if err != nil {
		details["song_key"] = err.Error()
	}
	c.Key = key

	category, err := domain.ParseCategory(s.SongCategory)
	if err != nil {
		details["song_category"] = err.Error()
	}
	c.Category = category

	bpm, err := domain.NormalizeBPM(s.SongBPM)
	if err != nil {
		details["song_bpm"] = err.Error()
	}
	c.BPM = bpm

	language, err := domain.ParseLanguage(s.SongLanguage)
	if err != nil {
		details["song_language"] = err.Error()
	}
	c.Language = language

	if len(s.Pages) == 0 {
		details["pages"] = "at least one uploaded page is required"
	}
	for i, p := range s.Pages {
		if p.URL == "" || p.FileID == "" {
			details["pages"] = fmt.Sprintf("page %d is missing url or file id", i)
			break
		}
	}
	c.Pages = slices.Clone(s.Pages)

	if c.UserID == "" {
		details["user_id"] = "is required"
	}

	if len(details) > 0 {
		return Candidate{}, domainerrors.ValidationWithDetails("invalid submission", details)
	}
	return c, nil
}

// Identity returns the (name, artist) pair.
func (c Candidate) Identity() domain.Identity {
	return domain.Identity{Name: c.Name, Artist: c.Artist}
}

// FileIDs lists the storage ids of the uploaded pages in order.
func (c Candidate) FileIDs() []string {
	ids := make([]string, len(c.Pages))
	for i, p := range c.Pages {
		ids[i] = p.FileID
	}
	return ids
}

func (c Candidate) matchesVersion(s *domain.SongSheet) bool {
	return s.Key == c.Key && s.ArrangedBy == c.ArrangedBy
}

// checkText rejects control characters in free-text identity fields.
func checkText(details map[string]string, field, value string) {
	if strings.ContainsFunc(value, unicode.IsControl) {
		details[field] = "must not contain control characters"
	}
}

// sameIdentity keeps the matches whose identity is exactly id.
func sameIdentity(matches []*domain.SongSheet, id domain.Identity) []*domain.SongSheet {
	return slices.DeleteFunc(slices.Clone(matches), func(s *domain.SongSheet) bool {
		return s.Identity() != id
	})
}
