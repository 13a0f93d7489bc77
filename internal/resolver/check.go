package resolver

import (
	"cmp"
	"context"
	"slices"
	"strings"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
)

// Label is the live feedback shown while a manager fills in the form.
type Label string

// Precheck labels.
const (
	LabelNew      Label = "NEW"
	LabelUpdate   Label = "UPDATE"
	LabelConflict Label = "CONFLICT"
)

// Query is a precheck request. Only name and key are required; empty
// category, bpm and language are not compared.
type Query struct {
	SongName       string
	SongArtist     string
	SongKey        string
	SongArrangedBy string
	SongCategory   string
	SongBPM        string
	SongLanguage   string
}

// VersionSummary describes one stored arrangement of the song.
type VersionSummary struct {
	SheetID    string     `json:"sheet_id"`
	Key        domain.Key `json:"song_key"`
	ArrangedBy string     `json:"song_arranged_by"`
	Pages      int        `json:"pages"`
}

// CheckResult is the read-only answer to a Query.
type CheckResult struct {
	Label Label `json:"label"`
	// SheetID is the exact version match, if any.
	SheetID   string           `json:"sheet_id,omitempty"`
	Versions  []VersionSummary `json:"versions"`
	Conflicts []Conflict       `json:"conflicts"`
	Warnings  []Conflict       `json:"warnings"`
}

func (q Query) probe() (domain.Identity, Probe, error) {
	details := map[string]string{}
	identity := domain.Identity{
		Name:   strings.TrimSpace(q.SongName),
		Artist: strings.TrimSpace(q.SongArtist),
	}
	if identity.Name == "" {
		details["song_name"] = "is required"
	}
	checkText(details, "song_name", identity.Name)
	checkText(details, "song_artist", identity.Artist)

	p := Probe{ArrangedBy: strings.TrimSpace(q.SongArrangedBy)}
	checkText(details, "song_arranged_by", p.ArrangedBy)
	key, err := domain.ParseKey(q.SongKey)
	if err != nil {
		details["song_key"] = err.Error()
	}
	p.Key = key

	if strings.Trim(q.SongCategory, " ,") != "" {
		category, err := domain.ParseCategory(q.SongCategory)
		if err != nil {
			details["song_category"] = err.Error()
		}
		p.Category = category
	}
	bpm, err := domain.NormalizeBPM(q.SongBPM)
	if err != nil {
		details["song_bpm"] = err.Error()
	}
	p.BPM = bpm
	if strings.TrimSpace(q.SongLanguage) != "" {
		language, err := domain.ParseLanguage(q.SongLanguage)
		if err != nil {
			details["song_language"] = err.Error()
		}
		p.Language = language
	}

	if len(details) > 0 {
		return domain.Identity{}, Probe{}, domainerrors.ValidationWithDetails("invalid precheck", details)
	}
	return identity, p, nil
}

func (p Probe) flightKey(identity domain.Identity) string {
	return strings.Join([]string{
		identity.Name, identity.Artist, string(p.Key), p.ArrangedBy,
		string(p.Category), p.BPM, string(p.Language),
	}, "\x1f")
}

// Check runs the submit matching logic without writing anything. Identical
// concurrent checks share one store lookup; each caller gets its own copy of
// the result. The shared lookup outlives the cancellation of whichever caller
// started it.
func (r *Resolver) Check(ctx context.Context, q Query) (*CheckResult, error) {
	identity, p, err := q.probe()
	if err != nil {
		return nil, err
	}

	flightCtx := context.WithoutCancel(ctx)
	v, err, _ := r.checks.Do(p.flightKey(identity), func() (any, error) {
		matches, err := r.store.FindByIdentity(flightCtx, identity)
		if err != nil {
			return nil, domainerrors.Wrap(err, domainerrors.CodeInternal, "failed to look up existing sheets")
		}
		return check(p, sameIdentity(matches, identity), r.strict), nil
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return v.(*CheckResult).clone(), nil
}

func (c *CheckResult) clone() *CheckResult {
	out := *c
	out.Versions = slices.Clone(c.Versions)
	out.Conflicts = slices.Clone(c.Conflicts)
	out.Warnings = slices.Clone(c.Warnings)
	return &out
}

func check(p Probe, matches []*domain.SongSheet, strict bool) *CheckResult {
	d := Decide(p, matches, strict)
	result := &CheckResult{
		Versions:  make([]VersionSummary, 0, len(matches)),
		Conflicts: append([]Conflict{}, d.Conflicts...),
		Warnings:  append([]Conflict{}, d.Warnings...),
	}
	for _, s := range matches {
		result.Versions = append(result.Versions, VersionSummary{
			SheetID:    s.ID,
			Key:        s.Key,
			ArrangedBy: s.ArrangedBy,
			Pages:      len(s.Pages),
		})
	}
	slices.SortFunc(result.Versions, func(a, b VersionSummary) int {
		return cmp.Or(
			cmp.Compare(slices.Index(domain.Keys, a.Key), slices.Index(domain.Keys, b.Key)),
			cmp.Compare(a.ArrangedBy, b.ArrangedBy),
		)
	})
	if d.Match != nil {
		result.SheetID = d.Match.ID
	}

	switch d.Outcome {
	case OutcomeReject:
		result.Label = LabelConflict
	case OutcomeUpdate:
		result.Label = LabelUpdate
	default:
		result.Label = LabelNew
	}
	return result
}
