package resolver

import (
	"cmp"
	"slices"
	"time"

	"github.com/contiapp/conti-server/internal/domain"
)

// Outcome is the result of resolving one submission.
type Outcome string

// Submission outcomes.
const (
	OutcomeCreate Outcome = "CREATE"
	OutcomeUpdate Outcome = "UPDATE"
	OutcomeReject Outcome = "REJECT"
)

// Axis names a field that must agree across versions of one song.
type Axis string

// Conflict axes.
const (
	AxisCategory Axis = "category"
	AxisBPM      Axis = "bpm"
	AxisLanguage Axis = "language"
)

// Conflict is one disagreement between a stored version and the candidate.
type Conflict struct {
	Axis      Axis   `json:"axis"`
	Existing  string `json:"existing"`
	Candidate string `json:"candidate"`
	// SheetID is set on sibling warnings to say which version disagrees.
	SheetID string `json:"sheet_id,omitempty"`
}

// Decision is the pure outcome of matching a candidate against the identity
// match set. It carries no side effects.
type Decision struct {
	Outcome Outcome
	// Match is the exact version match, if any.
	Match *domain.SongSheet
	// Conflicts explains a REJECT.
	Conflicts []Conflict
	// Warnings lists disagreements with other versions of the song when no
	// exact match exists. They block only in strict mode.
	Warnings []Conflict
}

// Probe is the subset of candidate fields the conflict check reads. Empty
// fields are not compared.
type Probe struct {
	Key        domain.Key
	ArrangedBy string
	Category   domain.Category
	BPM        string
	Language   domain.Language
}

func (c Candidate) probe() Probe {
	return Probe{Key: c.Key, ArrangedBy: c.ArrangedBy, Category: c.Category, BPM: c.BPM, Language: c.Language}
}

// Decide matches p against the identity match set. In strict mode, sibling
// disagreements turn a CREATE into a REJECT.
func Decide(p Probe, matches []*domain.SongSheet, strict bool) Decision {
	for _, existing := range matches {
		if existing.Key != p.Key || existing.ArrangedBy != p.ArrangedBy {
			continue
		}
		if conflicts := Conflicts(existing, p); len(conflicts) > 0 {
			return Decision{Outcome: OutcomeReject, Match: existing, Conflicts: conflicts}
		}
		return Decision{Outcome: OutcomeUpdate, Match: existing}
	}

	warnings := siblingWarnings(matches, p)
	if strict && len(warnings) > 0 {
		return Decision{Outcome: OutcomeReject, Conflicts: warnings}
	}
	return Decision{Outcome: OutcomeCreate, Warnings: warnings}
}

// Conflicts compares p with a stored version on every axis.
func Conflicts(existing *domain.SongSheet, p Probe) []Conflict {
	var out []Conflict
	if p.Category != "" && !existing.Category.Empty() && !existing.Category.Contains(p.Category) {
		out = append(out, Conflict{Axis: AxisCategory, Existing: existing.Category.String(), Candidate: string(p.Category)})
	}
	if p.BPM != "" && existing.BPM != "" && existing.BPM != p.BPM {
		out = append(out, Conflict{Axis: AxisBPM, Existing: existing.BPM, Candidate: p.BPM})
	}
	if p.Language != "" && existing.Language != "" && existing.Language != p.Language {
		out = append(out, Conflict{Axis: AxisLanguage, Existing: string(existing.Language), Candidate: string(p.Language)})
	}
	return out
}

func siblingWarnings(siblings []*domain.SongSheet, p Probe) []Conflict {
	var out []Conflict
	for _, s := range siblings {
		for _, c := range Conflicts(s, p) {
			c.SheetID = s.ID
			out = append(out, c)
		}
	}
	slices.SortStableFunc(out, func(a, b Conflict) int {
		return cmp.Or(cmp.Compare(a.Axis, b.Axis), cmp.Compare(a.SheetID, b.SheetID))
	})
	return out
}

// newSheet builds the record persisted on CREATE.
func newSheet(c Candidate, now time.Time) *domain.SongSheet {
	sheet := &domain.SongSheet{
		Name:       c.Name,
		Artist:     c.Artist,
		Key:        c.Key,
		ArrangedBy: c.ArrangedBy,
		Category:   domain.NewCategorySet(c.Category),
		BPM:        c.BPM,
		Language:   c.Language,
		UploadedBy: c.UserID,
	}
	sheet.InitTimestamps(now)
	sheet.SetPages(c.Pages)
	return sheet
}

// applyUpdate returns a copy of existing with the candidate's pages and any
// empty invariant fields backfilled. Values already present are kept; the
// conflict check guarantees they agree.
func applyUpdate(existing *domain.SongSheet, c Candidate, now time.Time) *domain.SongSheet {
	updated := existing.Clone()
	updated.SetPages(c.Pages)
	if updated.Category.Empty() {
		updated.Category = domain.NewCategorySet(c.Category)
	}
	if updated.BPM == "" {
		updated.BPM = c.BPM
	}
	if updated.Language == "" {
		updated.Language = c.Language
	}
	updated.MarkUpdated(c.UserID, now)
	return updated
}
