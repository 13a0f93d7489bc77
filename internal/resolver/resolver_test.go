package resolver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/store"
)

var fixedNow = time.Date(2025, 3, 2, 9, 0, 0, 0, time.UTC)

type memStore struct {
	mu        sync.Mutex
	sheets    map[string]*domain.SongSheet
	seq       int
	findErr   error
	createErr error
	updateErr error
	finds     int
}

func newMemStore(sheets ...*domain.SongSheet) *memStore {
	s := &memStore{sheets: map[string]*domain.SongSheet{}}
	for _, sheet := range sheets {
		s.sheets[sheet.ID] = sheet.Clone()
	}
	return s
}

func (s *memStore) FindByIdentity(_ context.Context, identity domain.Identity) ([]*domain.SongSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finds++
	if s.findErr != nil {
		return nil, s.findErr
	}
	var out []*domain.SongSheet
	for _, sheet := range s.sheets {
		if sheet.Identity() == identity {
			out = append(out, sheet.Clone())
		}
	}
	return out, nil
}

func (s *memStore) CreateSheet(_ context.Context, sheet *domain.SongSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.seq++
	sheet.ID = fmt.Sprintf("sheet-new-%d", s.seq)
	s.sheets[sheet.ID] = sheet.Clone()
	return nil
}

func (s *memStore) UpdateSheet(_ context.Context, sheet *domain.SongSheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.updateErr != nil {
		return s.updateErr
	}
	s.sheets[sheet.ID] = sheet.Clone()
	return nil
}

func (s *memStore) get(id string) *domain.SongSheet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheets[id]
}

type recordingDeleter struct {
	deleted [][]string
	err     error
}

func (d *recordingDeleter) DeleteFiles(_ context.Context, ids []string) error {
	d.deleted = append(d.deleted, ids)
	return d.err
}

func page(id string) domain.Page {
	return domain.Page{URL: "/uploads/" + id, FilePath: "uploads/" + id, FileID: id}
}

func existing(id, name, artist string, key domain.Key, arranger string) *domain.SongSheet {
	sheet := &domain.SongSheet{
		Name:       name,
		Artist:     artist,
		Key:        key,
		ArrangedBy: arranger,
		Category:   domain.NewCategorySet(domain.CategoryUpward),
		BPM:        "72",
		Language:   domain.LanguageKorean,
		UploadedBy: "usr-original",
	}
	sheet.ID = id
	sheet.InitTimestamps(fixedNow.Add(-24 * time.Hour))
	sheet.SetPages([]domain.Page{page("p1.jpg")})
	return sheet
}

func submission(name, artist, key, arranger string, pages ...domain.Page) Submission {
	return Submission{
		SongName:       name,
		SongArtist:     artist,
		SongKey:        key,
		SongArrangedBy: arranger,
		SongCategory:   "상향",
		SongBPM:        "72",
		SongLanguage:   "한국어",
		Pages:          pages,
		UserID:         "usr-manager",
	}
}

func mustCandidate(t *testing.T, s Submission) Candidate {
	t.Helper()
	c, err := NewCandidate(s)
	require.NoError(t, err)
	return c
}

func newTestResolver(s Store, d FileDeleter, opts ...Option) *Resolver {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(s, d, nil, opts...)
}

func TestSubmit_NewIdentityCreates(t *testing.T) {
	s := newMemStore()
	r := newTestResolver(s, &recordingDeleter{})

	c := mustCandidate(t, submission("A", "B", "C", "", page("p2.jpg"), page("p3.jpg")))
	result, err := r.Submit(context.Background(), c)
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreate, result.Outcome)
	require.NotEmpty(t, result.SheetID)

	want := &domain.SongSheet{
		Name:       "A",
		Artist:     "B",
		Key:        domain.KeyC,
		Category:   domain.CategorySet{domain.CategoryUpward},
		BPM:        "72",
		Language:   domain.LanguageKorean,
		Pages:      []string{"/uploads/p2.jpg", "/uploads/p3.jpg"},
		ImageIDs:   []string{"p2.jpg", "p3.jpg"},
		ImageURL:   "/uploads/p2.jpg",
		FilePath:   "uploads/p2.jpg",
		UploadedBy: "usr-manager",
	}
	want.ID = result.SheetID
	want.InitTimestamps(fixedNow)

	if diff := cmp.Diff(want, s.get(result.SheetID)); diff != "" {
		t.Errorf("stored sheet mismatch (-want +got):\n%s", diff)
	}
}

func TestSubmit_NewVersionOfKnownSongCreates(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	s := newMemStore(original)
	r := newTestResolver(s, &recordingDeleter{})

	result, err := r.Submit(context.Background(), mustCandidate(t, submission("A", "B", "D", "", page("p9.jpg"))))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreate, result.Outcome)
	assert.NotEqual(t, "sheet-1", result.SheetID)
	assert.Empty(t, result.Warnings)
	if diff := cmp.Diff(original, s.get("sheet-1")); diff != "" {
		t.Errorf("original sheet changed (-want +got):\n%s", diff)
	}
}

func TestSubmit_ExactMatchReplacesPages(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	s := newMemStore(original)
	d := &recordingDeleter{}
	r := newTestResolver(s, d)

	result, err := r.Submit(context.Background(), mustCandidate(t, submission("A", "B", "C", "", page("p2.jpg"), page("p3.jpg"))))
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdate, result.Outcome)
	assert.Equal(t, "sheet-1", result.SheetID)
	assert.Equal(t, []string{"p1.jpg"}, result.SupersededFileIDs)
	assert.Empty(t, d.deleted)

	got := s.get("sheet-1")
	assert.Equal(t, []string{"/uploads/p2.jpg", "/uploads/p3.jpg"}, got.Pages)
	assert.Equal(t, []string{"p2.jpg", "p3.jpg"}, got.ImageIDs)
	assert.Equal(t, "/uploads/p2.jpg", got.ImageURL)
	assert.Equal(t, domain.CategorySet{domain.CategoryUpward}, got.Category)
	assert.Equal(t, "72", got.BPM)
	assert.Equal(t, domain.LanguageKorean, got.Language)
	assert.Equal(t, "usr-manager", got.UpdatedBy)
	assert.Equal(t, "usr-original", got.UploadedBy)
	assert.Equal(t, fixedNow, got.UpdatedAt)
	assert.Equal(t, original.CreatedAt, got.CreatedAt)
}

func TestSubmit_BPMConflictRejects(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	s := newMemStore(original)
	d := &recordingDeleter{}
	r := newTestResolver(s, d)

	sub := submission("A", "B", "C", "", page("p2.jpg"), page("p3.jpg"))
	sub.SongBPM = "80"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	assert.Equal(t, OutcomeReject, result.Outcome)
	assert.Empty(t, result.SheetID)
	want := []Conflict{{Axis: AxisBPM, Existing: "72", Candidate: "80"}}
	if diff := cmp.Diff(want, result.Conflicts); diff != "" {
		t.Errorf("conflicts mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, [][]string{{"p2.jpg", "p3.jpg"}}, d.deleted)
	if diff := cmp.Diff(original, s.get("sheet-1")); diff != "" {
		t.Errorf("rejected submission changed the record (-want +got):\n%s", diff)
	}
}

func TestSubmit_BackfillsEmptyFields(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	original.BPM = ""
	original.Language = ""
	original.Category = nil
	s := newMemStore(original)
	r := newTestResolver(s, &recordingDeleter{})

	sub := submission("A", "B", "C", "", page("p2.jpg"))
	sub.SongBPM = "90"
	sub.SongCategory = "JOY"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	assert.Equal(t, OutcomeUpdate, result.Outcome)
	got := s.get("sheet-1")
	assert.Equal(t, "90", got.BPM)
	assert.Equal(t, domain.LanguageKorean, got.Language)
	assert.Equal(t, domain.CategorySet{domain.CategoryJoy}, got.Category)
}

func TestSubmit_CategoryNormalization(t *testing.T) {
	for _, raw := range []string{"상향", " 상향 ", "상향,", ", 상향 ,", "상향, 외향"} {
		t.Run(raw, func(t *testing.T) {
			s := newMemStore()
			r := newTestResolver(s, &recordingDeleter{})

			sub := submission("A", "B", "C", "", page("p2.jpg"))
			sub.SongCategory = raw
			result, err := r.Submit(context.Background(), mustCandidate(t, sub))
			require.NoError(t, err)

			assert.Equal(t, domain.CategorySet{domain.CategoryUpward}, s.get(result.SheetID).Category)
		})
	}
}

func TestSubmit_RejectCleanupFailureIsNotFatal(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	s := newMemStore(original)
	d := &recordingDeleter{err: errors.New("storage offline")}
	r := newTestResolver(s, d)

	sub := submission("A", "B", "C", "", page("p2.jpg"))
	sub.SongLanguage = "영어"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	assert.Equal(t, OutcomeReject, result.Outcome)
	assert.True(t, result.CleanupFailed)
	assert.Equal(t, []Conflict{{Axis: AxisLanguage, Existing: "한국어", Candidate: "영어"}}, result.Conflicts)
}

func TestSubmit_AllAxesConflict(t *testing.T) {
	s := newMemStore(existing("sheet-1", "A", "B", domain.KeyC, ""))
	r := newTestResolver(s, &recordingDeleter{})

	sub := submission("A", "B", "C", "", page("p2.jpg"))
	sub.SongCategory = "내향"
	sub.SongBPM = "100"
	sub.SongLanguage = "영어"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	axes := make([]Axis, len(result.Conflicts))
	for i, c := range result.Conflicts {
		axes[i] = c.Axis
	}
	assert.Equal(t, []Axis{AxisCategory, AxisBPM, AxisLanguage}, axes)
}

func TestSubmit_SiblingDisagreementWarns(t *testing.T) {
	s := newMemStore(existing("sheet-1", "A", "B", domain.KeyC, ""))
	r := newTestResolver(s, &recordingDeleter{})

	sub := submission("A", "B", "G", "", page("p2.jpg"))
	sub.SongBPM = "80"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreate, result.Outcome)
	assert.Equal(t, []Conflict{{Axis: AxisBPM, Existing: "72", Candidate: "80", SheetID: "sheet-1"}}, result.Warnings)
}

func TestSubmit_StrictIdentityRejectsSiblingDisagreement(t *testing.T) {
	s := newMemStore(existing("sheet-1", "A", "B", domain.KeyC, ""))
	d := &recordingDeleter{}
	r := newTestResolver(s, d, WithStrictIdentity(true))

	sub := submission("A", "B", "G", "", page("p2.jpg"))
	sub.SongBPM = "80"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	assert.Equal(t, OutcomeReject, result.Outcome)
	assert.Len(t, result.Conflicts, 1)
	assert.Equal(t, [][]string{{"p2.jpg"}}, d.deleted)
	assert.Len(t, s.sheets, 1)
}

func TestSubmit_StoreFailures(t *testing.T) {
	t.Run("lookup", func(t *testing.T) {
		s := newMemStore()
		s.findErr = errors.New("connection reset")
		d := &recordingDeleter{}
		_, err := newTestResolver(s, d).Submit(context.Background(), mustCandidate(t, submission("A", "B", "C", "", page("p2.jpg"))))
		require.Error(t, err)
		assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
		assert.Empty(t, d.deleted, "files stay in place on backend failure")
	})

	t.Run("write", func(t *testing.T) {
		s := newMemStore()
		s.createErr = errors.New("disk full")
		d := &recordingDeleter{}
		_, err := newTestResolver(s, d).Submit(context.Background(), mustCandidate(t, submission("A", "B", "C", "", page("p2.jpg"))))
		require.Error(t, err)
		assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
		assert.Empty(t, d.deleted)
	})

	t.Run("lost create race", func(t *testing.T) {
		s := newMemStore()
		s.createErr = store.ErrVersionExists
		_, err := newTestResolver(s, &recordingDeleter{}).Submit(context.Background(), mustCandidate(t, submission("A", "B", "C", "", page("p2.jpg"))))
		assert.ErrorIs(t, err, ErrConcurrentSubmission)
		assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))
	})
}

func TestNewCandidate_Validation(t *testing.T) {
	_, err := NewCandidate(Submission{SongKey: "H", SongCategory: "", SongBPM: "fast", SongLanguage: "日本語"})
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	for _, field := range []string{"song_name", "song_key", "song_category", "song_bpm", "song_language", "pages", "user_id"} {
		assert.Contains(t, details, field)
	}
}

func TestNewCandidate_NormalizesAndCopies(t *testing.T) {
	pages := []domain.Page{page("p1.jpg")}
	sub := submission("  A ", " B", "c#", " Kim ", pages...)
	sub.SongBPM = "072"
	c := mustCandidate(t, sub)

	assert.Equal(t, "A", c.Name)
	assert.Equal(t, "B", c.Artist)
	assert.Equal(t, domain.KeyDb, c.Key)
	assert.Equal(t, "Kim", c.ArrangedBy)
	assert.Equal(t, "72", c.BPM)

	pages[0].FileID = "mutated"
	assert.Equal(t, "p1.jpg", c.Pages[0].FileID)
}

func TestCheck_Labels(t *testing.T) {
	s := newMemStore(
		existing("sheet-1", "A", "B", domain.KeyC, ""),
		existing("sheet-2", "A", "B", domain.KeyG, "Kim"),
	)
	r := newTestResolver(s, &recordingDeleter{})
	ctx := context.Background()

	tests := []struct {
		name    string
		query   Query
		label   Label
		sheetID string
	}{
		{"unknown song", Query{SongName: "Z", SongKey: "C"}, LabelNew, ""},
		{"new key", Query{SongName: "A", SongArtist: "B", SongKey: "D"}, LabelNew, ""},
		{"exact match", Query{SongName: "A", SongArtist: "B", SongKey: "C", SongBPM: "72"}, LabelUpdate, "sheet-1"},
		{"exact match bpm differs", Query{SongName: "A", SongArtist: "B", SongKey: "C", SongBPM: "80"}, LabelConflict, "sheet-1"},
		{"arranger distinguishes", Query{SongName: "A", SongArtist: "B", SongKey: "G", SongArrangedBy: "Kim", SongLanguage: "영어"}, LabelConflict, "sheet-2"},
		{"category checked when given", Query{SongName: "A", SongArtist: "B", SongKey: "C", SongCategory: "JOY"}, LabelConflict, "sheet-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Check(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.label, got.Label)
			assert.Equal(t, tt.sheetID, got.SheetID)
		})
	}
}

func TestCheck_ListsVersionsInKeyOrder(t *testing.T) {
	s := newMemStore(
		existing("sheet-2", "A", "B", domain.KeyG, ""),
		existing("sheet-1", "A", "B", domain.KeyC, ""),
	)
	r := newTestResolver(s, &recordingDeleter{})

	got, err := r.Check(context.Background(), Query{SongName: "A", SongArtist: "B", SongKey: "D"})
	require.NoError(t, err)

	want := []VersionSummary{
		{SheetID: "sheet-1", Key: domain.KeyC, Pages: 1},
		{SheetID: "sheet-2", Key: domain.KeyG, Pages: 1},
	}
	if diff := cmp.Diff(want, got.Versions, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("versions mismatch (-want +got):\n%s", diff)
	}
}

func TestCheck_IsReadOnly(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	s := newMemStore(original)
	d := &recordingDeleter{}
	r := newTestResolver(s, d)

	_, err := r.Check(context.Background(), Query{SongName: "A", SongArtist: "B", SongKey: "C", SongBPM: "99"})
	require.NoError(t, err)

	assert.Empty(t, d.deleted)
	assert.Len(t, s.sheets, 1)
	if diff := cmp.Diff(original, s.get("sheet-1")); diff != "" {
		t.Errorf("check mutated the store (-want +got):\n%s", diff)
	}
}

func TestCheck_InvalidQuery(t *testing.T) {
	r := newTestResolver(newMemStore(), &recordingDeleter{})
	_, err := r.Check(context.Background(), Query{SongKey: "X"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

func TestNewCandidate_RejectsControlCharacters(t *testing.T) {
	sub := submission("A\x1fB", "C\x00", "C", "Kim\x07", page("p1.jpg"))
	_, err := NewCandidate(sub)
	require.Error(t, err)

	var domainErr *domainerrors.Error
	require.ErrorAs(t, err, &domainErr)
	details, ok := domainErr.Details.(map[string]string)
	require.True(t, ok)
	for _, field := range []string{"song_name", "song_artist", "song_arranged_by"} {
		assert.Contains(t, details, field)
	}

	_, err = NewCandidate(submission("A", "B", "C", "", page("p1.jpg")))
	assert.NoError(t, err)
}

func TestCheck_RejectsControlCharacters(t *testing.T) {
	r := newTestResolver(newMemStore(), &recordingDeleter{})
	_, err := r.Check(context.Background(), Query{SongName: "A", SongArtist: "B\x1fC", SongKey: "C"})
	assert.ErrorIs(t, err, domainerrors.ErrValidation)
}

// collidingStore returns every stored sheet for any identity, as a store with
// an ambiguous index key would.
type collidingStore struct {
	*memStore
}

func (s collidingStore) FindByIdentity(_ context.Context, _ domain.Identity) ([]*domain.SongSheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.SongSheet
	for _, sheet := range s.sheets {
		out = append(out, sheet.Clone())
	}
	return out, nil
}

func TestSubmit_IgnoresMatchesOfAnotherSong(t *testing.T) {
	original := existing("sheet-1", "AB", "C", domain.KeyC, "")
	s := collidingStore{newMemStore(original)}
	d := &recordingDeleter{}
	r := newTestResolver(s, d)

	got, err := r.Check(context.Background(), Query{SongName: "A", SongArtist: "BC", SongKey: "C"})
	require.NoError(t, err)
	assert.Equal(t, LabelNew, got.Label)
	assert.Empty(t, got.Versions)

	result, err := r.Submit(context.Background(), mustCandidate(t, submission("A", "BC", "C", "", page("p2.jpg"))))
	require.NoError(t, err)

	assert.Equal(t, OutcomeCreate, result.Outcome)
	assert.NotEqual(t, "sheet-1", result.SheetID)
	assert.Empty(t, result.Warnings)
	if diff := cmp.Diff(original, s.get("sheet-1")); diff != "" {
		t.Errorf("another song's record changed (-want +got):\n%s", diff)
	}
	assert.Empty(t, d.deleted)
}

func TestSubmit_RejectKeepsFilesOfStoredVersions(t *testing.T) {
	original := existing("sheet-1", "A", "B", domain.KeyC, "")
	sibling := existing("sheet-2", "A", "B", domain.KeyD, "")
	sibling.SetPages([]domain.Page{page("s1.jpg")})
	s := newMemStore(original, sibling)
	d := &recordingDeleter{}
	r := newTestResolver(s, d)

	sub := submission("A", "B", "C", "", page("p1.jpg"), page("s1.jpg"), page("p9.jpg"))
	sub.SongBPM = "80"
	result, err := r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)

	assert.Equal(t, OutcomeReject, result.Outcome)
	assert.Equal(t, [][]string{{"p9.jpg"}}, d.deleted)

	d.deleted = nil
	sub = submission("A", "B", "C", "", page("p1.jpg"))
	sub.SongBPM = "80"
	_, err = r.Submit(context.Background(), mustCandidate(t, sub))
	require.NoError(t, err)
	assert.Empty(t, d.deleted, "nothing to delete when every file is still referenced")
}

// blockingStore holds FindByIdentity until release is closed.
type blockingStore struct {
	*memStore
	started  chan struct{}
	release  chan struct{}
	once     sync.Once
	ctxErrMu sync.Mutex
	ctxErr   error
}

func newBlockingStore(sheets ...*domain.SongSheet) *blockingStore {
	return &blockingStore{
		memStore: newMemStore(sheets...),
		started:  make(chan struct{}),
		release:  make(chan struct{}),
	}
}

func (s *blockingStore) FindByIdentity(ctx context.Context, identity domain.Identity) ([]*domain.SongSheet, error) {
	s.once.Do(func() { close(s.started) })
	<-s.release
	s.ctxErrMu.Lock()
	if err := ctx.Err(); err != nil {
		s.ctxErr = err
	}
	s.ctxErrMu.Unlock()
	return s.memStore.FindByIdentity(ctx, identity)
}

func TestCheck_ConcurrentCallersGetIndependentResults(t *testing.T) {
	s := newBlockingStore(existing("sheet-1", "A", "B", domain.KeyC, ""))
	r := newTestResolver(s, &recordingDeleter{})
	q := Query{SongName: "A", SongArtist: "B", SongKey: "C", SongBPM: "80"}

	results := make([]*CheckResult, 2)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := r.Check(context.Background(), q)
			assert.NoError(t, err)
			results[i] = got
		}()
		if i == 0 {
			<-s.started
		}
	}
	time.Sleep(20 * time.Millisecond)
	close(s.release)
	wg.Wait()

	require.NotNil(t, results[0])
	require.NotNil(t, results[1])
	assert.NotSame(t, results[0], results[1])

	results[0].Label = "MUTATED"
	results[0].Conflicts[0].Existing = "MUTATED"
	results[0].Versions[0].SheetID = "MUTATED"
	assert.Equal(t, LabelConflict, results[1].Label)
	assert.Equal(t, "72", results[1].Conflicts[0].Existing)
	assert.Equal(t, "sheet-1", results[1].Versions[0].SheetID)
}

func TestCheck_CancelledCallerDoesNotFailWaiters(t *testing.T) {
	s := newBlockingStore(existing("sheet-1", "A", "B", domain.KeyC, ""))
	r := newTestResolver(s, &recordingDeleter{})
	q := Query{SongName: "A", SongArtist: "B", SongKey: "C"}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := r.Check(ctx, q)
		firstErr <- err
	}()
	<-s.started

	secondResult := make(chan *CheckResult, 1)
	secondErr := make(chan error, 1)
	go func() {
		got, err := r.Check(context.Background(), q)
		secondResult <- got
		secondErr <- err
	}()
	time.Sleep(20 * time.Millisecond)
	cancel()
	close(s.release)

	assert.ErrorIs(t, <-firstErr, context.Canceled)
	require.NoError(t, <-secondErr)
	got := <-secondResult
	require.NotNil(t, got)
	assert.Equal(t, LabelUpdate, got.Label)

	s.ctxErrMu.Lock()
	defer s.ctxErrMu.Unlock()
	assert.NoError(t, s.ctxErr, "shared lookup ran under a cancelled context")
}

func TestCheck_ResultSlicesAreNeverNil(t *testing.T) {
	r := newTestResolver(newMemStore(), &recordingDeleter{})
	got, err := r.Check(context.Background(), Query{SongName: "Z", SongKey: "C"})
	require.NoError(t, err)
	assert.NotNil(t, got.Versions)
	assert.NotNil(t, got.Conflicts)
	assert.NotNil(t, got.Warnings)
}
