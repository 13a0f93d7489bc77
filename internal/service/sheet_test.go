package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/unicode/norm"

	"github.com/contiapp/conti-server/internal/domain"
	domainerrors "github.com/contiapp/conti-server/internal/errors"
	"github.com/contiapp/conti-server/internal/resolver"
	"github.com/contiapp/conti-server/internal/search"
	"github.com/contiapp/conti-server/internal/sse"
	"github.com/contiapp/conti-server/internal/store"
)

type sheetFixture struct {
	svc    *SheetService
	store  *store.Store
	index  *search.SearchIndex
	events *recordingEmitter
	files  *recordingDeleter
}

func setupSheetService(t *testing.T) *sheetFixture {
	t.Helper()
	s := setupTestStore(t)
	idx := setupTestIndex(t)
	events := &recordingEmitter{}
	files := &recordingDeleter{}
	res := resolver.New(s, files, discardLogger())
	return &sheetFixture{
		svc:    NewSheetService(s, res, files, idx, events, newValidator(), discardLogger()),
		store:  s,
		index:  idx,
		events: events,
		files:  files,
	}
}

func submission(name, key, bpm string, fileIDs ...string) resolver.Submission {
	return resolver.Submission{
		SongName:     name,
		SongArtist:   "어노인팅",
		SongKey:      key,
		SongCategory: "상향",
		SongBPM:      bpm,
		SongLanguage: "한국어",
		Pages:        pages(fileIDs...),
		UserID:       "usr-manager",
	}
}

func TestSheetService_SubmitCreateIndexesAndEmits(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	res, err := f.svc.Submit(ctx, submission("주 품에", "G", "72", "f1", "f2"))
	require.NoError(t, err)
	assert.Equal(t, resolver.OutcomeCreate, res.Outcome)
	require.NotEmpty(t, res.SheetID)

	assert.Equal(t, []sse.EventType{sse.EventSheetCreated}, f.events.types())

	hits, err := f.index.Search(ctx, search.SearchParams{Query: "어노인팅"})
	require.NoError(t, err)
	require.Len(t, hits.Hits, 1)
	assert.Equal(t, res.SheetID, hits.Hits[0].ID)
}

func TestSheetService_SubmitNormalizesUnicode(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	first, err := f.svc.Submit(ctx, submission("주 품에", "G", "72", "f1"))
	require.NoError(t, err)

	sub := submission(norm.NFD.String("  주   품에 "), "g", "072", "f2")
	sub.SongLanguage = "ko"
	second, err := f.svc.Submit(ctx, sub)
	require.NoError(t, err)

	assert.Equal(t, resolver.OutcomeUpdate, second.Outcome)
	assert.Equal(t, first.SheetID, second.SheetID)
	assert.Equal(t, []string{"f1"}, second.SupersededFileIDs)
	assert.Equal(t, []sse.EventType{sse.EventSheetCreated, sse.EventSheetUpdated}, f.events.types())
}

func TestSheetService_SubmitRejectDeletesUploads(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submission("주 품에", "G", "72", "f1"))
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, submission("주 품에", "G", "80", "f2", "f3"))
	require.NoError(t, err)
	assert.Equal(t, resolver.OutcomeReject, res.Outcome)
	assert.Equal(t, []string{"f2", "f3"}, f.files.ids())
	assert.Equal(t, []sse.EventType{sse.EventSheetCreated}, f.events.types())
}

func TestSheetService_SubmitValidation(t *testing.T) {
	f := setupSheetService(t)

	_, err := f.svc.Submit(context.Background(), submission("", "H", "", "f1"))
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
	assert.Empty(t, f.events.types())
}

func TestSheetService_SubmitSeparatorDoesNotAliasSongs(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	sub := submission("A\x1fB", "G", "72", "f1")
	sub.SongArtist = "C"
	first, err := f.svc.Submit(ctx, sub)
	require.NoError(t, err)
	require.Equal(t, resolver.OutcomeCreate, first.Outcome)

	sub = submission("A", "G", "72", "f2")
	sub.SongArtist = "B\x1fC"
	second, err := f.svc.Submit(ctx, sub)
	require.NoError(t, err)
	assert.Equal(t, resolver.OutcomeCreate, second.Outcome)
	assert.NotEqual(t, first.SheetID, second.SheetID)

	stored, err := f.store.GetSheet(ctx, first.SheetID)
	require.NoError(t, err)
	assert.Equal(t, []string{"f1"}, stored.ImageIDs)
}

func TestSheetService_SubmitRejectsNaNTempo(t *testing.T) {
	f := setupSheetService(t)

	_, err := f.svc.Submit(context.Background(), submission("주 품에", "G", "NaN", "f1"))
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestSheetService_SubmitRejectKeepsStoredPages(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submission("주 품에", "G", "72", "f1"))
	require.NoError(t, err)

	res, err := f.svc.Submit(ctx, submission("주 품에", "G", "80", "f1", "f2"))
	require.NoError(t, err)
	assert.Equal(t, resolver.OutcomeReject, res.Outcome)
	assert.Equal(t, []string{"f2"}, f.files.ids())
}

func TestSheetService_ConcurrentSameVersion(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	const n = 8
	outcomes := make([]resolver.Outcome, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.svc.Submit(ctx, submission("Way Maker", "E", "", "f"))
			if assert.NoError(t, err) {
				outcomes[i] = res.Outcome
			}
		}()
	}
	wg.Wait()

	creates := 0
	for _, o := range outcomes {
		if o == resolver.OutcomeCreate {
			creates++
		} else {
			assert.Equal(t, resolver.OutcomeUpdate, o)
		}
	}
	assert.Equal(t, 1, creates)

	all, err := f.store.ListSheets(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestSheetService_Check(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, submission("주 품에", "G", "72", "f1"))
	require.NoError(t, err)

	res, err := f.svc.Check(ctx, resolver.Query{
		SongName:   norm.NFD.String("주 품에"),
		SongArtist: "어노인팅",
		SongKey:    "G",
		SongBPM:    "80",
	})
	require.NoError(t, err)
	assert.Equal(t, resolver.LabelConflict, res.Label)
	assert.Equal(t, created.SheetID, res.SheetID)
}

func seedLibrary(t *testing.T, f *sheetFixture) map[string]string {
	t.Helper()
	ctx := context.Background()
	ids := map[string]string{}
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, sub := range []resolver.Submission{
		submission("하나님의 은혜", "D", "", "a"),
		submission("가장 높은 곳에서", "G", "", "b"),
		{SongName: "Way Maker", SongKey: "E", SongCategory: "JOY", SongLanguage: "영어", Pages: pages("c"), UserID: "usr-manager"},
	} {
		res, err := f.svc.Submit(ctx, sub)
		require.NoError(t, err)
		sh, err := f.store.GetSheet(ctx, res.SheetID)
		require.NoError(t, err)
		sh.InitTimestamps(base.Add(time.Duration(i) * time.Hour))
		require.NoError(t, f.store.UpdateSheet(ctx, sh))
		ids[sub.SongName] = res.SheetID
	}
	return ids
}

func sheetNames(sheets []*domain.SongSheet) []string {
	out := make([]string, len(sheets))
	for i, s := range sheets {
		out[i] = s.Name
	}
	return out
}

func TestSheetService_List(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()
	seedLibrary(t, f)

	newest, err := f.svc.List(ctx, ListSheetsParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"Way Maker", "가장 높은 곳에서", "하나님의 은혜"}, sheetNames(newest))

	byName, err := f.svc.List(ctx, ListSheetsParams{Sort: SortName, Language: "ko"})
	require.NoError(t, err)
	assert.Equal(t, []string{"가장 높은 곳에서", "하나님의 은혜"}, sheetNames(byName))

	joy, err := f.svc.List(ctx, ListSheetsParams{Category: "joy"})
	require.NoError(t, err)
	assert.Equal(t, []string{"Way Maker"}, sheetNames(joy))

	inD, err := f.svc.List(ctx, ListSheetsParams{Key: "D"})
	require.NoError(t, err)
	assert.Equal(t, []string{"하나님의 은혜"}, sheetNames(inD))

	_, err = f.svc.List(ctx, ListSheetsParams{Sort: "random"})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestSheetService_UpdateRenameCollision(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submission("주 품에", "G", "", "f1"))
	require.NoError(t, err)
	other, err := f.svc.Submit(ctx, submission("주 품에", "A", "", "f2"))
	require.NoError(t, err)

	key := "G"
	_, err = f.svc.Update(ctx, "usr-manager", other.SheetID, UpdateSheetRequest{SongKey: &key})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))

	unchanged, err := f.store.GetSheet(ctx, other.SheetID)
	require.NoError(t, err)
	assert.Equal(t, domain.KeyA, unchanged.Key)
}

func TestSheetService_UpdateMetadata(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, submission("주 품에", "G", "", "f1"))
	require.NoError(t, err)

	name := " 주 품에 (Live) "
	bpm := "68"
	updated, err := f.svc.Update(ctx, "usr-editor", created.SheetID, UpdateSheetRequest{
		SongName:     &name,
		SongBPM:      &bpm,
		SongCategory: []string{"상향", "JOY"},
	})
	require.NoError(t, err)
	assert.Equal(t, "주 품에 (Live)", updated.Name)
	assert.Equal(t, "68", updated.BPM)
	assert.Equal(t, domain.CategorySet{domain.CategoryUpward, domain.CategoryJoy}, updated.Category)
	assert.Equal(t, "usr-editor", updated.UpdatedBy)
	assert.Equal(t, sse.EventSheetUpdated, f.events.last().Type)

	empty := " "
	_, err = f.svc.Update(ctx, "usr-editor", created.SheetID, UpdateSheetRequest{SongName: &empty})
	assert.Equal(t, domainerrors.CodeValidation, domainerrors.CodeOf(err))
}

func TestSheetService_UpdateSiblingDisagreement(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	_, err := f.svc.Submit(ctx, submission("주 품에", "G", "72", "f1"))
	require.NoError(t, err)
	other, err := f.svc.Submit(ctx, submission("주 품에", "A", "72", "f2"))
	require.NoError(t, err)

	bpm := "90"
	_, err = f.svc.Update(ctx, "usr-manager", other.SheetID, UpdateSheetRequest{SongBPM: &bpm})
	require.Error(t, err)
	assert.Equal(t, domainerrors.CodeConflict, domainerrors.CodeOf(err))
}

func TestSheetService_Delete(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, submission("주 품에", "G", "", "f1", "f2"))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, "usr-manager", created.SheetID))
	assert.Equal(t, []string{"f1", "f2"}, f.files.ids())
	assert.Equal(t, sse.EventSheetDeleted, f.events.last().Type)

	_, err = f.svc.Get(ctx, created.SheetID)
	assert.ErrorIs(t, err, store.ErrSheetNotFound)

	count, err := f.index.DocumentCount()
	require.NoError(t, err)
	assert.Zero(t, count)

	err = f.svc.Delete(ctx, "usr-manager", created.SheetID)
	assert.Equal(t, domainerrors.CodeNotFound, domainerrors.CodeOf(err))
}

func TestSheetService_DeleteSurvivesFileErrors(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	created, err := f.svc.Submit(ctx, submission("주 품에", "G", "", "f1"))
	require.NoError(t, err)

	f.files.err = assert.AnError
	require.NoError(t, f.svc.Delete(ctx, "usr-manager", created.SheetID))
}

func TestSheetService_DeleteFiles(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()

	err := f.svc.DeleteFiles(ctx, nil)
	assert.Equal(t, domainerrors.CodeBadRequest, domainerrors.CodeOf(err))

	require.NoError(t, f.svc.DeleteFiles(ctx, []string{"x", "y"}))
	assert.Equal(t, []string{"x", "y"}, f.files.ids())

	f.files.err = assert.AnError
	err = f.svc.DeleteFiles(ctx, []string{"z"})
	assert.Equal(t, domainerrors.CodeInternal, domainerrors.CodeOf(err))
}

func TestSheetService_Reindex(t *testing.T) {
	f := setupSheetService(t)
	ctx := context.Background()
	seedLibrary(t, f)

	require.NoError(t, f.index.Rebuild())
	n, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	count, err := f.index.DocumentCount()
	require.NoError(t, err)
	assert.Equal(t, uint64(3), count)
}

func TestSheetService_SearchWithoutIndex(t *testing.T) {
	s := setupTestStore(t)
	res := resolver.New(s, &recordingDeleter{}, discardLogger())
	svc := NewSheetService(s, res, &recordingDeleter{}, nil, nil, newValidator(), discardLogger())

	_, err := svc.Search(context.Background(), search.SearchParams{Query: "x"})
	assert.Equal(t, domainerrors.CodeUnavailable, domainerrors.CodeOf(err))
}
