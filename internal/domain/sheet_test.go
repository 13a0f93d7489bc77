package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKey(t *testing.T) {
	tests := []struct {
		in      string
		want    Key
		wantErr bool
	}{
		{in: "C", want: KeyC},
		{in: " bb ", want: KeyBb},
		{in: "F#", want: KeyFSharp},
		{in: "Gb", want: KeyFSharp},
		{in: "C#", want: KeyDb},
		{in: "a#", want: KeyBb},
		{in: "H", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKey(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCategory(t *testing.T) {
	tests := []struct {
		in      string
		want    Category
		wantErr bool
	}{
		{in: "상향", want: CategoryUpward},
		{in: " 내향 ", want: CategoryInward},
		{in: "상향, ", want: CategoryUpward},
		{in: ",, 외향,상향", want: CategoryOutward},
		{in: "joy", want: CategoryJoy},
		{in: "", wantErr: true},
		{in: " , ", wantErr: true},
		{in: "슬픔", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCategory(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCategorySet(t *testing.T) {
	set := NewCategorySet(CategoryJoy, "", CategoryJoy, CategoryInward)

	assert.Equal(t, CategorySet{CategoryJoy, CategoryInward}, set)
	assert.True(t, set.Contains(CategoryInward))
	assert.False(t, set.Contains(CategoryUpward))
	assert.Equal(t, "JOY,내향", set.String())
	assert.True(t, NewCategorySet().Empty())
}

func TestNormalizeBPM(t *testing.T) {
	tests := map[string]string{
		"":      "",
		"  ":    "",
		"72":    "72",
		"072":   "72",
		"72.0":  "72",
		" 98.5": "98.5",
	}
	for in, want := range tests {
		got, err := NormalizeBPM(in)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, want, got)
	}

	for _, bad := range []string{"fast", "0", "-10", "999", "NaN", "nan", "Inf", "-Inf", "+Inf"} {
		_, err := NormalizeBPM(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseLanguage(t *testing.T) {
	l, err := ParseLanguage(" 한국어")
	require.NoError(t, err)
	assert.Equal(t, LanguageKorean, l)

	_, err = ParseLanguage("일본어")
	assert.Error(t, err)
}

func TestSongSheet_SetPages(t *testing.T) {
	s := &SongSheet{}
	s.SetPages([]Page{
		{URL: "/uploads/a.png", ThumbnailURL: "/uploads/a_thumb.jpg", FilePath: "uploads/a.png", FileID: "a", BlurHash: "LEHV6n"},
		{URL: "/uploads/b.png", FilePath: "uploads/b.png", FileID: "b"},
	})

	assert.Equal(t, []string{"/uploads/a.png", "/uploads/b.png"}, s.Pages)
	assert.Equal(t, []string{"a", "b"}, s.ImageIDs)
	assert.Equal(t, "/uploads/a.png", s.ImageURL)
	assert.Equal(t, "/uploads/a_thumb.jpg", s.ThumbnailURL)
	assert.Equal(t, "uploads/a.png", s.FilePath)
	assert.Equal(t, "LEHV6n", s.BlurHash)
	assert.NoError(t, s.CheckPages())

	s.SetPages(nil)
	assert.Empty(t, s.ImageURL)
	assert.Error(t, s.CheckPages())
}

func TestSongSheet_CheckPagesMismatch(t *testing.T) {
	s := &SongSheet{Pages: []string{"a", "b"}, ImageIDs: []string{"a"}}
	assert.Error(t, s.CheckPages())
}

func TestSongSheet_IdentityAndVersion(t *testing.T) {
	a := &SongSheet{Name: "주 품에", Artist: "어노인팅", Key: KeyG, ArrangedBy: ""}
	b := &SongSheet{Name: "주 품에", Artist: "어노인팅", Key: KeyA, ArrangedBy: ""}

	assert.Equal(t, a.Identity(), b.Identity())
	assert.Equal(t, a.Identity().IndexKey(), b.Identity().IndexKey())
	assert.NotEqual(t, a.Version().IndexKey(), b.Version().IndexKey())

	// Name/artist boundaries must not collide.
	c := &SongSheet{Name: "ab", Artist: "c"}
	d := &SongSheet{Name: "a", Artist: "bc"}
	assert.NotEqual(t, c.Identity().IndexKey(), d.Identity().IndexKey())

	e := &SongSheet{Name: "A\x1fB", Artist: "C"}
	f := &SongSheet{Name: "A", Artist: "B\x1fC"}
	assert.NotEqual(t, e.Identity().IndexKey(), f.Identity().IndexKey())
	assert.NotEqual(t, e.Version().IndexKey(), f.Version().IndexKey())

	g := &SongSheet{Name: "1:a", Artist: ""}
	h := &SongSheet{Name: "", Artist: "a1:"}
	assert.NotEqual(t, g.Identity().IndexKey(), h.Identity().IndexKey())
}

func TestSongSheet_CloneIsDeep(t *testing.T) {
	s := &SongSheet{Category: CategorySet{CategoryJoy}, Pages: []string{"p"}, ImageIDs: []string{"i"}}
	c := s.Clone()
	c.Category[0] = CategoryInward
	c.Pages[0] = "changed"

	assert.Equal(t, CategoryJoy, s.Category[0])
	assert.Equal(t, "p", s.Pages[0])
}
