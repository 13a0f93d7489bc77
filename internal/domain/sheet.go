package domain

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Key is the musical key a sheet is written in.
type Key string

// Supported keys. Sharps other than F# are stored as their flat spelling.
const (
	KeyC      Key = "C"
	KeyDb     Key = "Db"
	KeyD      Key = "D"
	KeyEb     Key = "Eb"
	KeyE      Key = "E"
	KeyF      Key = "F"
	KeyFSharp Key = "F#"
	KeyG      Key = "G"
	KeyAb     Key = "Ab"
	KeyA      Key = "A"
	KeyBb     Key = "Bb"
	KeyB      Key = "B"
)

// Keys lists every supported key in chromatic order.
var Keys = []Key{KeyC, KeyDb, KeyD, KeyEb, KeyE, KeyF, KeyFSharp, KeyG, KeyAb, KeyA, KeyBb, KeyB}

var enharmonics = map[string]Key{
	"C#": KeyDb,
	"D#": KeyEb,
	"Gb": KeyFSharp,
	"G#": KeyAb,
	"A#": KeyBb,
}

// Valid reports whether k is one of Keys.
func (k Key) Valid() bool {
	return slices.Contains(Keys, k)
}

// ParseKey trims raw and maps enharmonic spellings onto the stored form.
func ParseKey(raw string) (Key, error) {
	s := strings.TrimSpace(raw)
	if len(s) > 1 {
		s = strings.ToUpper(s[:1]) + s[1:]
	} else {
		s = strings.ToUpper(s)
	}
	if k, ok := enharmonics[s]; ok {
		return k, nil
	}
	if k := Key(s); k.Valid() {
		return k, nil
	}
	return "", fmt.Errorf("unknown key %q", raw)
}

// Category is the worship-flow tag of a song.
type Category string

// Supported categories.
const (
	CategoryUpward  Category = "상향"
	CategoryOutward Category = "외향"
	CategoryInward  Category = "내향"
	CategoryJoy     Category = "JOY"
)

// Categories lists every supported category.
var Categories = []Category{CategoryUpward, CategoryOutward, CategoryInward, CategoryJoy}

// Valid reports whether c is one of Categories.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// ParseCategory reads a single category from form input. Stray commas and
// whitespace are tolerated: the first non-empty comma separated token wins.
func ParseCategory(raw string) (Category, error) {
	for _, token := range strings.Split(raw, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		if strings.EqualFold(token, string(CategoryJoy)) {
			return CategoryJoy, nil
		}
		if c := Category(token); c.Valid() {
			return c, nil
		}
		return "", fmt.Errorf("unknown category %q", token)
	}
	return "", fmt.Errorf("category is required")
}

// CategorySet is an ordered set of categories.
type CategorySet []Category

// NewCategorySet builds a set, dropping duplicates and empty values.
func NewCategorySet(categories ...Category) CategorySet {
	set := make(CategorySet, 0, len(categories))
	for _, c := range categories {
		if c != "" && !set.Contains(c) {
			set = append(set, c)
		}
	}
	return set
}

// Contains reports whether c is in the set.
func (s CategorySet) Contains(c Category) bool {
	return slices.Contains(s, c)
}

// Empty reports whether the set holds no category.
func (s CategorySet) Empty() bool {
	return len(s) == 0
}

func (s CategorySet) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = string(c)
	}
	return strings.Join(parts, ",")
}

// Language is the lyric language of a sheet.
type Language string

// Supported languages.
const (
	LanguageKorean  Language = "한국어"
	LanguageEnglish Language = "영어"
)

// Languages lists every supported language.
var Languages = []Language{LanguageKorean, LanguageEnglish}

// Valid reports whether l is one of Languages.
func (l Language) Valid() bool {
	return slices.Contains(Languages, l)
}

// ParseLanguage trims raw and checks it against Languages.
func ParseLanguage(raw string) (Language, error) {
	l := Language(strings.TrimSpace(raw))
	if l.Valid() {
		return l, nil
	}
	return "", fmt.Errorf("unknown language %q", raw)
}

const maxBPM = 400

// NormalizeBPM returns the canonical string form of a tempo, or "" when raw is blank.
// "072" and "72.0" both normalize to "72".
func NormalizeBPM(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 || v > maxBPM {
		return "", fmt.Errorf("invalid bpm %q", raw)
	}
	return strconv.FormatFloat(v, 'f', -1, 64), nil
}

// Page is one uploaded page image of a sheet.
type Page struct {
	URL          string `json:"url" bson:"url"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" bson:"thumbnailUrl,omitempty"`
	FilePath     string `json:"file_path" bson:"filePath"`
	FileID       string `json:"file_id" bson:"fileId"`
	BlurHash     string `json:"blur_hash,omitempty" bson:"blurHash,omitempty"`
}

// Identity is the (name, artist) pair naming a song across arrangements.
type Identity struct {
	Name   string `json:"song_name"`
	Artist string `json:"song_artist"`
}

// IndexKey is the stable lookup key for the identity. Distinct identities
// never share a key, whatever characters their fields contain.
func (i Identity) IndexKey() string {
	return indexKey(i.Name, i.Artist)
}

// indexKey length-prefixes each part, so no part can absorb its neighbour.
func indexKey(parts ...string) string {
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(strconv.Itoa(len(p)))
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// Version is one arrangement of a song.
type Version struct {
	Identity
	Key        Key    `json:"song_key"`
	ArrangedBy string `json:"song_arranged_by"`
}

// IndexKey is the stable lookup key for the version.
func (v Version) IndexKey() string {
	return indexKey(v.Name, v.Artist, string(v.Key), v.ArrangedBy)
}

// SongSheet is a persisted song sheet record.
type SongSheet struct {
	Syncable   `bson:",inline"`
	Name       string      `json:"song_name" bson:"songName"`
	Artist     string      `json:"song_artist" bson:"songArtist"`
	Key        Key         `json:"song_key" bson:"songKey"`
	ArrangedBy string      `json:"song_arranged_by" bson:"songArrangedBy"`
	Category   CategorySet `json:"song_category" bson:"songCategory"`
	BPM        string      `json:"song_bpm,omitempty" bson:"songBpm,omitempty"`
	Language   Language    `json:"song_language,omitempty" bson:"songLanguage,omitempty"`

	// Pages and ImageIDs correspond 1:1; index 0 is the primary page.
	Pages    []string `json:"pages" bson:"pages"`
	ImageIDs []string `json:"image_ids" bson:"imageIds"`

	ImageURL     string `json:"image_url" bson:"imageUrl"`
	ThumbnailURL string `json:"thumbnail_url,omitempty" bson:"thumbnailUrl,omitempty"`
	FilePath     string `json:"file_path" bson:"filePath"`
	BlurHash     string `json:"blur_hash,omitempty" bson:"blurHash,omitempty"`

	UploadedBy string `json:"uploaded_by" bson:"uploadedBy"`
	UpdatedBy  string `json:"updated_by,omitempty" bson:"updatedBy,omitempty"`
}

// Identity returns the sheet's song identity.
func (s *SongSheet) Identity() Identity {
	return Identity{Name: s.Name, Artist: s.Artist}
}

// Version returns the sheet's arrangement key.
func (s *SongSheet) Version() Version {
	return Version{Identity: s.Identity(), Key: s.Key, ArrangedBy: s.ArrangedBy}
}

// SetPages replaces the page set. The first page becomes the primary image.
func (s *SongSheet) SetPages(pages []Page) {
	s.Pages = make([]string, len(pages))
	s.ImageIDs = make([]string, len(pages))
	for i, p := range pages {
		s.Pages[i] = p.URL
		s.ImageIDs[i] = p.FileID
	}
	s.ImageURL, s.ThumbnailURL, s.FilePath, s.BlurHash = "", "", "", ""
	if len(pages) > 0 {
		primary := pages[0]
		s.ImageURL = primary.URL
		s.ThumbnailURL = primary.ThumbnailURL
		s.FilePath = primary.FilePath
		s.BlurHash = primary.BlurHash
	}
}

// CheckPages verifies len(Pages) == len(ImageIDs) >= 1.
func (s *SongSheet) CheckPages() error {
	if len(s.Pages) == 0 {
		return fmt.Errorf("sheet %q has no pages", s.ID)
	}
	if len(s.Pages) != len(s.ImageIDs) {
		return fmt.Errorf("sheet %q has %d pages but %d image ids", s.ID, len(s.Pages), len(s.ImageIDs))
	}
	return nil
}

// Clone returns a deep copy.
func (s *SongSheet) Clone() *SongSheet {
	c := *s
	c.Category = slices.Clone(s.Category)
	c.Pages = slices.Clone(s.Pages)
	c.ImageIDs = slices.Clone(s.ImageIDs)
	return &c
}

// MarkUpdated records who changed the sheet and when.
func (s *SongSheet) MarkUpdated(userID string, now time.Time) {
	s.UpdatedBy = userID
	s.Touch(now)
}
