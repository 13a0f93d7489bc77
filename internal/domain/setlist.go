package domain

import (
	"slices"
	"time"
)

// DateLayout is the calendar date format used by setlists and team events.
const DateLayout = "2006-01-02"

// SetlistSong is a snapshot of a sheet taken when it was added to a setlist.
// Later edits to the sheet do not change the setlist.
type SetlistSong struct {
	SheetID    string   `json:"sheet_id"`
	Name       string   `json:"song_name"`
	Artist     string   `json:"song_artist"`
	Key        Key      `json:"song_key"`
	ArrangedBy string   `json:"song_arranged_by,omitempty"`
	BPM        string   `json:"song_bpm,omitempty"`
	Pages      []string `json:"pages"`
	ImageURL   string   `json:"image_url,omitempty"`
}

// SnapshotSheet copies the fields of s a setlist keeps.
func SnapshotSheet(s *SongSheet) SetlistSong {
	return SetlistSong{
		SheetID:    s.ID,
		Name:       s.Name,
		Artist:     s.Artist,
		Key:        s.Key,
		ArrangedBy: s.ArrangedBy,
		BPM:        s.BPM,
		Pages:      slices.Clone(s.Pages),
		ImageURL:   s.ImageURL,
	}
}

// Setlist is an ordered list of songs prepared for one service.
type Setlist struct {
	Syncable
	Name       string        `json:"name"`
	TargetDate string        `json:"target_date,omitempty"`
	OwnerID    string        `json:"owner_id"`
	Songs      []SetlistSong `json:"songs"`
}

// Slide is one page of a setlist presentation.
type Slide struct {
	SheetID    string `json:"sheet_id"`
	SongName   string `json:"song_name"`
	SongKey    Key    `json:"song_key"`
	ImageURL   string `json:"image_url,omitempty"`
	PageIndex  int    `json:"page_index"`
	TotalPages int    `json:"total_pages"`
}

// Slides flattens the setlist into one slide per page. A song without pages
// falls back to its primary image, and yields a blank slide when it has none.
func (s *Setlist) Slides() []Slide {
	slides := make([]Slide, 0, len(s.Songs))
	for _, song := range s.Songs {
		pages := song.Pages
		if len(pages) == 0 && song.ImageURL != "" {
			pages = []string{song.ImageURL}
		}
		if len(pages) == 0 {
			slides = append(slides, Slide{SheetID: song.SheetID, SongName: song.Name, SongKey: song.Key, TotalPages: 1})
			continue
		}
		for i, page := range pages {
			slides = append(slides, Slide{
				SheetID:    song.SheetID,
				SongName:   song.Name,
				SongKey:    song.Key,
				ImageURL:   page,
				PageIndex:  i,
				TotalPages: len(pages),
			})
		}
	}
	return slides
}

// ValidDate reports whether date is empty or a YYYY-MM-DD calendar date.
func ValidDate(date string) bool {
	if date == "" {
		return true
	}
	_, err := time.Parse(DateLayout, date)
	return err == nil
}
