package models

import "time"

// SourceVideo is one (uploaded object, language) pair in an ingestion request.
type SourceVideo struct {
	SourcePath string `json:"sourcePath"` // full storage URI, e.g. gs://bucket/uploads/abc.mp4
	Language   string `json:"language"`   // "en" or "pt-BR"
}

// IngestionRequest is the immutable input to the episode ingestion pipeline.
// It is validated once at entry and never mutated.
type IngestionRequest struct {
	SeriesID      string        `json:"seriesId"`
	EpisodeNumber int           `json:"episodeNumber"`
	Title         string        `json:"title"`
	Description   string        `json:"description"`
	Videos        []SourceVideo `json:"videos"`
}

// LanguageTrack is one finished per-language rendition of an episode.
type LanguageTrack struct {
	Language         string `json:"language"`
	PlaylistPath     string `json:"playlistPath"`     // object path of the rewritten playlist
	FirstSegmentPath string `json:"firstSegmentPath"` // object path of the first media segment, for spot checks
	PlaybackURL      string `json:"playbackUrl"`      // signed, time-limited playlist URL
}

// Episode is a catalog episode record. Tracks stay empty while the record is
// provisional and are filled in a single commit once every language finishes.
type Episode struct {
	ID            string          `json:"id"`
	SeriesID      string          `json:"seriesId"`
	EpisodeNumber int             `json:"episodeNumber"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	Tracks        []LanguageTrack `json:"tracks"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

// Series is a catalog series record.
type Series struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	CategoryID    string    `json:"categoryId"`
	ThumbnailPath string    `json:"thumbnailPath"`
	CarouselPath  string    `json:"carouselPath"`
	Popular       bool      `json:"popular"`
	Status        string    `json:"status"` // Draft, Active or Inactive
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// SeriesStatuses are the values Series.Status may take.
var SeriesStatuses = []string{"Draft", "Active", "Inactive"}
