package models

import (
	"strconv"
	"time"
)

const (
	MediaTypeMovie = "movie"
	MediaTypeTV    = "tv"
)

// ValidMediaType reports whether mediaType is one of the supported tags.
func ValidMediaType(mediaType string) bool {
	return mediaType == MediaTypeMovie || mediaType == MediaTypeTV
}

// ContentKey returns a stable identifier for a piece of content. TMDB id
// ranges overlap between movies and shows, so the media type is part of the key.
func ContentKey(tmdbID int64, mediaType string) string {
	return mediaType + ":" + strconv.FormatInt(tmdbID, 10)
}

// ContentMetadata is a cached snapshot of one movie or show as it looked when
// it was added to a collection. Rows are shared: many memberships across many
// collections may reference the same row.
type ContentMetadata struct {
	ID            string    `json:"id"`
	TMDBID        int64     `json:"tmdbId"`
	MediaType     string    `json:"mediaType"`
	Title         string    `json:"title"`
	OriginalTitle string    `json:"originalTitle,omitempty"`
	Overview      string    `json:"overview,omitempty"`
	PosterPath    string    `json:"posterPath,omitempty"`
	BackdropPath  string    `json:"backdropPath,omitempty"`
	ReleaseDate   string    `json:"releaseDate,omitempty"`
	Genres        string    `json:"genres,omitempty"`
	VoteAverage   float64   `json:"voteAverage,omitempty"`
	VoteCount     int64     `json:"voteCount,omitempty"`
	Popularity    float64   `json:"popularity,omitempty"`
	Adult         bool      `json:"adult"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Key returns the (media type, TMDB id) identity of the content.
func (c ContentMetadata) Key() string {
	return ContentKey(c.TMDBID, c.MediaType)
}

// ContentUpsert captures the descriptive fields supplied when content is
// added or refreshed. Identity (TMDB id, media type) is passed alongside.
type ContentUpsert struct {
	Title         string  `json:"title"`
	OriginalTitle string  `json:"originalTitle,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	PosterPath    string  `json:"posterPath,omitempty"`
	BackdropPath  string  `json:"backdropPath,omitempty"`
	ReleaseDate   string  `json:"releaseDate,omitempty"`
	Genres        string  `json:"genres,omitempty"`
	VoteAverage   float64 `json:"voteAverage,omitempty"`
	VoteCount     int64   `json:"voteCount,omitempty"`
	Popularity    float64 `json:"popularity,omitempty"`
	Adult         bool    `json:"adult,omitempty"`
}
