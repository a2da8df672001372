package models

import "time"

// DefaultCollection identifies one of the system-seeded lists every user gets.
type DefaultCollection string

const (
	DefaultWatchlist      DefaultCollection = "watchlist"
	DefaultAlreadyWatched DefaultCollection = "already_watched"
)

// DisplayName returns the reserved display name for a default collection.
func (d DefaultCollection) DisplayName() string {
	switch d {
	case DefaultWatchlist:
		return "Watchlist"
	case DefaultAlreadyWatched:
		return "Already Watched"
	}
	return ""
}

// Description returns the seeded description for a default collection.
func (d DefaultCollection) Description() string {
	switch d {
	case DefaultWatchlist:
		return "Movies and shows you want to watch"
	case DefaultAlreadyWatched:
		return "Movies and shows you have finished"
	}
	return ""
}

// Valid reports whether d names a known default collection.
func (d DefaultCollection) Valid() bool {
	return d == DefaultWatchlist || d == DefaultAlreadyWatched
}

// Collection is a named, user-owned list of media items.
type Collection struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	IsDefault   bool      `json:"isDefault"`
	IsPublic    bool      `json:"isPublic"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CollectionWithItems is a collection materialized together with its
// memberships, each joined to its content metadata.
type CollectionWithItems struct {
	Collection
	Items []CollectionItem `json:"items"`
}

// CollectionItem links one piece of content to one collection.
// TMDBID and MediaType are denormalized from the content row so membership
// lookups do not need a join.
type CollectionItem struct {
	ID           string           `json:"id"`
	CollectionID string           `json:"collectionId"`
	ContentID    string           `json:"contentId"`
	TMDBID       int64            `json:"tmdbId"`
	MediaType    string           `json:"mediaType"`
	AddedAt      time.Time        `json:"addedAt"`
	Notes        string           `json:"notes,omitempty"`
	Content      *ContentMetadata `json:"content,omitempty"`
}

// Key returns a stable identifier for the membership combining media type and TMDB id.
func (ci CollectionItem) Key() string {
	return ContentKey(ci.TMDBID, ci.MediaType)
}

// CollectionUpdate captures a partial update to a collection. Nil fields
// retain their prior value.
type CollectionUpdate struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	IsPublic    *bool   `json:"isPublic,omitempty"`
}

// Empty reports whether the update would change nothing.
func (u CollectionUpdate) Empty() bool {
	return u.Name == nil && u.Description == nil && u.IsPublic == nil
}
