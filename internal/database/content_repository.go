package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"reelvault/models"
)

// ContentRepository manages the deduplicated content metadata cache.
type ContentRepository struct {
	db       *sql.DB
	notifier *Notifier
}

// NewContentRepository creates a content metadata repository.
func NewContentRepository(db *sql.DB, notifier *Notifier) *ContentRepository {
	return &ContentRepository{db: db, notifier: notifier}
}

// Upsert inserts or refreshes the metadata row for (tmdb id, media type).
// Re-upserting keeps the original row id and created_at while replacing the
// descriptive fields, so memberships referencing the row stay intact.
func (r *ContentRepository) Upsert(tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.ContentMetadata, error) {
	var result *models.ContentMetadata

	err := withBusyRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		content, err := upsertContentTx(tx, tmdbID, mediaType, meta)
		if err != nil {
			return err
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		result = content
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Notify(TableContentMetadata)
	return result, nil
}

// Get returns the metadata for (tmdb id, media type), or nil if absent.
func (r *ContentRepository) Get(tmdbID int64, mediaType string) (*models.ContentMetadata, error) {
	row := r.db.QueryRow(`
		SELECT id, tmdb_id, media_type, title, original_title, overview,
			poster_path, backdrop_path, release_date, genres,
			vote_average, vote_count, popularity, adult, created_at, updated_at
		FROM content_metadata WHERE tmdb_id = ? AND media_type = ?`, tmdbID, mediaType)

	c, err := scanContent(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get content metadata: %w", err)
	}
	return c, nil
}

// upsertContentTx performs the insert-or-replace within an existing
// transaction so callers can pair it with a membership write atomically.
func upsertContentTx(tx *sql.Tx, tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.ContentMetadata, error) {
	now := time.Now().UTC()
	_, err := tx.Exec(`
		INSERT INTO content_metadata (id, tmdb_id, media_type, title, original_title, overview,
			poster_path, backdrop_path, release_date, genres,
			vote_average, vote_count, popularity, adult, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(tmdb_id, media_type) DO UPDATE SET
			title = excluded.title,
			original_title = excluded.original_title,
			overview = excluded.overview,
			poster_path = excluded.poster_path,
			backdrop_path = excluded.backdrop_path,
			release_date = excluded.release_date,
			genres = excluded.genres,
			vote_average = excluded.vote_average,
			vote_count = excluded.vote_count,
			popularity = excluded.popularity,
			adult = excluded.adult,
			updated_at = excluded.updated_at`,
		uuid.NewString(), tmdbID, mediaType, meta.Title, meta.OriginalTitle, meta.Overview,
		meta.PosterPath, meta.BackdropPath, meta.ReleaseDate, meta.Genres,
		meta.VoteAverage, meta.VoteCount, meta.Popularity, meta.Adult, now, now)
	if err != nil {
		return nil, fmt.Errorf("upsert content metadata: %w", err)
	}

	row := tx.QueryRow(`
		SELECT id, tmdb_id, media_type, title, original_title, overview,
			poster_path, backdrop_path, release_date, genres,
			vote_average, vote_count, popularity, adult, created_at, updated_at
		FROM content_metadata WHERE tmdb_id = ? AND media_type = ?`, tmdbID, mediaType)
	content, err := scanContent(row)
	if err != nil {
		return nil, fmt.Errorf("read content metadata: %w", err)
	}
	return content, nil
}

func scanContent(s scanner) (*models.ContentMetadata, error) {
	var c models.ContentMetadata
	err := s.Scan(&c.ID, &c.TMDBID, &c.MediaType, &c.Title, &c.OriginalTitle, &c.Overview,
		&c.PosterPath, &c.BackdropPath, &c.ReleaseDate, &c.Genres,
		&c.VoteAverage, &c.VoteCount, &c.Popularity, &c.Adult, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
