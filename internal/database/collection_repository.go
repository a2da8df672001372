package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"reelvault/models"
)

// ErrNotFound is returned by updates against rows that do not exist. Point
// reads return nil instead; absence is a value there, not a failure.
var ErrNotFound = errors.New("not found")

// CollectionRepository manages collections and their memberships.
type CollectionRepository struct {
	db       *sql.DB
	notifier *Notifier
}

// NewCollectionRepository creates a collection repository.
func NewCollectionRepository(db *sql.DB, notifier *Notifier) *CollectionRepository {
	return &CollectionRepository{db: db, notifier: notifier}
}

// isBusy reports whether err is a transient SQLite busy/locked error.
func isBusy(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

// withBusyRetry retries transactional writes that lost the WAL writer race.
func withBusyRetry(fn func() error) error {
	return retry.Do(fn,
		retry.RetryIf(isBusy),
		retry.Attempts(5),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
	)
}

// Insert stores a new collection.
func (r *CollectionRepository) Insert(c *models.Collection) error {
	_, err := r.db.Exec(`
		INSERT INTO collections (id, user_id, name, description, is_default, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.UserID, c.Name, c.Description, c.IsDefault, c.IsPublic, c.CreatedAt, c.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert collection: %w", err)
	}

	r.notifier.Notify(TableCollections)
	return nil
}

// Get returns the collection with the given id, or nil if absent.
func (r *CollectionRepository) Get(id string) (*models.Collection, error) {
	row := r.db.QueryRow(`
		SELECT id, user_id, name, description, is_default, is_public, created_at, updated_at
		FROM collections WHERE id = ?`, id)

	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}
	return c, nil
}

// GetWithItems returns the collection together with its memberships ordered
// by added time, each joined to its content metadata. Nil if absent.
func (r *CollectionRepository) GetWithItems(id string) (*models.CollectionWithItems, error) {
	c, err := r.Get(id)
	if err != nil || c == nil {
		return nil, err
	}

	items, err := r.ListItems(id)
	if err != nil {
		return nil, err
	}

	return &models.CollectionWithItems{Collection: *c, Items: items}, nil
}

// List returns collections ordered by creation time. An empty userID returns
// every collection; a non-empty one scopes the read to that user.
func (r *CollectionRepository) List(userID string) ([]models.Collection, error) {
	query := `
		SELECT id, user_id, name, description, is_default, is_public, created_at, updated_at
		FROM collections`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var collections []models.Collection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		collections = append(collections, *c)
	}
	return collections, rows.Err()
}

// GetDefault returns the default collection with the given display name, or
// nil if absent. An empty userID matches any user's default (the historical
// unscoped behavior); a non-empty one scopes the lookup.
func (r *CollectionRepository) GetDefault(userID, name string) (*models.Collection, error) {
	query := `
		SELECT id, user_id, name, description, is_default, is_public, created_at, updated_at
		FROM collections WHERE is_default = 1 AND name = ?`
	args := []any{name}
	if userID != "" {
		query += ` AND user_id = ?`
		args = append(args, userID)
	}
	query += ` ORDER BY created_at LIMIT 1`

	row := r.db.QueryRow(query, args...)
	c, err := scanCollection(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get default collection: %w", err)
	}
	return c, nil
}

// GetOrCreateDefault returns the user's default collection with the given
// display name, creating it when missing. The read and write run inside one
// transaction so concurrent first use cannot seed two rows; the partial
// unique index on (user_id, name) for defaults backstops the race, and a
// lost insert falls back to re-reading the winner's row.
func (r *CollectionRepository) GetOrCreateDefault(userID, name, description string) (*models.Collection, error) {
	var result *models.Collection

	err := withBusyRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		row := tx.QueryRow(`
			SELECT id, user_id, name, description, is_default, is_public, created_at, updated_at
			FROM collections WHERE is_default = 1 AND user_id = ? AND name = ?`, userID, name)
		existing, err := scanCollection(row)
		if err == nil {
			result = existing
			return tx.Commit()
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("lookup default collection: %w", err)
		}

		now := time.Now().UTC()
		created := &models.Collection{
			ID:          uuid.NewString(),
			UserID:      userID,
			Name:        name,
			Description: description,
			IsDefault:   true,
			IsPublic:    false,
			CreatedAt:   now,
			UpdatedAt:   now,
		}

		_, err = tx.Exec(`
			INSERT INTO collections (id, user_id, name, description, is_default, is_public, created_at, updated_at)
			VALUES (?, ?, ?, ?, 1, 0, ?, ?)`,
			created.ID, created.UserID, created.Name, created.Description, created.CreatedAt, created.UpdatedAt)
		if err != nil {
			return fmt.Errorf("insert default collection: %w", err)
		}

		result = created
		return tx.Commit()
	})
	if err != nil {
		// Another writer may have seeded the row between our transactions.
		if isUniqueViolation(err) {
			return r.GetDefault(userID, name)
		}
		return nil, err
	}

	r.notifier.Notify(TableCollections)
	return result, nil
}

// Update applies a partial update and refreshes updated_at. Returns
// ErrNotFound if the collection does not exist.
func (r *CollectionRepository) Update(id string, upd models.CollectionUpdate) (*models.Collection, error) {
	existing, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrNotFound
	}

	if upd.Name != nil {
		existing.Name = *upd.Name
	}
	if upd.Description != nil {
		existing.Description = *upd.Description
	}
	if upd.IsPublic != nil {
		existing.IsPublic = *upd.IsPublic
	}
	existing.UpdatedAt = time.Now().UTC()

	res, err := r.db.Exec(`
		UPDATE collections SET name = ?, description = ?, is_public = ?, updated_at = ?
		WHERE id = ?`,
		existing.Name, existing.Description, existing.IsPublic, existing.UpdatedAt, id)
	if err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, ErrNotFound
	}

	r.notifier.Notify(TableCollections)
	return existing, nil
}

// Delete removes a collection and, via cascade, its memberships. Deleting a
// missing id is not an error.
func (r *CollectionRepository) Delete(id string) error {
	_, err := r.db.Exec(`DELETE FROM collections WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}

	r.notifier.Notify(TableCollections, TableCollectionItems)
	return nil
}

// AddItem upserts the content metadata and the membership row inside a single
// transaction: either both effects land or neither does. Re-adding an
// existing (collection, tmdb id, media type) updates the membership in place
// and keeps its original id.
func (r *CollectionRepository) AddItem(collectionID string, tmdbID int64, mediaType string, meta models.ContentUpsert, notes string) (*models.CollectionItem, error) {
	var item *models.CollectionItem

	err := withBusyRetry(func() error {
		tx, err := r.db.Begin()
		if err != nil {
			return fmt.Errorf("begin transaction: %w", err)
		}
		defer tx.Rollback()

		var exists int
		if err := tx.QueryRow(`SELECT COUNT(1) FROM collections WHERE id = ?`, collectionID).Scan(&exists); err != nil {
			return fmt.Errorf("check collection: %w", err)
		}
		if exists == 0 {
			return ErrNotFound
		}

		content, err := upsertContentTx(tx, tmdbID, mediaType, meta)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		itemID := uuid.NewString()
		_, err = tx.Exec(`
			INSERT INTO collection_items (id, collection_id, content_id, tmdb_id, media_type, added_at, notes)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(collection_id, tmdb_id, media_type) DO UPDATE SET
				added_at = excluded.added_at,
				notes = excluded.notes`,
			itemID, collectionID, content.ID, tmdbID, mediaType, now, notes)
		if err != nil {
			return fmt.Errorf("insert membership: %w", err)
		}

		// The conflict path keeps the original row id, so read it back.
		row := tx.QueryRow(`
			SELECT id, collection_id, content_id, tmdb_id, media_type, added_at, notes
			FROM collection_items WHERE collection_id = ? AND tmdb_id = ? AND media_type = ?`,
			collectionID, tmdbID, mediaType)
		stored, err := scanItem(row)
		if err != nil {
			return fmt.Errorf("read membership: %w", err)
		}
		stored.Content = content

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
		item = stored
		return nil
	})
	if err != nil {
		return nil, err
	}

	r.notifier.Notify(TableCollectionItems, TableContentMetadata)
	return item, nil
}

// RemoveItem deletes the membership for (collection, tmdb id, media type).
// Idempotent; the content metadata row stays, other collections may reference it.
func (r *CollectionRepository) RemoveItem(collectionID string, tmdbID int64, mediaType string) error {
	_, err := r.db.Exec(`
		DELETE FROM collection_items WHERE collection_id = ? AND tmdb_id = ? AND media_type = ?`,
		collectionID, tmdbID, mediaType)
	if err != nil {
		return fmt.Errorf("remove membership: %w", err)
	}

	r.notifier.Notify(TableCollectionItems)
	return nil
}

// HasItem reports whether the membership exists.
func (r *CollectionRepository) HasItem(collectionID string, tmdbID int64, mediaType string) (bool, error) {
	var count int
	err := r.db.QueryRow(`
		SELECT COUNT(1) FROM collection_items
		WHERE collection_id = ? AND tmdb_id = ? AND media_type = ?`,
		collectionID, tmdbID, mediaType).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// ListItems returns a collection's memberships in added order, each joined to
// its content metadata.
func (r *CollectionRepository) ListItems(collectionID string) ([]models.CollectionItem, error) {
	rows, err := r.db.Query(`
		SELECT ci.id, ci.collection_id, ci.content_id, ci.tmdb_id, ci.media_type, ci.added_at, ci.notes,
			cm.id, cm.tmdb_id, cm.media_type, cm.title, cm.original_title, cm.overview,
			cm.poster_path, cm.backdrop_path, cm.release_date, cm.genres,
			cm.vote_average, cm.vote_count, cm.popularity, cm.adult, cm.created_at, cm.updated_at
		FROM collection_items ci
		JOIN content_metadata cm ON cm.id = ci.content_id
		WHERE ci.collection_id = ?
		ORDER BY ci.added_at, ci.id`, collectionID)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	defer rows.Close()

	var items []models.CollectionItem
	for rows.Next() {
		var item models.CollectionItem
		var content models.ContentMetadata
		err := rows.Scan(
			&item.ID, &item.CollectionID, &item.ContentID, &item.TMDBID, &item.MediaType, &item.AddedAt, &item.Notes,
			&content.ID, &content.TMDBID, &content.MediaType, &content.Title, &content.OriginalTitle, &content.Overview,
			&content.PosterPath, &content.BackdropPath, &content.ReleaseDate, &content.Genres,
			&content.VoteAverage, &content.VoteCount, &content.Popularity, &content.Adult, &content.CreatedAt, &content.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("scan membership: %w", err)
		}
		item.Content = &content
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountItems returns the number of memberships in a collection.
func (r *CollectionRepository) CountItems(collectionID string) (int, error) {
	var count int
	err := r.db.QueryRow(`SELECT COUNT(1) FROM collection_items WHERE collection_id = ?`, collectionID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count memberships: %w", err)
	}
	return count, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrConstraint
	}
	return false
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanCollection(s scanner) (*models.Collection, error) {
	var c models.Collection
	err := s.Scan(&c.ID, &c.UserID, &c.Name, &c.Description, &c.IsDefault, &c.IsPublic, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func scanItem(s scanner) (*models.CollectionItem, error) {
	var item models.CollectionItem
	err := s.Scan(&item.ID, &item.CollectionID, &item.ContentID, &item.TMDBID, &item.MediaType, &item.AddedAt, &item.Notes)
	if err != nil {
		return nil, err
	}
	return &item, nil
}
