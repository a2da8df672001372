package collections

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"reelvault/internal/database"
	"reelvault/models"
)

var (
	ErrUserIDRequired     = errors.New("user id is required")
	ErrNameRequired       = errors.New("collection name is required")
	ErrCollectionNotFound = errors.New("collection not found")
	ErrInvalidMediaType   = errors.New("media type must be movie or tv")
	ErrInvalidDefaultType = errors.New("unknown default collection type")
)

// Options tunes service behavior.
type Options struct {
	// ScopeReadsToUser makes list and default-collection reads filter by the
	// calling user. Off by default: the historical behavior reads globally,
	// and callers that relied on it keep working until they opt in.
	ScopeReadsToUser bool
}

// Service is the single entry point for collection, membership and content
// metadata operations. All writes go through the repositories' transactional
// paths; all reads treat absence as a value rather than an error.
type Service struct {
	repo    *database.CollectionRepository
	content *database.ContentRepository
	db      *database.DB
	opts    Options

	// Serializes concurrent first-time default-collection creation per
	// (user, default type). The storage layer's unique index is the
	// backstop; the mutex keeps the common path quiet.
	defaultMu    sync.Mutex
	defaultLocks map[string]*sync.Mutex
}

// NewService creates a collections service over the given database.
func NewService(db *database.DB, opts Options) *Service {
	return &Service{
		repo:         db.Collections,
		content:      db.Content,
		db:           db,
		opts:         opts,
		defaultLocks: make(map[string]*sync.Mutex),
	}
}

// CreateCollection creates a custom (non-default) collection for a user.
func (s *Service) CreateCollection(userID, name, description string, isPublic bool) (*models.Collection, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrNameRequired
	}

	now := time.Now().UTC()
	c := &models.Collection{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        name,
		Description: description,
		IsDefault:   false,
		IsPublic:    isPublic,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := s.repo.Insert(c); err != nil {
		return nil, fmt.Errorf("create collection: %w", err)
	}
	return c, nil
}

// GetCollection returns the collection with its items, or nil if absent.
func (s *Service) GetCollection(id string) (*models.CollectionWithItems, error) {
	return s.repo.GetWithItems(id)
}

// ListCollections returns collections. With ScopeReadsToUser set the read is
// filtered to userID; otherwise every collection is returned and callers
// scope by session themselves.
func (s *Service) ListCollections(userID string) ([]models.Collection, error) {
	if s.opts.ScopeReadsToUser {
		return s.repo.List(userID)
	}
	return s.repo.List("")
}

// GetDefaultCollection returns the default collection of the given type, or
// nil if it has not been seeded yet.
func (s *Service) GetDefaultCollection(userID string, typ models.DefaultCollection) (*models.Collection, error) {
	if !typ.Valid() {
		return nil, ErrInvalidDefaultType
	}
	if s.opts.ScopeReadsToUser {
		return s.repo.GetDefault(userID, typ.DisplayName())
	}
	return s.repo.GetDefault("", typ.DisplayName())
}

// UpdateCollection applies a partial update. Returns ErrCollectionNotFound
// when the id does not exist.
func (s *Service) UpdateCollection(id string, upd models.CollectionUpdate) (*models.Collection, error) {
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return nil, ErrNameRequired
	}

	updated, err := s.repo.Update(id, upd)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update collection: %w", err)
	}
	return updated, nil
}

// DeleteCollection removes a collection and all its memberships. Idempotent.
func (s *Service) DeleteCollection(id string) error {
	return s.repo.Delete(id)
}

// AddToCollection upserts the content metadata and inserts (or refreshes) the
// membership atomically, returning the surviving membership row.
func (s *Service) AddToCollection(collectionID string, tmdbID int64, mediaType string, meta models.ContentUpsert, notes string) (*models.CollectionItem, error) {
	if !models.ValidMediaType(mediaType) {
		return nil, ErrInvalidMediaType
	}

	item, err := s.repo.AddItem(collectionID, tmdbID, mediaType, meta, notes)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrCollectionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("add to collection: %w", err)
	}
	return item, nil
}

// RemoveFromCollection deletes the matching membership. Idempotent.
func (s *Service) RemoveFromCollection(collectionID string, tmdbID int64, mediaType string) error {
	if !models.ValidMediaType(mediaType) {
		return ErrInvalidMediaType
	}
	return s.repo.RemoveItem(collectionID, tmdbID, mediaType)
}

// IsInCollection reports whether the content is a member of the collection.
func (s *Service) IsInCollection(collectionID string, tmdbID int64, mediaType string) (bool, error) {
	return s.repo.HasItem(collectionID, tmdbID, mediaType)
}

// SaveContentMetadata idempotently upserts a content metadata snapshot.
func (s *Service) SaveContentMetadata(tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.ContentMetadata, error) {
	if !models.ValidMediaType(mediaType) {
		return nil, ErrInvalidMediaType
	}
	return s.content.Upsert(tmdbID, mediaType, meta)
}

// GetContentMetadata returns the cached snapshot, or nil if absent.
func (s *Service) GetContentMetadata(tmdbID int64, mediaType string) (*models.ContentMetadata, error) {
	return s.content.Get(tmdbID, mediaType)
}

// InitializeDefaultCollections idempotently seeds the Watchlist and Already
// Watched collections for a user. Existing defaults keep their ids.
func (s *Service) InitializeDefaultCollections(userID string) error {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return ErrUserIDRequired
	}

	for _, typ := range []models.DefaultCollection{models.DefaultWatchlist, models.DefaultAlreadyWatched} {
		if _, err := s.resolveDefault(userID, typ); err != nil {
			return fmt.Errorf("seed %s: %w", typ.DisplayName(), err)
		}
	}
	return nil
}

// AddToWatchlist adds content to the user's Watchlist, seeding it on first use.
func (s *Service) AddToWatchlist(userID string, tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.CollectionItem, error) {
	return s.addToDefault(userID, models.DefaultWatchlist, tmdbID, mediaType, meta)
}

// AddToAlreadyWatched adds content to the user's Already Watched list.
func (s *Service) AddToAlreadyWatched(userID string, tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.CollectionItem, error) {
	return s.addToDefault(userID, models.DefaultAlreadyWatched, tmdbID, mediaType, meta)
}

// RemoveFromWatchlist removes content from the user's Watchlist. Idempotent,
// including when the Watchlist was never seeded.
func (s *Service) RemoveFromWatchlist(userID string, tmdbID int64, mediaType string) error {
	return s.removeFromDefault(userID, models.DefaultWatchlist, tmdbID, mediaType)
}

// RemoveFromAlreadyWatched removes content from the Already Watched list.
func (s *Service) RemoveFromAlreadyWatched(userID string, tmdbID int64, mediaType string) error {
	return s.removeFromDefault(userID, models.DefaultAlreadyWatched, tmdbID, mediaType)
}

// IsInWatchlist reports whether the content sits in the default Watchlist.
func (s *Service) IsInWatchlist(userID string, tmdbID int64, mediaType string) (bool, error) {
	return s.isInDefault(userID, models.DefaultWatchlist, tmdbID, mediaType)
}

// IsAlreadyWatched reports whether the content sits in Already Watched.
func (s *Service) IsAlreadyWatched(userID string, tmdbID int64, mediaType string) (bool, error) {
	return s.isInDefault(userID, models.DefaultAlreadyWatched, tmdbID, mediaType)
}

func (s *Service) addToDefault(userID string, typ models.DefaultCollection, tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.CollectionItem, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if !models.ValidMediaType(mediaType) {
		return nil, ErrInvalidMediaType
	}

	c, err := s.resolveDefault(userID, typ)
	if err != nil {
		return nil, err
	}
	return s.AddToCollection(c.ID, tmdbID, mediaType, meta, "")
}

func (s *Service) removeFromDefault(userID string, typ models.DefaultCollection, tmdbID int64, mediaType string) error {
	if !models.ValidMediaType(mediaType) {
		return ErrInvalidMediaType
	}

	c, err := s.GetDefaultCollection(userID, typ)
	if err != nil {
		return err
	}
	if c == nil {
		return nil // nothing seeded, nothing to remove
	}
	return s.RemoveFromCollection(c.ID, tmdbID, mediaType)
}

func (s *Service) isInDefault(userID string, typ models.DefaultCollection, tmdbID int64, mediaType string) (bool, error) {
	c, err := s.GetDefaultCollection(userID, typ)
	if err != nil || c == nil {
		return false, err
	}
	return s.IsInCollection(c.ID, tmdbID, mediaType)
}

// resolveDefault looks up or creates the default collection of the given
// type, serializing concurrent first use per (user, type).
func (s *Service) resolveDefault(userID string, typ models.DefaultCollection) (*models.Collection, error) {
	if !typ.Valid() {
		return nil, ErrInvalidDefaultType
	}

	lock := s.lockFor(userID + "/" + string(typ))
	lock.Lock()
	defer lock.Unlock()

	c, err := s.repo.GetOrCreateDefault(userID, typ.DisplayName(), typ.Description())
	if err != nil {
		return nil, fmt.Errorf("resolve default collection: %w", err)
	}
	return c, nil
}

func (s *Service) lockFor(key string) *sync.Mutex {
	s.defaultMu.Lock()
	defer s.defaultMu.Unlock()

	lock, ok := s.defaultLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		s.defaultLocks[key] = lock
	}
	return lock
}
