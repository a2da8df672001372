package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"reelvault/models"
)

// setupTestDB creates a new test database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "test.db")
	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func newTestCollection(userID, name string) *models.Collection {
	now := time.Now().UTC()
	return &models.Collection{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func sampleUpsert(title string) models.ContentUpsert {
	return models.ContentUpsert{
		Title:       title,
		Overview:    "overview",
		PosterPath:  "/poster.jpg",
		ReleaseDate: "1999-10-15",
		VoteAverage: 8.4,
	}
}

func TestNewDB_CreatesDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	dbPath := filepath.Join(tmpDir, "subdir", "nested", "test.db")

	db, err := NewDB(Config{DatabasePath: dbPath})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	defer db.Close()
}

func TestInsertAndGetCollection(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Horror Favorites")
	if err := db.Collections.Insert(c); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	retrieved, err := db.Collections.Get(c.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved == nil {
		t.Fatal("expected collection to be retrievable")
	}
	if retrieved.Name != "Horror Favorites" {
		t.Errorf("expected name 'Horror Favorites', got %q", retrieved.Name)
	}
	if retrieved.UserID != "u1" {
		t.Errorf("expected user 'u1', got %q", retrieved.UserID)
	}
}

func TestGetCollection_NotFound(t *testing.T) {
	db := setupTestDB(t)

	retrieved, err := db.Collections.Get("missing")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if retrieved != nil {
		t.Error("expected nil for non-existent collection")
	}
}

func TestListCollections_Scoped(t *testing.T) {
	db := setupTestDB(t)

	db.Collections.Insert(newTestCollection("alpha", "A"))
	db.Collections.Insert(newTestCollection("alpha", "B"))
	db.Collections.Insert(newTestCollection("beta", "C"))

	all, err := db.Collections.List("")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 collections unscoped, got %d", len(all))
	}

	scoped, err := db.Collections.List("alpha")
	if err != nil {
		t.Fatalf("List scoped failed: %v", err)
	}
	if len(scoped) != 2 {
		t.Errorf("expected 2 collections for alpha, got %d", len(scoped))
	}
}

func TestUpdateCollection_PartialUpdate(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Old Name")
	c.Description = "old description"
	db.Collections.Insert(c)

	newName := "New Name"
	updated, err := db.Collections.Update(c.ID, models.CollectionUpdate{Name: &newName})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "New Name" {
		t.Errorf("expected updated name, got %q", updated.Name)
	}
	if updated.Description != "old description" {
		t.Errorf("expected description to be retained, got %q", updated.Description)
	}
	if updated.UpdatedAt.Before(updated.CreatedAt) {
		t.Error("expected UpdatedAt >= CreatedAt after update")
	}
}

func TestUpdateCollection_NotFound(t *testing.T) {
	db := setupTestDB(t)

	name := "whatever"
	_, err := db.Collections.Update("missing", models.CollectionUpdate{Name: &name})
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDeleteCollection_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Doomed")
	db.Collections.Insert(c)

	if err := db.Collections.Delete(c.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := db.Collections.Delete(c.ID); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	retrieved, _ := db.Collections.Get(c.ID)
	if retrieved != nil {
		t.Error("expected collection to be gone")
	}
}

func TestDeleteCollection_CascadesMemberships(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Cascade")
	db.Collections.Insert(c)

	for i, id := range []int64{550, 27205, 680} {
		_, err := db.Collections.AddItem(c.ID, id, models.MediaTypeMovie, sampleUpsert("Movie"), "")
		if err != nil {
			t.Fatalf("AddItem %d failed: %v", i, err)
		}
	}

	count, _ := db.Collections.CountItems(c.ID)
	if count != 3 {
		t.Fatalf("expected 3 memberships before delete, got %d", count)
	}

	if err := db.Collections.Delete(c.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}

	count, err := db.Collections.CountItems(c.ID)
	if err != nil {
		t.Fatalf("CountItems failed: %v", err)
	}
	if count != 0 {
		t.Errorf("expected 0 memberships after cascade, got %d", count)
	}
}

func TestAddItem_CollectionMissing(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.Collections.AddItem("missing", 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "")
	if err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAddItem_DuplicateKeepsID(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Favorites")
	db.Collections.Insert(c)

	first, err := db.Collections.AddItem(c.ID, 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "first add")
	if err != nil {
		t.Fatalf("first AddItem failed: %v", err)
	}

	second, err := db.Collections.AddItem(c.ID, 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "second add")
	if err != nil {
		t.Fatalf("second AddItem failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected duplicate add to keep membership id %q, got %q", first.ID, second.ID)
	}
	if second.Notes != "second add" {
		t.Errorf("expected notes to be refreshed, got %q", second.Notes)
	}

	count, _ := db.Collections.CountItems(c.ID)
	if count != 1 {
		t.Errorf("expected exactly 1 membership, got %d", count)
	}
}

func TestRemoveItem_KeepsContentMetadata(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Favorites")
	db.Collections.Insert(c)
	db.Collections.AddItem(c.ID, 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "")

	if err := db.Collections.RemoveItem(c.ID, 550, models.MediaTypeMovie); err != nil {
		t.Fatalf("RemoveItem failed: %v", err)
	}

	has, _ := db.Collections.HasItem(c.ID, 550, models.MediaTypeMovie)
	if has {
		t.Error("expected membership to be gone")
	}

	// The shared metadata row survives membership removal.
	content, err := db.Content.Get(550, models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Content.Get failed: %v", err)
	}
	if content == nil {
		t.Error("expected content metadata to survive membership removal")
	}
}

func TestRemoveItem_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Favorites")
	db.Collections.Insert(c)
	db.Collections.AddItem(c.ID, 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "")

	if err := db.Collections.RemoveItem(c.ID, 550, models.MediaTypeMovie); err != nil {
		t.Fatalf("first RemoveItem failed: %v", err)
	}
	if err := db.Collections.RemoveItem(c.ID, 550, models.MediaTypeMovie); err != nil {
		t.Fatalf("second RemoveItem failed: %v", err)
	}
}

func TestListItems_JoinedAndOrdered(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Ordered")
	db.Collections.Insert(c)

	db.Collections.AddItem(c.ID, 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "")
	db.Collections.AddItem(c.ID, 1399, models.MediaTypeTV, sampleUpsert("Game of Thrones"), "")

	items, err := db.Collections.ListItems(c.ID)
	if err != nil {
		t.Fatalf("ListItems failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}
	for _, item := range items {
		if item.Content == nil {
			t.Fatalf("expected item %s to carry content metadata", item.ID)
		}
	}
	if items[0].TMDBID != 550 {
		t.Errorf("expected first item to be the earliest added, got tmdb id %d", items[0].TMDBID)
	}
}

func TestGetWithItems(t *testing.T) {
	db := setupTestDB(t)

	c := newTestCollection("u1", "Bundle")
	db.Collections.Insert(c)
	db.Collections.AddItem(c.ID, 550, models.MediaTypeMovie, sampleUpsert("Fight Club"), "")

	full, err := db.Collections.GetWithItems(c.ID)
	if err != nil {
		t.Fatalf("GetWithItems failed: %v", err)
	}
	if full == nil {
		t.Fatal("expected collection bundle")
	}
	if len(full.Items) != 1 {
		t.Errorf("expected 1 item, got %d", len(full.Items))
	}

	missing, err := db.Collections.GetWithItems("missing")
	if err != nil {
		t.Fatalf("GetWithItems for missing id failed: %v", err)
	}
	if missing != nil {
		t.Error("expected nil for missing collection")
	}
}

func TestGetOrCreateDefault_Idempotent(t *testing.T) {
	db := setupTestDB(t)

	first, err := db.Collections.GetOrCreateDefault("u1", "Watchlist", "to watch")
	if err != nil {
		t.Fatalf("first GetOrCreateDefault failed: %v", err)
	}
	if !first.IsDefault {
		t.Error("expected IsDefault on seeded collection")
	}

	second, err := db.Collections.GetOrCreateDefault("u1", "Watchlist", "to watch")
	if err != nil {
		t.Fatalf("second GetOrCreateDefault failed: %v", err)
	}
	if first.ID != second.ID {
		t.Errorf("expected stable default id, got %q then %q", first.ID, second.ID)
	}

	all, _ := db.Collections.List("u1")
	if len(all) != 1 {
		t.Errorf("expected exactly 1 collection, got %d", len(all))
	}
}

func TestGetOrCreateDefault_PerUser(t *testing.T) {
	db := setupTestDB(t)

	a, _ := db.Collections.GetOrCreateDefault("alpha", "Watchlist", "")
	b, _ := db.Collections.GetOrCreateDefault("beta", "Watchlist", "")

	if a.ID == b.ID {
		t.Error("expected distinct defaults for distinct users")
	}
}

func TestGetDefault_UnscopedAndScoped(t *testing.T) {
	db := setupTestDB(t)

	seeded, _ := db.Collections.GetOrCreateDefault("alpha", "Watchlist", "")

	unscoped, err := db.Collections.GetDefault("", "Watchlist")
	if err != nil {
		t.Fatalf("GetDefault failed: %v", err)
	}
	if unscoped == nil || unscoped.ID != seeded.ID {
		t.Error("expected unscoped lookup to find the seeded default")
	}

	other, err := db.Collections.GetDefault("beta", "Watchlist")
	if err != nil {
		t.Fatalf("GetDefault scoped failed: %v", err)
	}
	if other != nil {
		t.Error("expected no default for a user who has none")
	}
}

func TestContentUpsert_SingleRowLatestTitle(t *testing.T) {
	db := setupTestDB(t)

	first, err := db.Content.Upsert(550, models.MediaTypeMovie, sampleUpsert("Fight Club"))
	if err != nil {
		t.Fatalf("first Upsert failed: %v", err)
	}

	second, err := db.Content.Upsert(550, models.MediaTypeMovie, sampleUpsert("Fight Club (Remastered)"))
	if err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}

	if first.ID != second.ID {
		t.Errorf("expected upsert to keep row id %q, got %q", first.ID, second.ID)
	}
	if second.Title != "Fight Club (Remastered)" {
		t.Errorf("expected latest title retained, got %q", second.Title)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) {
		t.Error("expected created_at to survive upsert")
	}
}

func TestContentGet_NotFound(t *testing.T) {
	db := setupTestDB(t)

	content, err := db.Content.Get(999999, models.MediaTypeMovie)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if content != nil {
		t.Error("expected nil for unknown content")
	}
}

func TestContentKey_DisambiguatesMediaType(t *testing.T) {
	db := setupTestDB(t)

	// Same TMDB id as movie and as show must be two distinct rows.
	db.Content.Upsert(100, models.MediaTypeMovie, sampleUpsert("A Movie"))
	db.Content.Upsert(100, models.MediaTypeTV, sampleUpsert("A Show"))

	movie, _ := db.Content.Get(100, models.MediaTypeMovie)
	show, _ := db.Content.Get(100, models.MediaTypeTV)
	if movie == nil || show == nil {
		t.Fatal("expected both rows to exist")
	}
	if movie.ID == show.ID {
		t.Error("expected distinct rows for movie vs tv with the same tmdb id")
	}
}
