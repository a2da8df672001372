package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"

	"reelvault/internal/auth"
	"reelvault/models"
	"reelvault/services/collections"
)

type collectionsService interface {
	CreateCollection(userID, name, description string, isPublic bool) (*models.Collection, error)
	GetCollection(id string) (*models.CollectionWithItems, error)
	ListCollections(userID string) ([]models.Collection, error)
	GetDefaultCollection(userID string, typ models.DefaultCollection) (*models.Collection, error)
	UpdateCollection(id string, upd models.CollectionUpdate) (*models.Collection, error)
	DeleteCollection(id string) error
	AddToCollection(collectionID string, tmdbID int64, mediaType string, meta models.ContentUpsert, notes string) (*models.CollectionItem, error)
	RemoveFromCollection(collectionID string, tmdbID int64, mediaType string) error
	IsInCollection(collectionID string, tmdbID int64, mediaType string) (bool, error)
	InitializeDefaultCollections(userID string) error
	AddToWatchlist(userID string, tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.CollectionItem, error)
	AddToAlreadyWatched(userID string, tmdbID int64, mediaType string, meta models.ContentUpsert) (*models.CollectionItem, error)
	RemoveFromWatchlist(userID string, tmdbID int64, mediaType string) error
	RemoveFromAlreadyWatched(userID string, tmdbID int64, mediaType string) error
	IsInWatchlist(userID string, tmdbID int64, mediaType string) (bool, error)
	IsAlreadyWatched(userID string, tmdbID int64, mediaType string) (bool, error)
	WatchCollection(ctx context.Context, id string) <-chan *models.CollectionWithItems
}

var _ collectionsService = (*collections.Service)(nil)

type CollectionsHandler struct {
	Service collectionsService
}

func NewCollectionsHandler(service collectionsService) *CollectionsHandler {
	return &CollectionsHandler{Service: service}
}

// List returns the collections visible to the caller.
func (h *CollectionsHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	list, err := h.Service.ListCollections(userID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(list)
}

// Create makes a new custom collection owned by the caller.
func (h *CollectionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		IsPublic    bool   `json:"isPublic"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := h.Service.CreateCollection(userID, body.Name, body.Description, body.IsPublic)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, collections.ErrNameRequired) || errors.Is(err, collections.ErrUserIDRequired) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(c)
}

// Get returns a collection with its items.
func (h *CollectionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	c, err := h.Service.GetCollection(id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if c == nil {
		http.Error(w, "collection not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// Update applies a partial update to a collection.
func (h *CollectionsHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body models.CollectionUpdate
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	c, err := h.Service.UpdateCollection(id, body)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, collections.ErrCollectionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, collections.ErrNameRequired):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(c)
}

// Delete removes a collection and its memberships.
func (h *CollectionsHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := h.Service.DeleteCollection(id); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// AddItem adds content to a collection, caching its metadata snapshot.
func (h *CollectionsHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var body struct {
		TmdbID    int64                `json:"tmdbId"`
		MediaType string               `json:"mediaType"`
		Notes     string               `json:"notes"`
		Metadata  models.ContentUpsert `json:"metadata"`
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&body); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	item, err := h.Service.AddToCollection(id, body.TmdbID, body.MediaType, body.Metadata, body.Notes)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, collections.ErrCollectionNotFound):
			status = http.StatusNotFound
		case errors.Is(err, collections.ErrInvalidMediaType):
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(item)
}

// RemoveItem removes content from a collection. Removing an absent item
// still succeeds.
func (h *CollectionsHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tmdbID, mediaType, ok := h.contentKey(w, r)
	if !ok {
		return
	}

	if err := h.Service.RemoveFromCollection(id, tmdbID, mediaType); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, collections.ErrInvalidMediaType) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CheckItem reports whether content is in a collection.
func (h *CollectionsHandler) CheckItem(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	tmdbID, mediaType, ok := h.contentKey(w, r)
	if !ok {
		return
	}

	exists, err := h.Service.IsInCollection(id, tmdbID, mediaType)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"inCollection": exists})
}

// Watch streams the collection with its items over SSE. Each change to the
// collection, its memberships or the cached metadata produces a new event.
func (h *CollectionsHandler) Watch(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates := h.Service.WatchCollection(r.Context(), id)
	for c := range updates {
		payload, err := json.Marshal(c)
		if err != nil {
			continue
		}
		fmt.Fprintf(w, "data: %s\n\n", payload)
		flusher.Flush()
	}
}

// GetWatchlist returns the caller's Watchlist with items, or an empty
// collection shape if it has not been seeded.
func (h *CollectionsHandler) GetWatchlist(w http.ResponseWriter, r *http.Request) {
	h.getDefault(w, r, models.DefaultWatchlist)
}

// GetAlreadyWatched returns the caller's Already Watched list.
func (h *CollectionsHandler) GetAlreadyWatched(w http.ResponseWriter, r *http.Request) {
	h.getDefault(w, r, models.DefaultAlreadyWatched)
}

// AddToWatchlist adds content to the caller's Watchlist, seeding it on
// first use.
func (h *CollectionsHandler) AddToWatchlist(w http.ResponseWriter, r *http.Request) {
	h.addToDefault(w, r, models.DefaultWatchlist)
}

// AddToAlreadyWatched marks content as watched.
func (h *CollectionsHandler) AddToAlreadyWatched(w http.ResponseWriter, r *http.Request) {
	h.addToDefault(w, r, models.DefaultAlreadyWatched)
}

// RemoveFromWatchlist removes content from the caller's Watchlist.
func (h *CollectionsHandler) RemoveFromWatchlist(w http.ResponseWriter, r *http.Request) {
	h.removeFromDefault(w, r, models.DefaultWatchlist)
}

// RemoveFromAlreadyWatched clears the watched mark for content.
func (h *CollectionsHandler) RemoveFromAlreadyWatched(w http.ResponseWriter, r *http.Request) {
	h.removeFromDefault(w, r, models.DefaultAlreadyWatched)
}

// CheckWatchlist reports Watchlist membership.
func (h *CollectionsHandler) CheckWatchlist(w http.ResponseWriter, r *http.Request) {
	h.checkDefault(w, r, models.DefaultWatchlist)
}

// CheckAlreadyWatched reports Already Watched membership.
func (h *CollectionsHandler) CheckAlreadyWatched(w http.ResponseWriter, r *http.Request) {
	h.checkDefault(w, r, models.DefaultAlreadyWatched)
}

func (h *CollectionsHandler) getDefault(w http.ResponseWriter, r *http.Request, typ models.DefaultCollection) {
	userID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}

	c, err := h.Service.GetDefaultCollection(userID, typ)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if c == nil {
		// Not seeded yet: an empty list, not an error.
		json.NewEncoder(w).Encode(models.CollectionWithItems{
			Collection: models.Collection{UserID: userID, Name: typ.DisplayName(), IsDefault: true},
			Items:      []models.CollectionItem{},
		})
		return
	}

	full, err := h.Service.GetCollection(c.ID)
	if err != nil || full == nil {
		http.Error(w, "failed to load collection items", http.StatusInternalServerError)
		return
	}
	json.NewEncoder(w).Encode(full)
}

func (h *CollectionsHandler) addToDefault(w http.ResponseWriter, r *http.Request, typ models.DefaultCollection) {
	userID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	tmdbID, mediaType, ok := h.contentKey(w, r)
	if !ok {
		return
	}

	var meta models.ContentUpsert
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&meta); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	var item *models.CollectionItem
	var err error
	switch typ {
	case models.DefaultWatchlist:
		item, err = h.Service.AddToWatchlist(userID, tmdbID, mediaType, meta)
	default:
		item, err = h.Service.AddToAlreadyWatched(userID, tmdbID, mediaType, meta)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, collections.ErrInvalidMediaType) || errors.Is(err, collections.ErrUserIDRequired) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

func (h *CollectionsHandler) removeFromDefault(w http.ResponseWriter, r *http.Request, typ models.DefaultCollection) {
	userID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	tmdbID, mediaType, ok := h.contentKey(w, r)
	if !ok {
		return
	}

	var err error
	switch typ {
	case models.DefaultWatchlist:
		err = h.Service.RemoveFromWatchlist(userID, tmdbID, mediaType)
	default:
		err = h.Service.RemoveFromAlreadyWatched(userID, tmdbID, mediaType)
	}
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, collections.ErrInvalidMediaType) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *CollectionsHandler) checkDefault(w http.ResponseWriter, r *http.Request, typ models.DefaultCollection) {
	userID, ok := h.requireAccount(w, r)
	if !ok {
		return
	}
	tmdbID, mediaType, ok := h.contentKey(w, r)
	if !ok {
		return
	}

	var exists bool
	var err error
	switch typ {
	case models.DefaultWatchlist:
		exists, err = h.Service.IsInWatchlist(userID, tmdbID, mediaType)
	default:
		exists, err = h.Service.IsAlreadyWatched(userID, tmdbID, mediaType)
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"inCollection": exists})
}

func (h *CollectionsHandler) Options(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func (h *CollectionsHandler) requireAccount(w http.ResponseWriter, r *http.Request) (string, bool) {
	accountID := strings.TrimSpace(auth.GetAccountID(r))
	if accountID == "" {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", false
	}
	return accountID, true
}

// contentKey pulls the {mediaType}/{tmdbID} pair out of the route.
func (h *CollectionsHandler) contentKey(w http.ResponseWriter, r *http.Request) (int64, string, bool) {
	vars := mux.Vars(r)
	mediaType := vars["mediaType"]
	tmdbID, err := strconv.ParseInt(vars["tmdbID"], 10, 64)
	if err != nil || tmdbID <= 0 {
		http.Error(w, "invalid tmdb id", http.StatusBadRequest)
		return 0, "", false
	}
	return tmdbID, mediaType, true
}
