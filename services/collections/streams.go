package collections

import (
	"context"
	"log"

	"reelvault/internal/database"
	"reelvault/models"
)

// Watch streams emit the current value immediately, then re-emit after any
// relevant table change, until the context is cancelled. Absence is emitted
// as nil (or false), never as an error; query failures are logged and the
// previous emission stands until the next change.

// WatchCollection streams the collection with its items. Emits nil while the
// collection does not exist.
func (s *Service) WatchCollection(ctx context.Context, id string) <-chan *models.CollectionWithItems {
	tables := []string{database.TableCollections, database.TableCollectionItems, database.TableContentMetadata}
	return watch(ctx, s.db.Notifier(), tables, func() (*models.CollectionWithItems, error) {
		return s.repo.GetWithItems(id)
	})
}

// WatchCollections streams the collection list, scoped per Options.
func (s *Service) WatchCollections(ctx context.Context, userID string) <-chan []models.Collection {
	tables := []string{database.TableCollections}
	return watch(ctx, s.db.Notifier(), tables, func() ([]models.Collection, error) {
		return s.ListCollections(userID)
	})
}

// WatchDefaultCollection streams the default collection of the given type.
func (s *Service) WatchDefaultCollection(ctx context.Context, userID string, typ models.DefaultCollection) <-chan *models.Collection {
	tables := []string{database.TableCollections}
	return watch(ctx, s.db.Notifier(), tables, func() (*models.Collection, error) {
		return s.GetDefaultCollection(userID, typ)
	})
}

// WatchIsInCollection streams membership existence for a collection.
func (s *Service) WatchIsInCollection(ctx context.Context, collectionID string, tmdbID int64, mediaType string) <-chan bool {
	tables := []string{database.TableCollectionItems}
	return watch(ctx, s.db.Notifier(), tables, func() (bool, error) {
		return s.IsInCollection(collectionID, tmdbID, mediaType)
	})
}

// WatchIsInWatchlist streams Watchlist membership. Emits false while the
// Watchlist has not been seeded.
func (s *Service) WatchIsInWatchlist(ctx context.Context, userID string, tmdbID int64, mediaType string) <-chan bool {
	tables := []string{database.TableCollections, database.TableCollectionItems}
	return watch(ctx, s.db.Notifier(), tables, func() (bool, error) {
		return s.IsInWatchlist(userID, tmdbID, mediaType)
	})
}

// WatchIsAlreadyWatched streams Already Watched membership.
func (s *Service) WatchIsAlreadyWatched(ctx context.Context, userID string, tmdbID int64, mediaType string) <-chan bool {
	tables := []string{database.TableCollections, database.TableCollectionItems}
	return watch(ctx, s.db.Notifier(), tables, func() (bool, error) {
		return s.IsAlreadyWatched(userID, tmdbID, mediaType)
	})
}

// watch runs the subscribe/re-query loop shared by every stream.
func watch[T any](ctx context.Context, notifier *database.Notifier, tables []string, query func() (T, error)) <-chan T {
	out := make(chan T)
	signals, cancel := notifier.Subscribe(tables...)

	go func() {
		defer close(out)
		defer cancel()

		emit := func() {
			value, err := query()
			if err != nil {
				log.Printf("[collections] watch query failed: %v", err)
				return
			}
			select {
			case out <- value:
			case <-ctx.Done():
			}
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-signals:
				if !ok {
					return
				}
				emit()
			}
		}
	}()

	return out
}
