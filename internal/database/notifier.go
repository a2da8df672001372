package database

import "sync"

// Table names used for change notification.
const (
	TableCollections     = "collections"
	TableCollectionItems = "collection_items"
	TableContentMetadata = "content_metadata"
)

// Notifier fans out table-change signals to subscribers. Repositories call
// Notify after every successful write; watch streams subscribe and re-query
// when a signal arrives. Signals are coalesced: a subscriber that has not yet
// drained its channel sees at most one pending signal no matter how many
// writes happened in between.
type Notifier struct {
	mu     sync.Mutex
	nextID int
	subs   map[int]*subscriber
}

type subscriber struct {
	tables map[string]struct{}
	ch     chan struct{}
}

// NewNotifier creates an empty notifier.
func NewNotifier() *Notifier {
	return &Notifier{subs: make(map[int]*subscriber)}
}

// Subscribe registers interest in the given tables and returns a signal
// channel plus a cancel function. The channel is closed on cancel.
func (n *Notifier) Subscribe(tables ...string) (<-chan struct{}, func()) {
	sub := &subscriber{
		tables: make(map[string]struct{}, len(tables)),
		ch:     make(chan struct{}, 1),
	}
	for _, t := range tables {
		sub.tables[t] = struct{}{}
	}

	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.subs[id] = sub
	n.mu.Unlock()

	cancel := func() {
		n.mu.Lock()
		if s, ok := n.subs[id]; ok {
			delete(n.subs, id)
			close(s.ch)
		}
		n.mu.Unlock()
	}

	return sub.ch, cancel
}

// Notify signals every subscriber interested in any of the given tables.
func (n *Notifier) Notify(tables ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, sub := range n.subs {
		if !sub.interestedIn(tables) {
			continue
		}
		select {
		case sub.ch <- struct{}{}:
		default: // a signal is already pending
		}
	}
}

func (s *subscriber) interestedIn(tables []string) bool {
	for _, t := range tables {
		if _, ok := s.tables[t]; ok {
			return true
		}
	}
	return false
}
