package cart

import (
	"context"
	"sync"
	"time"

	"vendhub-bot/internal/model"
)

// cartEntry holds a cart with its inactivity deadline.
type cartEntry struct {
	cart      *model.Cart
	expiresAt time.Time
}

func (e *cartEntry) isExpired() bool {
	return time.Now().After(e.expiresAt)
}

// MemoryStore is an in-memory implementation of Store. Every operation
// on a cart refreshes its TTL; expired carts are dropped lazily on read
// and in bulk by PurgeExpired.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*cartEntry
	ttl     time.Duration
}

// NewMemoryStore creates a new in-memory cart store with the given
// inactivity window.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &MemoryStore{
		entries: make(map[string]*cartEntry),
		ttl:     ttl,
	}
}

func copyCart(c *model.Cart) *model.Cart {
	out := *c
	out.Lines = append([]model.CartLine(nil), c.Lines...)
	return &out
}

// live returns the caller's live cart, creating it if absent or expired.
// Caller must hold the write lock.
func (s *MemoryStore) live(userID string) *model.Cart {
	entry, ok := s.entries[userID]
	if !ok || entry.isExpired() {
		entry = &cartEntry{cart: &model.Cart{UserID: userID}}
		s.entries[userID] = entry
	}
	entry.expiresAt = time.Now().Add(s.ttl)
	entry.cart.UpdatedAt = time.Now().UTC()
	return entry.cart
}

// Get returns the user's cart.
func (s *MemoryStore) Get(ctx context.Context, userID string) (*model.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[userID]
	if !ok || entry.isExpired() {
		return &model.Cart{UserID: userID}, nil
	}
	return copyCart(entry.cart), nil
}

// Add stages qty units of item onto the user's cart.
func (s *MemoryStore) Add(ctx context.Context, userID string, item *model.Item, qty int64) (*model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(userID)
	if err := merge(c, item, qty); err != nil {
		return nil, err
	}
	return copyCart(c), nil
}

// Remove drops qty units of itemID from the user's cart.
func (s *MemoryStore) Remove(ctx context.Context, userID string, itemID, qty int64) (*model.Cart, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.live(userID)
	if err := reduce(c, itemID, qty); err != nil {
		return nil, err
	}
	return copyCart(c), nil
}

// Clear drops the whole cart.
func (s *MemoryStore) Clear(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.entries, userID)
	return nil
}

// PurgeExpired removes expired carts and returns the number dropped.
// Driven by the cleanup scheduler.
func (s *MemoryStore) PurgeExpired(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var purged int64
	for userID, entry := range s.entries {
		if entry.isExpired() {
			delete(s.entries, userID)
			purged++
		}
	}
	return purged, nil
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements Store
var _ Store = (*MemoryStore)(nil)
