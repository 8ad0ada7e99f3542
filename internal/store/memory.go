package store

import (
	"strconv"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/i474232898/climatenet-bot/internal/conversation"
)

// entry guards one chat's session. Holding mu serializes that chat's events.
type entry struct {
	mu      sync.Mutex
	session conversation.Session
}

// MemoryStore is a concurrency-safe in-memory session store. Sessions not
// touched for ttl are evicted.
type MemoryStore struct {
	// mu makes get-or-create atomic; per-chat work happens under entry.mu.
	mu    sync.Mutex
	cache *cache.Cache
	now   func() time.Time
}

// NewMemoryStore creates a MemoryStore. ttl <= 0 keeps sessions forever.
func NewMemoryStore(ttl, cleanupInterval time.Duration) *MemoryStore {
	if ttl <= 0 {
		ttl = cache.NoExpiration
	}
	return &MemoryStore{
		cache: cache.New(ttl, cleanupInterval),
		now:   time.Now,
	}
}

func key(chatID int64) string {
	return strconv.FormatInt(chatID, 10)
}

// lookup returns the chat's entry, creating it if needed, and refreshes its TTL.
func (s *MemoryStore) lookup(chatID int64) *entry {
	k := key(chatID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if x, ok := s.cache.Get(k); ok {
		e := x.(*entry)
		s.cache.Set(k, e, cache.DefaultExpiration)
		return e
	}
	e := &entry{session: conversation.New(chatID)}
	e.session.UpdatedAt = s.now()
	s.cache.Set(k, e, cache.DefaultExpiration)
	return e
}

// GetOrCreate returns a copy of the chat's session.
func (s *MemoryStore) GetOrCreate(chatID int64) conversation.Session {
	e := s.lookup(chatID)

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// Update runs fn on a copy of the chat's session while holding the chat's
// lock. The copy is committed only when fn returns nil.
func (s *MemoryStore) Update(chatID int64, fn func(*conversation.Session) error) error {
	e := s.lookup(chatID)

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.session
	if err := fn(&next); err != nil {
		return err
	}
	next.UpdatedAt = s.now()
	e.session = next
	return nil
}

// Clear forgets the chat's session.
func (s *MemoryStore) Clear(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache.Delete(key(chatID))
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	return s.cache.ItemCount()
}
