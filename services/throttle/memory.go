package throttle

import (
	"context"
	"sync"
	"time"
)

type MemoryStore struct {
	mu   sync.Mutex
	data map[string]time.Time
	now  func() time.Time
	done chan struct{}
	once sync.Once
}

func NewMemoryStore() *MemoryStore {
	store := &MemoryStore{
		data: make(map[string]time.Time),
		now:  time.Now,
		done: make(chan struct{}),
	}

	go store.cleanup()

	return store
}

// SetClock replaces the time source, for tests.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if expires, ok := s.data[key]; ok && now.Before(expires) {
		return false, nil
	}

	s.data[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) Mark(_ context.Context, key string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[key] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.data, key)
	return nil
}

func (s *MemoryStore) TTL(_ context.Context, key string) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	expires, ok := s.data[key]
	if !ok {
		return 0, nil
	}
	remaining := expires.Sub(s.now())
	if remaining <= 0 {
		return 0, nil
	}
	return remaining, nil
}

// Close stops the janitor.
func (s *MemoryStore) Close() error {
	s.once.Do(func() { close(s.done) })
	return nil
}

func (s *MemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.purge()
		}
	}
}

func (s *MemoryStore) purge() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, expires := range s.data {
		if !now.Before(expires) {
			delete(s.data, key)
		}
	}
}
