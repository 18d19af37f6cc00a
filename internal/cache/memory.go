package cache

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
)

// MemoryStore keeps entries in process. It suits single instance deployments and tests.
type MemoryStore struct {
	mu    sync.Mutex
	items *ttlcache.Cache[string, []byte]
}

// NewMemoryStore constructs an in-process Store and starts its expiry loop.
func NewMemoryStore() *MemoryStore {
	items := ttlcache.New[string, []byte](
		ttlcache.WithDisableTouchOnHit[string, []byte](),
	)
	go items.Start()
	return &MemoryStore{items: items}
}

// Close stops the expiry loop.
func (s *MemoryStore) Close() error {
	s.items.Stop()
	return nil
}

func (s *MemoryStore) IncrementWithTTL(_ context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	if window <= 0 {
		window = time.Minute
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item := s.items.Get(key)
	if item == nil {
		s.items.Set(key, []byte("1"), window)
		return 1, window, nil
	}

	current, _ := strconv.ParseInt(string(item.Value()), 10, 64)
	current++
	remaining := time.Until(item.ExpiresAt())
	if remaining <= 0 {
		remaining = window
	}
	s.items.Set(key, []byte(strconv.FormatInt(current, 10)), remaining)
	return current, remaining, nil
}

func (s *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = ttlcache.NoTTL
	}
	buf := make([]byte, len(value))
	copy(buf, value)
	s.items.Set(key, buf, ttl)
	return nil
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	item := s.items.Get(key)
	if item == nil {
		return nil, false, nil
	}
	return item.Value(), true, nil
}

func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		s.items.Delete(key)
	}
	return nil
}

func (s *MemoryStore) DeletePattern(_ context.Context, pattern string) error {
	re, err := compilePattern(pattern)
	if err != nil {
		return err
	}
	for _, key := range s.items.Keys() {
		if re.MatchString(key) {
			s.items.Delete(key)
		}
	}
	return nil
}
