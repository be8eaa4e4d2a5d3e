package countstore

import (
	"context"
	"sync"
	"time"
)

// MemCountStore keeps counters in process memory, guarded by a single
// mutex. Counts reset when the process exits; nothing is ever persisted.
type MemCountStore struct {
	mu             sync.RWMutex
	counts         map[string]int
	distinctCounts map[string]map[string]struct{}

	now func() time.Time
}

func NewMemCountStore() *MemCountStore {
	return &MemCountStore{
		counts:         make(map[string]int),
		distinctCounts: make(map[string]map[string]struct{}),
		now:            time.Now,
	}
}

func (s *MemCountStore) GetCount(ctx context.Context, name, val, period string) (int, error) {
	k := periodBucket(name, val, period, s.now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[k], nil
}

func (s *MemCountStore) Increment(ctx context.Context, name, val string) error {
	t := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		s.counts[periodBucket(name, val, p, t)]++
	}
	return nil
}

func (s *MemCountStore) GetCountDistinct(ctx context.Context, name, bucket, period string) (int, error) {
	k := periodBucket(name, bucket, period, s.now())
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.distinctCounts[k]), nil
}

func (s *MemCountStore) IncrementDistinct(ctx context.Context, name, bucket, val string) error {
	t := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range []string{PeriodTotal, PeriodDay, PeriodHour} {
		k := periodBucket(name, bucket, p, t)
		m, ok := s.distinctCounts[k]
		if !ok {
			m = make(map[string]struct{})
			s.distinctCounts[k] = m
		}
		m[val] = struct{}{}
	}
	return nil
}
