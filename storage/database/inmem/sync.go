package inmemdb

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomofees/core/fee"
)

type sequencer struct {
	mu   sync.Mutex
	seqs map[string]int64
}

var _ fee.Sequencer = (*sequencer)(nil)

// NewSequencer returns a process-local Sequencer.
func NewSequencer() fee.Sequencer {
	return &sequencer{seqs: make(map[string]int64)}
}

func (s *sequencer) Next(_ context.Context, key string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seqs[key]++
	return s.seqs[key], nil
}

type locker struct {
	mu    sync.Mutex
	locks map[string]time.Time // {key: expiry}
}

var _ fee.Locker = (*locker)(nil)

// NewLocker returns a process-local Locker.
func NewLocker() fee.Locker {
	return &locker{locks: make(map[string]time.Time)}
}

func (l *locker) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if exp, ok := l.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	l.locks[key] = now.Add(ttl)
	return true, nil
}

func (l *locker) Unlock(_ context.Context, key string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, key)
	return nil
}
