package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/datelock"
)

var _ datelock.Repository = (*Locks)(nil)

// Locks is an in-memory datelock.Repository.
type Locks struct {
	mu    sync.RWMutex
	locks map[calendar.Date]datelock.Lock
}

// NewLocks returns an empty lock set.
func NewLocks() *Locks {
	return &Locks{locks: make(map[calendar.Date]datelock.Lock)}
}

func (l *Locks) Insert(_ context.Context, lock datelock.Lock) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.locks[lock.Date]; ok {
		return datelock.ErrAlreadyLocked
	}
	l.locks[lock.Date] = lock
	return nil
}

func (l *Locks) Delete(_ context.Context, date calendar.Date) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.locks, date)
	return nil
}

func (l *Locks) Exists(_ context.Context, date calendar.Date) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.locks[date]
	return ok, nil
}

func (l *Locks) List(_ context.Context) ([]datelock.Lock, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]datelock.Lock, 0, len(l.locks))
	for _, lock := range l.locks {
		out = append(out, lock)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}
