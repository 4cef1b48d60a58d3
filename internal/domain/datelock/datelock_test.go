package datelock

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/canteen-orders/internal/domain/calendar"
	"github.com/xenking/canteen-orders/internal/domain/fault"
)

// --- Mock implementations ---

type mockRepo struct {
	mu    sync.Mutex
	locks map[calendar.Date]Lock
	err   error
}

func newMockRepo() *mockRepo {
	return &mockRepo{locks: make(map[calendar.Date]Lock)}
}

func (m *mockRepo) Insert(_ context.Context, l Lock) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.locks[l.Date]; ok {
		return ErrAlreadyLocked
	}
	m.locks[l.Date] = l
	return nil
}

func (m *mockRepo) Delete(_ context.Context, date calendar.Date) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	delete(m.locks, date)
	return nil
}

func (m *mockRepo) Exists(_ context.Context, date calendar.Date) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.locks[date]
	return ok, m.err
}

func (m *mockRepo) List(_ context.Context) ([]Lock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Lock, 0, len(m.locks))
	for _, l := range m.locks {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, m.err
}

// --- Tests ---

func TestRegistry_LockUnlock(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepo())
	fixed := time.Date(2024, time.June, 9, 18, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return fixed }

	day := calendar.MustParse("2024-06-10")
	admin := int64(1)

	locked, err := reg.IsLocked(ctx, day)
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, reg.LockDate(ctx, day, &admin))

	locked, err = reg.IsLocked(ctx, day)
	require.NoError(t, err)
	assert.True(t, locked)

	locks, err := reg.ListLocked(ctx)
	require.NoError(t, err)
	require.Len(t, locks, 1)
	assert.Equal(t, day, locks[0].Date)
	assert.Equal(t, fixed, locks[0].LockedAt)
	require.NotNil(t, locks[0].LockedBy)
	assert.Equal(t, admin, *locks[0].LockedBy)

	require.NoError(t, reg.UnlockDate(ctx, day))
	locked, err = reg.IsLocked(ctx, day)
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestRegistry_LockTwice(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepo())
	day := calendar.MustParse("2024-06-10")

	require.NoError(t, reg.LockDate(ctx, day, nil))
	err := reg.LockDate(ctx, day, nil)
	require.ErrorIs(t, err, ErrAlreadyLocked)
	assert.ErrorIs(t, err, fault.Conflict)
}

func TestRegistry_UnlockMissing(t *testing.T) {
	reg := NewRegistry(newMockRepo())
	require.NoError(t, reg.UnlockDate(context.Background(), calendar.MustParse("2024-06-10")))
}

func TestRegistry_ZeroDate(t *testing.T) {
	reg := NewRegistry(newMockRepo())
	err := reg.LockDate(context.Background(), calendar.Date{}, nil)
	require.ErrorIs(t, err, fault.Validation)
	err = reg.UnlockDate(context.Background(), calendar.Date{})
	require.ErrorIs(t, err, fault.Validation)
}

func TestRegistry_ListSorted(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMockRepo())
	for _, s := range []string{"2024-06-12", "2024-06-10", "2024-06-11"} {
		require.NoError(t, reg.LockDate(ctx, calendar.MustParse(s), nil))
	}
	locks, err := reg.ListLocked(ctx)
	require.NoError(t, err)
	got := make([]string, len(locks))
	for i, l := range locks {
		got[i] = l.Date.String()
	}
	assert.Equal(t, []string{"2024-06-10", "2024-06-11", "2024-06-12"}, got)
}

func TestRegistry_StorageError(t *testing.T) {
	repo := newMockRepo()
	repo.err = errors.New("connection refused")
	reg := NewRegistry(repo)

	err := reg.LockDate(context.Background(), calendar.MustParse("2024-06-10"), nil)
	require.Error(t, err)
	assert.Nil(t, fault.KindOf(err))
}
