package correlate

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhatsYourWhy/Hardstop/internal/alert"
	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/testutil"
)

var corrNow = time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

// memStore is a minimal in-memory AlertStore for engine tests.
type memStore struct {
	mu     sync.Mutex
	alerts map[string]alert.Alert // by key
}

func newMemStore() *memStore {
	return &memStore{alerts: make(map[string]alert.Alert)}
}

func (s *memStore) FindRecentByKey(_ context.Context, key string, now time.Time, window time.Duration) (*alert.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.alerts[key]
	if !ok {
		return nil, nil
	}
	cutoff := now.Add(-window)
	if a.FirstSeenUTC.Before(cutoff) && a.LastSeenUTC.Before(cutoff) {
		return nil, nil
	}
	return &a, nil
}

func (s *memStore) CreateAlert(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.alerts[a.CorrelationKey]; ok && existing.Status == alert.StatusOpen {
		return &ConflictError{Key: a.CorrelationKey}
	}
	s.alerts[a.CorrelationKey] = *a
	return nil
}

func (s *memStore) UpdateAlert(_ context.Context, a *alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts[a.CorrelationKey] = *a
	return nil
}

// conflictOnceStore loses the create race exactly once.
type conflictOnceStore struct {
	*memStore
	conflicted bool
}

func (s *conflictOnceStore) CreateAlert(ctx context.Context, a *alert.Alert) error {
	if !s.conflicted {
		s.conflicted = true
		winner := *a
		winner.AlertID = "ALT-winner"
		if err := s.memStore.CreateAlert(ctx, &winner); err != nil {
			return err
		}
		return &ConflictError{Key: a.CorrelationKey}
	}
	return s.memStore.CreateAlert(ctx, a)
}

func seqIDs() func() string {
	return testutil.NewSequence("ALT").Next
}

func candidate(bucket event.Bucket, facilities, lanes []string, eventID string) alert.Alert {
	return alert.Alert{
		EventType:      bucket,
		Classification: alert.ClassImpactful,
		Status:         alert.StatusOpen,
		Summary:        "[" + string(bucket) + "] test",
		Scope:          alert.Scope{Facilities: facilities, Lanes: lanes},
		ImpactScore:    8.8,
		Lineage:        []string{eventID},
	}
}

func TestKeyPermutationInvariant(t *testing.T) {
	a := Key(event.BucketSpill, []string{"PLANT-01", "DC-02"}, []string{"LANE-002", "LANE-001"})
	b := Key(event.BucketSpill, []string{"DC-02", "PLANT-01"}, []string{"LANE-001", "LANE-002"})
	assert.Equal(t, a, b)
	assert.Equal(t, "SPILL|DC-02|LANE-001", a)
}

func TestKeyNonePlaceholders(t *testing.T) {
	assert.Equal(t, "WEATHER|NONE|NONE", Key(event.BucketWeather, nil, nil))
	assert.Equal(t, "WEATHER|PLANT-01|NONE", Key(event.BucketWeather, []string{"PLANT-01"}, nil))
}

func TestApplyCreatesThenUpdates(t *testing.T) {
	store := newMemStore()
	eng := New(store, WithIDGenerator(seqIDs()))

	first, err := eng.Apply(context.Background(), candidate(event.BucketSpill, []string{"PLANT-01"}, []string{"LANE-001"}, "EVT-1"), corrNow)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, "ALT-0001", first.Alert.AlertID)
	assert.Equal(t, alert.ActionCreated, first.Alert.CorrelationAction)
	assert.Equal(t, 1, first.Alert.UpdateCount)
	assert.Equal(t, corrNow, first.Alert.FirstSeenUTC)
	assert.Equal(t, corrNow, first.Alert.LastSeenUTC)

	later := corrNow.Add(2 * time.Hour)
	c2 := candidate(event.BucketSpill, []string{"PLANT-01", "DC-02"}, []string{"LANE-001"}, "EVT-2")
	c2.ImpactScore = 6.1
	second, err := eng.Apply(context.Background(), c2, later)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Equal(t, "ALT-0001", second.Alert.AlertID, "same standing alert")
	assert.Equal(t, alert.ActionUpdated, second.Alert.CorrelationAction)
	assert.Equal(t, 2, second.Alert.UpdateCount)
	assert.Equal(t, corrNow, second.Alert.FirstSeenUTC, "first_seen preserved")
	assert.Equal(t, later, second.Alert.LastSeenUTC)
	assert.Equal(t, []string{"EVT-1", "EVT-2"}, second.Alert.Lineage)
	assert.Equal(t, 6.1, second.Alert.ImpactScore, "latest score wins")
}

func TestApplyScopeUnionOnUpdate(t *testing.T) {
	// The key is derived from the primary (smallest) ids, so the second
	// candidate must keep the same primaries to correlate.
	store := newMemStore()
	eng := New(store, WithIDGenerator(seqIDs()))

	_, err := eng.Apply(context.Background(), candidate(event.BucketSpill, []string{"DC-02"}, nil, "EVT-1"), corrNow)
	require.NoError(t, err)

	res, err := eng.Apply(context.Background(), candidate(event.BucketSpill, []string{"DC-02", "DC-99"}, nil, "EVT-2"), corrNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"DC-02", "DC-99"}, res.Alert.Scope.Facilities)
}

func TestApplyOutsideWindowCreatesFresh(t *testing.T) {
	store := newMemStore()
	eng := New(store, WithIDGenerator(seqIDs()))

	_, err := eng.Apply(context.Background(), candidate(event.BucketStrike, []string{"PORT-09"}, nil, "EVT-1"), corrNow)
	require.NoError(t, err)

	// 8 days later the standing alert has aged out of the 7-day window.
	res, err := eng.Apply(context.Background(), candidate(event.BucketStrike, []string{"PORT-09"}, nil, "EVT-2"), corrNow.Add(8*24*time.Hour))
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, "ALT-0002", res.Alert.AlertID)
}

func TestApplyUpdateExtendsWindow(t *testing.T) {
	store := newMemStore()
	eng := New(store, WithIDGenerator(seqIDs()))

	_, err := eng.Apply(context.Background(), candidate(event.BucketStrike, []string{"PORT-09"}, nil, "EVT-1"), corrNow)
	require.NoError(t, err)

	// Day 6 update refreshes last_seen; day 12 is inside the window of the
	// refreshed alert even though first_seen has aged out.
	_, err = eng.Apply(context.Background(), candidate(event.BucketStrike, []string{"PORT-09"}, nil, "EVT-2"), corrNow.Add(6*24*time.Hour))
	require.NoError(t, err)

	res, err := eng.Apply(context.Background(), candidate(event.BucketStrike, []string{"PORT-09"}, nil, "EVT-3"), corrNow.Add(12*24*time.Hour))
	require.NoError(t, err)
	assert.False(t, res.Created)
	assert.Equal(t, 3, res.Alert.UpdateCount)
}

func TestApplyNilStoreDegrades(t *testing.T) {
	eng := New(nil, WithIDGenerator(seqIDs()))

	res, err := eng.Apply(context.Background(), candidate(event.BucketSpill, []string{"PLANT-01"}, nil, "EVT-1"), corrNow)
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Diagnostic)
	assert.Empty(t, res.Alert.CorrelationAction)
	assert.NotEmpty(t, res.Alert.AlertID)
}

func TestApplyRetriesOnConflict(t *testing.T) {
	store := &conflictOnceStore{memStore: newMemStore()}
	eng := New(store, WithIDGenerator(seqIDs()))

	res, err := eng.Apply(context.Background(), candidate(event.BucketSpill, []string{"PLANT-01"}, nil, "EVT-2"), corrNow)
	require.NoError(t, err)

	// The retry found the winner's alert and updated it.
	assert.False(t, res.Created)
	assert.Equal(t, "ALT-winner", res.Alert.AlertID)
	assert.Equal(t, 2, res.Alert.UpdateCount)
}

func TestApplyConcurrentSameKeyYieldsOneAlert(t *testing.T) {
	store := newMemStore()
	eng := New(store, WithIDGenerator(seqIDs()))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := candidate(event.BucketClosure, []string{"PLANT-01"}, nil, fmt.Sprintf("EVT-%d", i))
			_, err := eng.Apply(context.Background(), c, corrNow)
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	require.Len(t, store.alerts, 1)
	for _, a := range store.alerts {
		assert.Equal(t, 16, a.UpdateCount)
		assert.Len(t, a.Lineage, 16)
	}
}
