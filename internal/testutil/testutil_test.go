package testutil

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClockFrozenUntilAdvanced(t *testing.T) {
	start := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	clock := NewClock(start)

	assert.Equal(t, start, clock.Now())
	assert.Equal(t, start, clock.Now())

	clock.Advance(2 * time.Hour)
	assert.Equal(t, start.Add(2*time.Hour), clock.Now())

	clock.Set(start.Add(10 * 24 * time.Hour))
	assert.Equal(t, start.Add(10*24*time.Hour), clock.Now())
}

func TestClockNormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("EST", -5*60*60)
	clock := NewClock(time.Date(2026, 8, 1, 7, 0, 0, 0, loc))
	assert.Equal(t, time.UTC, clock.Now().Location())
}

func TestSequenceOrderAndReset(t *testing.T) {
	seq := NewSequence("ALT")
	assert.Equal(t, "ALT-0001", seq.Next())
	assert.Equal(t, "ALT-0002", seq.Next())

	seq.Reset()
	assert.Equal(t, "ALT-0001", seq.Next())
}

func TestSequenceConcurrentNextIsUnique(t *testing.T) {
	seq := NewSequence("RUN")

	const workers, perWorker = 8, 50
	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				ids <- seq.Next()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], id)
		seen[id] = true
	}
	assert.Len(t, seen, workers*perWorker)
}
