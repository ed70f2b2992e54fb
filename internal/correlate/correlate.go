// Package correlate folds scored alert candidates into standing alerts.
//
// Correlation guarantees at most one open alert per correlation key inside
// the trailing window: a repeat of a known situation updates the standing
// alert instead of creating a duplicate.
package correlate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/WhatsYourWhy/Hardstop/internal/alert"
	"github.com/WhatsYourWhy/Hardstop/internal/event"
)

// DefaultWindow is the trailing correlation window.
const DefaultWindow = 7 * 24 * time.Hour

const maxConflictRetries = 3

// nonePlaceholder stands in for a missing primary entity so keys always
// have three segments.
const nonePlaceholder = "NONE"

// Key derives the correlation key for an event type and its matched scope.
// Pure and permutation-invariant: the primary entity is the
// lexicographically smallest id, so input order never matters.
func Key(bucket event.Bucket, facilities, lanes []string) string {
	return fmt.Sprintf("%s|%s|%s", bucket, primary(facilities), primary(lanes))
}

func primary(ids []string) string {
	if len(ids) == 0 {
		return nonePlaceholder
	}
	min := ids[0]
	for _, id := range ids[1:] {
		if id < min {
			min = id
		}
	}
	return min
}

// AlertStore is the persistence surface the engine needs. FindRecentByKey
// returns nil with no error when no alert for the key is inside the window.
type AlertStore interface {
	FindRecentByKey(ctx context.Context, key string, now time.Time, window time.Duration) (*alert.Alert, error)
	CreateAlert(ctx context.Context, a *alert.Alert) error
	UpdateAlert(ctx context.Context, a *alert.Alert) error
}

// ConflictError reports a concurrent writer winning the create race for a
// key. The engine retries against fresh state; callers never see it.
type ConflictError struct {
	Key string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("correlation conflict on key %q", e.Key)
}

// Result is the outcome of applying one candidate.
type Result struct {
	Alert alert.Alert

	// Created is true for a CREATE, false for an UPDATE.
	Created bool

	// Degraded is true when no store was available and the alert was
	// built but not persisted.
	Degraded   bool
	Diagnostic string
}

// Engine applies candidates. Zero value is not usable; construct with New.
type Engine struct {
	store  AlertStore
	window time.Duration
	newID  func() string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures an Engine.
type Option func(*Engine)

// WithWindow overrides the trailing correlation window.
func WithWindow(w time.Duration) Option {
	return func(e *Engine) { e.window = w }
}

// WithIDGenerator overrides alert id generation, for deterministic tests.
func WithIDGenerator(gen func() string) Option {
	return func(e *Engine) { e.newID = gen }
}

// SetIDGenerator overrides alert id generation after construction, for
// deterministic runs.
func (e *Engine) SetIDGenerator(gen func() string) { e.newID = gen }

// New builds an engine over a store. A nil store is allowed and puts the
// engine in degraded mode: alerts are built but not persisted.
func New(store AlertStore, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		window: DefaultWindow,
		newID:  func() string { return "ALT-" + uuid.NewString() },
		locks:  make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply folds a candidate into the standing alert for its correlation key.
//
// A standing alert whose first_seen or last_seen falls inside the trailing
// window is updated: scope unioned, score and evidence replaced (latest
// wins), triggering event appended to lineage, update_count incremented.
// Otherwise a new alert is created. The check-then-write sequence is
// serialized per key.
func (e *Engine) Apply(ctx context.Context, candidate alert.Alert, now time.Time) (Result, error) {
	now = now.UTC()
	candidate.CorrelationKey = Key(candidate.EventType, candidate.Scope.Facilities, candidate.Scope.Lanes)

	if e.store == nil {
		candidate.AlertID = e.newID()
		candidate.CorrelationAction = ""
		alert.Touch(&candidate, now)
		candidate.UpdateCount = 1
		return Result{
			Alert:      candidate,
			Degraded:   true,
			Diagnostic: "no alert store available; alert not persisted",
		}, nil
	}

	lock := e.keyLock(candidate.CorrelationKey)
	lock.Lock()
	defer lock.Unlock()

	var lastErr error
	for attempt := 0; attempt <= maxConflictRetries; attempt++ {
		res, err := e.applyOnce(ctx, candidate, now)
		var conflict *ConflictError
		if errors.As(err, &conflict) {
			lastErr = err
			continue
		}
		return res, err
	}
	return Result{}, fmt.Errorf("correlate: retries exhausted for key %q: %w", candidate.CorrelationKey, lastErr)
}

func (e *Engine) applyOnce(ctx context.Context, candidate alert.Alert, now time.Time) (Result, error) {
	existing, err := e.store.FindRecentByKey(ctx, candidate.CorrelationKey, now, e.window)
	if err != nil {
		return Result{}, fmt.Errorf("correlate: find by key: %w", err)
	}

	if existing == nil {
		candidate.AlertID = e.newID()
		candidate.Status = alert.StatusOpen
		candidate.CorrelationAction = alert.ActionCreated
		candidate.UpdateCount = 1
		candidate.FirstSeenUTC = now
		candidate.LastSeenUTC = now
		if err := e.store.CreateAlert(ctx, &candidate); err != nil {
			return Result{}, err
		}
		return Result{Alert: candidate, Created: true}, nil
	}

	updated := merge(*existing, candidate, now)
	if err := e.store.UpdateAlert(ctx, &updated); err != nil {
		return Result{}, fmt.Errorf("correlate: update alert %s: %w", updated.AlertID, err)
	}
	return Result{Alert: updated}, nil
}

// merge folds a candidate into a standing alert. Identity and first_seen
// stay; scope unions; score, evidence, classification, summary, and actions
// take the latest values.
func merge(existing, candidate alert.Alert, now time.Time) alert.Alert {
	out := existing
	out.Scope = alert.MergeScope(existing.Scope, candidate.Scope)
	out.Classification = candidate.Classification
	out.ImpactScore = candidate.ImpactScore
	out.Evidence = candidate.Evidence
	out.Summary = candidate.Summary
	out.Actions = candidate.Actions
	out.Lineage = alert.AppendLineage(existing.Lineage, candidate.Lineage...)
	out.UpdateCount = existing.UpdateCount + 1
	out.LastSeenUTC = now
	out.CorrelationAction = alert.ActionUpdated
	return out
}

func (e *Engine) keyLock(key string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.locks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[key] = lock
	}
	return lock
}
