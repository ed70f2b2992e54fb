// Package pipeline orchestrates the decision core: canonicalize, link,
// score, build, correlate, with one provenance RunRecord per stage.
//
// Stage failures degrade rather than abort wherever the data allows it.
// Only a validation failure (the raw item is unusable) or a strict-mode
// integrity failure stops an item; everything else is recorded and the
// item keeps moving.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/alert"
	"github.com/WhatsYourWhy/Hardstop/internal/config"
	"github.com/WhatsYourWhy/Hardstop/internal/correlate"
	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/incident"
	"github.com/WhatsYourWhy/Hardstop/internal/linker"
	"github.com/WhatsYourWhy/Hardstop/internal/network"
	"github.com/WhatsYourWhy/Hardstop/internal/provenance"
	"github.com/WhatsYourWhy/Hardstop/internal/scoring"
)

// Stage operator ids stamped on RunRecords.
const (
	OpCanonicalize  = "canonicalize@1.0.0"
	OpLink          = "link@1.0.0"
	OpScore         = "score@1.0.0"
	OpAlertBuild    = "alert_build@1.0.0"
	OpCorrelate     = "correlate@1.0.0"
	OpIncidentMerge = "incident_merge@1.0.0"
)

// IncidentStore is the persistence surface the merge pass needs.
type IncidentStore interface {
	ListAlerts(ctx context.Context, since time.Time, includeClass0 bool, limit int) ([]alert.Alert, error)
	AppendIncident(ctx context.Context, inc incident.Incident) error
}

// Deps wires the pipeline's collaborators. Directory, Alerts, Incidents,
// and Ledger may each be nil; the affected stages degrade explicitly.
type Deps struct {
	Directory network.Directory
	Alerts    correlate.AlertStore
	Incidents IncidentStore
	Ledger    *provenance.Ledger
	Logger    *slog.Logger
	Clock     func() time.Time
}

// ItemResult is the outcome of processing one raw item.
type ItemResult struct {
	RawID   string
	EventID string

	// Alert is set when the item produced or updated an alert.
	Alert *alert.Alert

	// Created mirrors the correlation outcome; Degraded is true when any
	// stage ran without its backing dependency.
	Created  bool
	Degraded bool

	Diagnostics []string

	// Err is fatal for this item only.
	Err error
}

// Pipeline runs raw items through the decision core.
type Pipeline struct {
	cfg    config.Snapshot
	dir    network.Directory
	engine *correlate.Engine
	inc    IncidentStore
	ledger *provenance.Ledger
	log    *slog.Logger
	now    func() time.Time
}

// New builds a pipeline. Worker count, look-ahead days, and the correlation
// window come from the config snapshot.
func New(cfg config.Snapshot, deps Deps) *Pipeline {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Clock == nil {
		deps.Clock = time.Now
	}
	window := time.Duration(cfg.WindowDays) * 24 * time.Hour
	return &Pipeline{
		cfg:    cfg,
		dir:    deps.Directory,
		engine: correlate.New(deps.Alerts, correlate.WithWindow(window)),
		inc:    deps.Incidents,
		ledger: deps.Ledger,
		log:    deps.Logger,
		now:    deps.Clock,
	}
}

// Engine exposes the correlation engine, for id-generator injection in
// deterministic runs.
func (p *Pipeline) Engine() *correlate.Engine { return p.engine }

// ProcessItem runs one raw item through every stage. The returned result
// carries the error instead of a second return so batch workers stay
// uniform.
func (p *Pipeline) ProcessItem(ctx context.Context, raw event.RawItemCandidate) ItemResult {
	res := ItemResult{RawID: raw.RawID}
	now := p.now().UTC()

	src, known := p.cfg.Source(raw.SourceID)
	if !known {
		res.Diagnostics = append(res.Diagnostics,
			fmt.Sprintf("source %q not configured; default trust applied", raw.SourceID))
	}

	// Canonicalize. The only stage whose failure is fatal to the item.
	started := now
	ev, err := event.Canonicalize(raw, src)
	rawRef, refErr := rawArtifact(raw)
	if refErr != nil {
		p.log.Warn("raw artifact hash failed", "raw_id", raw.RawID, "error", refErr)
	}
	if err != nil {
		p.recordStage(ctx, OpCanonicalize, provenance.StatusFailed, err.Error(), refs(rawRef), nil, started)
		var verr *event.ValidationError
		if errors.As(err, &verr) {
			res.Err = err
			return res
		}
		res.Err = fmt.Errorf("canonicalize %s: %w", raw.RawID, err)
		return res
	}
	res.EventID = ev.EventID
	if ev.IDFallback {
		res.Diagnostics = append(res.Diagnostics, "no event id on raw item; generated id "+ev.EventID)
	}
	evRef, refErr := eventArtifact(ev)
	if refErr != nil {
		p.log.Warn("event artifact hash failed", "event_id", ev.EventID, "error", refErr)
	}
	p.recordStage(ctx, OpCanonicalize, provenance.StatusOK, "", refs(rawRef), refs(evRef), started)

	// Link. No directory or a directory error degrades, never aborts.
	started = p.now().UTC()
	enriched, err := linker.Link(ctx, ev, p.dir, p.cfg.DaysAhead, now)
	if err != nil {
		enriched = linker.EnrichedEvent{
			Event:       ev,
			Degraded:    true,
			Diagnostics: []string{fmt.Sprintf("directory error: %v", err)},
		}
	}
	linkStatus := provenance.StatusOK
	if enriched.Degraded {
		linkStatus = provenance.StatusDegraded
		res.Degraded = true
	}
	res.Diagnostics = append(res.Diagnostics, enriched.Diagnostics...)
	p.recordStage(ctx, OpLink, linkStatus, strings.Join(enriched.Diagnostics, "; "), refs(evRef), nil, started)

	// Score. Never fails; defaulted subscores surface as diagnostics.
	started = p.now().UTC()
	breakdown := scoring.Score(enriched, now)
	res.Diagnostics = append(res.Diagnostics, breakdown.Diagnostics...)
	scoreRef, refErr := provenance.NewArtifactRef(ev.EventID, "breakdown", "score_breakdown@1", breakdown.ToMap())
	if refErr != nil {
		p.log.Warn("breakdown artifact hash failed", "event_id", ev.EventID, "error", refErr)
	}
	p.recordStage(ctx, OpScore, provenance.StatusOK, strings.Join(breakdown.Diagnostics, "; "), refs(evRef), refs(scoreRef), started)

	// Build the alert candidate.
	started = p.now().UTC()
	candidate := alert.Build(enriched, breakdown)
	p.recordStage(ctx, OpAlertBuild, provenance.StatusOK, "", refs(evRef, scoreRef), nil, started)

	// Correlate into the standing alert set.
	started = p.now().UTC()
	outcome, err := p.engine.Apply(ctx, candidate, now)
	if err != nil {
		p.recordStage(ctx, OpCorrelate, provenance.StatusFailed, err.Error(), refs(evRef), nil, started)
		res.Err = err
		return res
	}
	corrStatus := provenance.StatusOK
	if outcome.Degraded {
		corrStatus = provenance.StatusDegraded
		res.Degraded = true
		res.Diagnostics = append(res.Diagnostics, outcome.Diagnostic)
	}
	alertRef, refErr := AlertArtifact(outcome.Alert)
	if refErr != nil {
		p.log.Warn("alert artifact hash failed", "alert_id", outcome.Alert.AlertID, "error", refErr)
	}
	p.recordStage(ctx, OpCorrelate, corrStatus, outcome.Diagnostic, refs(evRef), refs(alertRef), started)

	p.log.Info("item processed",
		"raw_id", raw.RawID,
		"event_id", ev.EventID,
		"alert_id", outcome.Alert.AlertID,
		"action", outcome.Alert.CorrelationAction,
		"classification", outcome.Alert.Classification,
		"score", outcome.Alert.ImpactScore,
	)

	res.Alert = &outcome.Alert
	res.Created = outcome.Created
	return res
}

// ProcessBatch runs items through a bounded worker pool. Items are
// independent; the correlation engine serializes per key internally.
// Cancellation marks unstarted items with ctx.Err() and leaves committed
// alerts and RunRecords valid.
func (p *Pipeline) ProcessBatch(ctx context.Context, items []event.RawItemCandidate) []ItemResult {
	results := make([]ItemResult, len(items))

	sem := make(chan struct{}, p.cfg.Workers)
	var wg sync.WaitGroup
	for i := range items {
		if ctx.Err() != nil {
			results[i] = ItemResult{RawID: items[i].RawID, Err: ctx.Err()}
			continue
		}
		wg.Add(1)
		sem <- struct{}{}
		go func(i int) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = p.ProcessItem(ctx, items[i])
		}(i)
	}
	wg.Wait()
	return results
}

// MergeIncidents groups the window's alerts into incidents and appends any
// new ones. Safe to re-run: incident ids are content-addressed.
func (p *Pipeline) MergeIncidents(ctx context.Context) ([]incident.Incident, error) {
	if p.inc == nil {
		return nil, fmt.Errorf("merge incidents: no incident store available")
	}
	now := p.now().UTC()
	started := now
	since := now.Add(-time.Duration(p.cfg.WindowDays) * 24 * time.Hour)

	alerts, err := p.inc.ListAlerts(ctx, since, true, 0)
	if err != nil {
		return nil, fmt.Errorf("merge incidents: list alerts: %w", err)
	}
	incidents, err := incident.Merge(alerts)
	if err != nil {
		return nil, fmt.Errorf("merge incidents: %w", err)
	}

	var outputs []provenance.ArtifactRef
	for _, inc := range incidents {
		if err := p.inc.AppendIncident(ctx, inc); err != nil {
			return nil, fmt.Errorf("merge incidents: append %s: %w", inc.IncidentID, err)
		}
		ref, refErr := incidentArtifact(inc)
		if refErr != nil {
			p.log.Warn("incident artifact hash failed", "incident_id", inc.IncidentID, "error", refErr)
			continue
		}
		outputs = append(outputs, ref)
	}
	p.recordStage(ctx, OpIncidentMerge, provenance.StatusOK, "", nil, outputs, started)

	p.log.Info("incident merge complete", "alerts", len(alerts), "incidents", len(incidents))
	return incidents, nil
}

// recordStage appends one RunRecord. Ledger failures are logged, not
// propagated: losing a provenance row must not lose the item.
func (p *Pipeline) recordStage(ctx context.Context, operator, status, note string, inputs, outputs []provenance.ArtifactRef, started time.Time) {
	if p.ledger == nil {
		return
	}
	if _, err := p.ledger.Record(ctx, operator, status, note, inputs, outputs, started, p.now().UTC()); err != nil {
		p.log.Warn("run record append failed", "operator", operator, "error", err)
	}
}

func refs(rs ...provenance.ArtifactRef) []provenance.ArtifactRef {
	out := rs[:0:0]
	for _, r := range rs {
		if r.Hash != "" {
			out = append(out, r)
		}
	}
	return out
}

func rawArtifact(raw event.RawItemCandidate) (provenance.ArtifactRef, error) {
	id := raw.RawID
	if id == "" {
		id = raw.EventID
	}
	return provenance.NewArtifactRef(id, "raw_item", "raw_item@1", map[string]any{
		"source_id": raw.SourceID,
		"raw_id":    raw.RawID,
		"title":     raw.Title,
		"payload":   raw.Payload,
	})
}

func eventArtifact(ev event.CanonicalEvent) (provenance.ArtifactRef, error) {
	return provenance.NewArtifactRef(ev.EventID, "event", "canonical_event@1", map[string]any{
		"event_id":       ev.EventID,
		"event_type":     string(ev.EventType),
		"title":          ev.Title,
		"location_hint":  ev.LocationHint,
		"source_id":      ev.SourceID,
		"event_time_utc": ev.EventTimeUTC,
	})
}

// AlertArtifact is the content-addressed form of an alert as stamped on
// correlate RunRecords. Replay recomputes it from current store state.
func AlertArtifact(a alert.Alert) (provenance.ArtifactRef, error) {
	return provenance.NewArtifactRef(a.AlertID, "alert", "alert@1", map[string]any{
		"alert_id":           a.AlertID,
		"correlation_key":    a.CorrelationKey,
		"correlation_action": a.CorrelationAction,
		"classification":     int64(a.Classification),
		"impact_score":       a.ImpactScore,
		"update_count":       int64(a.UpdateCount),
		"lineage":            a.Lineage,
	})
}

func incidentArtifact(inc incident.Incident) (provenance.ArtifactRef, error) {
	return provenance.NewArtifactRef(inc.IncidentID, "incident", "incident@1", map[string]any{
		"incident_id":      inc.IncidentID,
		"alert_ids":        inc.AlertIDs,
		"correlation_keys": inc.CorrelationKeys,
		"merge_summary":    inc.MergeSummary,
	})
}
