package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/alert"
	"github.com/WhatsYourWhy/Hardstop/internal/correlate"
	"github.com/WhatsYourWhy/Hardstop/internal/event"
)

var _ correlate.AlertStore = (*Store)(nil)

// FindRecentByKey returns the newest alert for a correlation key whose
// first_seen or last_seen falls inside the trailing window, or nil.
func (s *Store) FindRecentByKey(ctx context.Context, key string, now time.Time, window time.Duration) (*alert.Alert, error) {
	cutoff := formatTime(now.Add(-window))
	row := s.db.QueryRowContext(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE correlation_key = ?
		  AND status = ?
		  AND (first_seen_utc >= ? OR last_seen_utc >= ?)
		ORDER BY last_seen_utc DESC
		LIMIT 1
	`, key, alert.StatusOpen, cutoff, cutoff)

	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find recent by key: %w", err)
	}
	return a, nil
}

// CreateAlert inserts a new alert. The in-window existence check and the
// insert run in one transaction on the single writer connection; losing the
// race returns *correlate.ConflictError so the engine retries as an update.
func (s *Store) CreateAlert(ctx context.Context, a *alert.Alert) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("create alert: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	cutoff := formatTime(a.LastSeenUTC.Add(-s.window))
	var existing string
	err = tx.QueryRowContext(ctx, `
		SELECT alert_id FROM alerts
		WHERE correlation_key = ? AND status = ?
		  AND (first_seen_utc >= ? OR last_seen_utc >= ?)
		LIMIT 1
	`, a.CorrelationKey, alert.StatusOpen, cutoff, cutoff).Scan(&existing)
	if err == nil {
		return &correlate.ConflictError{Key: a.CorrelationKey}
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("create alert: conflict check: %w", err)
	}

	if err := insertAlert(ctx, tx, a); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("create alert: commit: %w", err)
	}
	return nil
}

// UpdateAlert replaces an alert row wholesale. The engine already holds the
// per-key lock and has merged the new state.
func (s *Store) UpdateAlert(ctx context.Context, a *alert.Alert) error {
	cols, err := marshalAlertColumns(a)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts SET
			correlation_key = ?, event_type = ?, classification = ?,
			status = ?, summary = ?, impact_score = ?, correlation_action = ?,
			scope = ?, actions = ?, evidence = ?, lineage = ?,
			first_seen_utc = ?, last_seen_utc = ?, update_count = ?
		WHERE alert_id = ?
	`,
		a.CorrelationKey, string(a.EventType), a.Classification,
		a.Status, a.Summary, a.ImpactScore, a.CorrelationAction,
		cols.scope, cols.actions, cols.evidence, cols.lineage,
		formatTime(a.FirstSeenUTC), formatTime(a.LastSeenUTC), a.UpdateCount,
		a.AlertID,
	)
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update alert: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("update alert: %s not found", a.AlertID)
	}
	return nil
}

// GetAlert fetches one alert by id.
func (s *Store) GetAlert(ctx context.Context, alertID string) (*alert.Alert, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+alertColumns+` FROM alerts WHERE alert_id = ?`, alertID)
	a, err := scanAlert(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("alert %s not found", alertID)
	}
	if err != nil {
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return a, nil
}

// ListAlerts returns alerts seen since the cutoff, ordered by
// classification desc, impact desc, update_count desc, last_seen desc,
// with alert_id as the final tiebreak so output order is total.
func (s *Store) ListAlerts(ctx context.Context, since time.Time, includeClass0 bool, limit int) ([]alert.Alert, error) {
	minClass := 1
	if includeClass0 {
		minClass = 0
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+alertColumns+`
		FROM alerts
		WHERE last_seen_utc >= ? AND classification >= ?
		ORDER BY classification DESC, impact_score DESC, update_count DESC,
		         last_seen_utc DESC, alert_id ASC
		LIMIT ?
	`, formatTime(since), minClass, limit)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var out []alert.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("list alerts: %w", err)
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

// ImportLegacyAlert migrates and inserts one v1 record. Idempotent on
// alert_id: re-importing the same record is a no-op.
func (s *Store) ImportLegacyAlert(ctx context.Context, raw map[string]any) error {
	a, err := alert.MigrateV1(raw)
	if err != nil {
		return fmt.Errorf("import legacy alert: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("import legacy alert: begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertAlert(ctx, tx, &a); err != nil {
		return fmt.Errorf("import legacy alert: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("import legacy alert: commit: %w", err)
	}
	return nil
}

const alertColumns = `alert_id, correlation_key, event_type, classification,
	status, summary, impact_score, correlation_action,
	scope, actions, evidence, lineage,
	first_seen_utc, last_seen_utc, update_count`

type alertJSONColumns struct {
	scope, actions, evidence, lineage string
}

func marshalAlertColumns(a *alert.Alert) (alertJSONColumns, error) {
	scope, err := json.Marshal(a.Scope)
	if err != nil {
		return alertJSONColumns{}, fmt.Errorf("marshal scope: %w", err)
	}
	actions, err := json.Marshal(a.Actions)
	if err != nil {
		return alertJSONColumns{}, fmt.Errorf("marshal actions: %w", err)
	}
	evidence, err := json.Marshal(a.Evidence)
	if err != nil {
		return alertJSONColumns{}, fmt.Errorf("marshal evidence: %w", err)
	}
	lineage, err := json.Marshal(a.Lineage)
	if err != nil {
		return alertJSONColumns{}, fmt.Errorf("marshal lineage: %w", err)
	}
	return alertJSONColumns{
		scope:    string(scope),
		actions:  string(actions),
		evidence: string(evidence),
		lineage:  string(lineage),
	}, nil
}

func insertAlert(ctx context.Context, tx *sql.Tx, a *alert.Alert) error {
	cols, err := marshalAlertColumns(a)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO alerts
		(alert_id, correlation_key, event_type, classification,
		 status, summary, impact_score, correlation_action,
		 scope, actions, evidence, lineage,
		 first_seen_utc, last_seen_utc, update_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(alert_id) DO NOTHING
	`,
		a.AlertID, a.CorrelationKey, string(a.EventType), a.Classification,
		a.Status, a.Summary, a.ImpactScore, a.CorrelationAction,
		cols.scope, cols.actions, cols.evidence, cols.lineage,
		formatTime(a.FirstSeenUTC), formatTime(a.LastSeenUTC), a.UpdateCount,
	)
	if err != nil {
		return fmt.Errorf("insert alert: %w", err)
	}
	return nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*alert.Alert, error) {
	var a alert.Alert
	var eventType, scope, actions, evidence, lineage, firstSeen, lastSeen string
	err := row.Scan(
		&a.AlertID, &a.CorrelationKey, &eventType, &a.Classification,
		&a.Status, &a.Summary, &a.ImpactScore, &a.CorrelationAction,
		&scope, &actions, &evidence, &lineage,
		&firstSeen, &lastSeen, &a.UpdateCount,
	)
	if err != nil {
		return nil, err
	}

	a.EventType = event.Bucket(eventType)
	if err := json.Unmarshal([]byte(scope), &a.Scope); err != nil {
		return nil, fmt.Errorf("unmarshal scope: %w", err)
	}
	if err := json.Unmarshal([]byte(actions), &a.Actions); err != nil {
		return nil, fmt.Errorf("unmarshal actions: %w", err)
	}
	if err := json.Unmarshal([]byte(evidence), &a.Evidence); err != nil {
		return nil, fmt.Errorf("unmarshal evidence: %w", err)
	}
	if err := json.Unmarshal([]byte(lineage), &a.Lineage); err != nil {
		return nil, fmt.Errorf("unmarshal lineage: %w", err)
	}
	if a.FirstSeenUTC, err = parseTime(firstSeen); err != nil {
		return nil, err
	}
	if a.LastSeenUTC, err = parseTime(lastSeen); err != nil {
		return nil, err
	}
	return &a, nil
}
