package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/WhatsYourWhy/Hardstop/internal/incident"
	"github.com/WhatsYourWhy/Hardstop/internal/provenance"
)

var _ provenance.Sink = (*Store)(nil)

// AppendRunRecord appends one RunRecord.
// Uses ON CONFLICT(run_id) DO NOTHING for idempotency - duplicate run ids
// are silently ignored. The ledger never mutates a committed record.
func (s *Store) AppendRunRecord(ctx context.Context, rec provenance.RunRecord) error {
	inputs, err := json.Marshal(rec.InputRefs)
	if err != nil {
		return fmt.Errorf("append run record: marshal inputs: %w", err)
	}
	outputs, err := json.Marshal(rec.OutputRefs)
	if err != nil {
		return fmt.Errorf("append run record: marshal outputs: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO run_records
		(run_id, operator_id, mode, status, config_hash,
		 input_refs, output_refs, started_at, ended_at, note)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO NOTHING
	`,
		rec.RunID, rec.OperatorID, rec.Mode, rec.Status, rec.ConfigHash,
		string(inputs), string(outputs),
		formatTime(rec.StartedAt), formatTime(rec.EndedAt), rec.Note,
	)
	if err != nil {
		return fmt.Errorf("append run record: %w", err)
	}
	return nil
}

// ListRunRecords returns all records for an operator id, or all records
// when operatorID is empty, ordered by run id.
func (s *Store) ListRunRecords(ctx context.Context, operatorID string) ([]provenance.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, operator_id, mode, status, config_hash,
		       input_refs, output_refs, started_at, ended_at, note
		FROM run_records
		WHERE (? = '' OR operator_id = ?)
		ORDER BY run_id
	`, operatorID, operatorID)
	if err != nil {
		return nil, fmt.Errorf("list run records: %w", err)
	}
	defer rows.Close()

	var out []provenance.RunRecord
	for rows.Next() {
		var rec provenance.RunRecord
		var inputs, outputs, started, ended string
		if err := rows.Scan(
			&rec.RunID, &rec.OperatorID, &rec.Mode, &rec.Status, &rec.ConfigHash,
			&inputs, &outputs, &started, &ended, &rec.Note,
		); err != nil {
			return nil, fmt.Errorf("scan run record: %w", err)
		}
		if err := json.Unmarshal([]byte(inputs), &rec.InputRefs); err != nil {
			return nil, fmt.Errorf("unmarshal input refs: %w", err)
		}
		if err := json.Unmarshal([]byte(outputs), &rec.OutputRefs); err != nil {
			return nil, fmt.Errorf("unmarshal output refs: %w", err)
		}
		if rec.StartedAt, err = parseTime(started); err != nil {
			return nil, err
		}
		if rec.EndedAt, err = parseTime(ended); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRunRecord fetches one record by run id.
func (s *Store) GetRunRecord(ctx context.Context, runID string) (*provenance.RunRecord, error) {
	records, err := s.ListRunRecords(ctx, "")
	if err != nil {
		return nil, err
	}
	for i := range records {
		if records[i].RunID == runID {
			return &records[i], nil
		}
	}
	return nil, fmt.Errorf("run record %s not found", runID)
}

// AppendIncident appends one incident. Incident ids are content-addressed,
// so re-merging the same alert set is a no-op (ON CONFLICT DO NOTHING).
func (s *Store) AppendIncident(ctx context.Context, inc incident.Incident) error {
	alertIDs, err := json.Marshal(inc.AlertIDs)
	if err != nil {
		return fmt.Errorf("append incident: marshal alert ids: %w", err)
	}
	keys, err := json.Marshal(inc.CorrelationKeys)
	if err != nil {
		return fmt.Errorf("append incident: marshal keys: %w", err)
	}
	summary, err := json.Marshal(inc.MergeSummary)
	if err != nil {
		return fmt.Errorf("append incident: marshal summary: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO incidents
		(incident_id, alert_ids, correlation_keys, classification,
		 start_utc, end_utc, merge_summary)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(incident_id) DO NOTHING
	`,
		inc.IncidentID, string(alertIDs), string(keys), inc.Classification,
		formatTime(inc.StartUTC), formatTime(inc.EndUTC), string(summary),
	)
	if err != nil {
		return fmt.Errorf("append incident: %w", err)
	}
	return nil
}

// ListIncidents returns all incidents ordered by incident id.
func (s *Store) ListIncidents(ctx context.Context) ([]incident.Incident, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT incident_id, alert_ids, correlation_keys, classification,
		       start_utc, end_utc, merge_summary
		FROM incidents
		ORDER BY incident_id
	`)
	if err != nil {
		return nil, fmt.Errorf("list incidents: %w", err)
	}
	defer rows.Close()

	var out []incident.Incident
	for rows.Next() {
		var inc incident.Incident
		var alertIDs, keys, summary, start, end string
		if err := rows.Scan(
			&inc.IncidentID, &alertIDs, &keys, &inc.Classification,
			&start, &end, &summary,
		); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		if err := json.Unmarshal([]byte(alertIDs), &inc.AlertIDs); err != nil {
			return nil, fmt.Errorf("unmarshal alert ids: %w", err)
		}
		if err := json.Unmarshal([]byte(keys), &inc.CorrelationKeys); err != nil {
			return nil, fmt.Errorf("unmarshal keys: %w", err)
		}
		if err := json.Unmarshal([]byte(summary), &inc.MergeSummary); err != nil {
			return nil, fmt.Errorf("unmarshal merge summary: %w", err)
		}
		if inc.StartUTC, err = parseTime(start); err != nil {
			return nil, err
		}
		if inc.EndUTC, err = parseTime(end); err != nil {
			return nil, err
		}
		out = append(out, inc)
	}
	return out, rows.Err()
}
