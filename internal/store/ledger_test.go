package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhatsYourWhy/Hardstop/internal/incident"
	"github.com/WhatsYourWhy/Hardstop/internal/provenance"
)

func testRunRecord(runID string) provenance.RunRecord {
	return provenance.RunRecord{
		RunID:      runID,
		OperatorID: "score@1.0.0",
		Mode:       provenance.ModeBestEffort,
		Status:     provenance.StatusOK,
		ConfigHash: "abc123",
		InputRefs:  []provenance.ArtifactRef{{ID: "EVT-1", Hash: "h1", Kind: "event", Schema: "canonical_event@1", Bytes: 42}},
		OutputRefs: []provenance.ArtifactRef{{ID: "ALT-1", Hash: "h2", Kind: "alert", Schema: "alert@1", Bytes: 99}},
		StartedAt:  storeNow,
		EndedAt:    storeNow.Add(time.Second),
	}
}

func TestAppendRunRecordIdempotent(t *testing.T) {
	s := openTestStore(t)
	rec := testRunRecord("RUN-1")

	require.NoError(t, s.AppendRunRecord(context.Background(), rec))
	// Duplicate run id is silently ignored; the first write wins.
	dup := rec
	dup.Status = provenance.StatusFailed
	require.NoError(t, s.AppendRunRecord(context.Background(), dup))

	records, err := s.ListRunRecords(context.Background(), "score@1.0.0")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, provenance.StatusOK, records[0].Status)
	assert.Equal(t, rec.InputRefs, records[0].InputRefs)
	assert.Equal(t, rec.OutputRefs, records[0].OutputRefs)
	assert.True(t, rec.StartedAt.Equal(records[0].StartedAt))
}

func TestListRunRecordsFilterByOperator(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AppendRunRecord(context.Background(), testRunRecord("RUN-1")))
	other := testRunRecord("RUN-2")
	other.OperatorID = "correlate@1.0.0"
	require.NoError(t, s.AppendRunRecord(context.Background(), other))

	all, err := s.ListRunRecords(context.Background(), "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scored, err := s.ListRunRecords(context.Background(), "score@1.0.0")
	require.NoError(t, err)
	require.Len(t, scored, 1)
	assert.Equal(t, "RUN-1", scored[0].RunID)
}

func TestGetRunRecord(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.AppendRunRecord(context.Background(), testRunRecord("RUN-1")))

	rec, err := s.GetRunRecord(context.Background(), "RUN-1")
	require.NoError(t, err)
	assert.Equal(t, "score@1.0.0", rec.OperatorID)

	_, err = s.GetRunRecord(context.Background(), "RUN-404")
	assert.Error(t, err)
}

func TestAppendIncidentIdempotent(t *testing.T) {
	s := openTestStore(t)
	inc := incident.Incident{
		IncidentID:      "INC-abc",
		AlertIDs:        []string{"ALT-1", "ALT-2"},
		CorrelationKeys: []string{"SPILL|PLANT-01|NONE"},
		Classification:  2,
		StartUTC:        storeNow,
		EndUTC:          storeNow.Add(time.Hour),
		MergeSummary:    []string{incident.HeuristicSameKey},
	}
	require.NoError(t, s.AppendIncident(context.Background(), inc))
	require.NoError(t, s.AppendIncident(context.Background(), inc))

	incidents, err := s.ListIncidents(context.Background())
	require.NoError(t, err)
	require.Len(t, incidents, 1)
	assert.Equal(t, inc.AlertIDs, incidents[0].AlertIDs)
	assert.Equal(t, inc.MergeSummary, incidents[0].MergeSummary)
	assert.True(t, inc.EndUTC.Equal(incidents[0].EndUTC))
}
