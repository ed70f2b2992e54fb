package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/linker"
	"github.com/WhatsYourWhy/Hardstop/internal/network"
	"github.com/WhatsYourWhy/Hardstop/internal/scoring"
)

func TestClassifyThresholds(t *testing.T) {
	tests := []struct {
		score float64
		want  int
	}{
		{0, ClassInteresting},
		{3.9, ClassInteresting},
		{4.0, ClassRelevant},
		{7.9, ClassRelevant},
		{8.0, ClassImpactful},
		{10, ClassImpactful},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Classify(tt.score), "score %v", tt.score)
	}
}

func TestClassifyIsMonotonic(t *testing.T) {
	prev := Classify(0)
	for s := 0.0; s <= 10.0; s += 0.1 {
		c := Classify(s)
		assert.GreaterOrEqual(t, c, prev)
		prev = c
	}
}

func TestApplyFloorOnlyRaises(t *testing.T) {
	assert.Equal(t, ClassRelevant, ApplyFloor(ClassInteresting, ClassRelevant))
	assert.Equal(t, ClassImpactful, ApplyFloor(ClassImpactful, ClassRelevant))
	assert.Equal(t, ClassInteresting, ApplyFloor(ClassInteresting, 0))
}

func TestBuildCandidate(t *testing.T) {
	enriched := linker.EnrichedEvent{
		Event: event.CanonicalEvent{
			EventID:   "EVT-A",
			EventType: event.BucketSpill,
			Title:     "Chemical spill at PLANT-01",
			SourceID:  "county-alerts",
			TrustTier: 2,
		},
		Facilities:           []network.Facility{{ID: "PLANT-01", Criticality: 8}},
		Lanes:                []network.Lane{{ID: "LANE-001", Volume: 8}},
		Shipments:            []network.Shipment{{ID: "SHP-1001", Priority: true}},
		ShipmentsTotalLinked: 3,
	}
	breakdown := scoring.Breakdown{Total: 8.8, TrustTier: 2, TrustFactor: 1.0}

	a := Build(enriched, breakdown)

	assert.Empty(t, a.AlertID, "builder must not assign ids")
	assert.Equal(t, ClassImpactful, a.Classification)
	assert.Equal(t, StatusOpen, a.Status)
	assert.Equal(t, []string{"PLANT-01"}, a.Scope.Facilities)
	assert.Equal(t, []string{"LANE-001"}, a.Scope.Lanes)
	assert.Equal(t, []string{"SHP-1001"}, a.Scope.Shipments)
	assert.Equal(t, 3, a.Scope.ShipmentsTotalLinked)
	assert.Equal(t, 8.8, a.ImpactScore)
	assert.Equal(t, []string{"EVT-A"}, a.Lineage)
	assert.Equal(t, "[SPILL] Chemical spill at PLANT-01", a.Summary)
	assert.Equal(t, "county-alerts", a.Evidence.Source.ID)
	assert.Equal(t, 8.8, a.Evidence.Breakdown.Total)
}

func TestBuildAppliesClassificationFloor(t *testing.T) {
	enriched := linker.EnrichedEvent{
		Event: event.CanonicalEvent{
			EventID:             "EVT-B",
			EventType:           event.BucketOther,
			ClassificationFloor: 1,
		},
	}
	a := Build(enriched, scoring.Breakdown{Total: 0.5})
	assert.Equal(t, ClassRelevant, a.Classification)
}

func TestRecommendedActionsByTier(t *testing.T) {
	t0 := RecommendedActions(ClassInteresting, event.BucketSpill, true)
	require.Len(t, t0, 1)
	assert.Equal(t, "ACT-REVIEW", t0[0].ID)

	t1 := RecommendedActions(ClassRelevant, event.BucketSpill, true)
	ids := actionIDs(t1)
	assert.Equal(t, []string{"ACT-REVIEW", "ACT-NOTIFY", "ACT-SHIPMENTS", "ACT-REROUTE"}, ids)

	t2 := RecommendedActions(ClassImpactful, event.BucketStrike, false)
	ids = actionIDs(t2)
	assert.Equal(t, []string{"ACT-REVIEW", "ACT-NOTIFY", "ACT-CAPACITY", "ACT-ESCALATE"}, ids)
}

func TestRecommendedActionsDeterministic(t *testing.T) {
	a := RecommendedActions(ClassImpactful, event.BucketSpill, true)
	b := RecommendedActions(ClassImpactful, event.BucketSpill, true)
	assert.Equal(t, a, b)
}

func TestMergeScope(t *testing.T) {
	a := Scope{Facilities: []string{"PLANT-01"}, Lanes: []string{"LANE-002"}, ShipmentsTotalLinked: 2}
	b := Scope{Facilities: []string{"DC-02", "PLANT-01"}, Lanes: []string{"LANE-001"}, ShipmentsTotalLinked: 5, ShipmentsTruncated: true}

	m := MergeScope(a, b)
	assert.Equal(t, []string{"DC-02", "PLANT-01"}, m.Facilities)
	assert.Equal(t, []string{"LANE-001", "LANE-002"}, m.Lanes)
	assert.Equal(t, 5, m.ShipmentsTotalLinked)
	assert.True(t, m.ShipmentsTruncated)
}

func TestAppendLineageDedupes(t *testing.T) {
	l := AppendLineage(nil, "E1")
	l = AppendLineage(l, "E2", "E1")
	assert.Equal(t, []string{"E1", "E2"}, l)
}

func TestSummaryClipped(t *testing.T) {
	ev := event.CanonicalEvent{EventType: event.BucketOther}
	for i := 0; i < 40; i++ {
		ev.Title += "very long "
	}
	s := summarize(ev)
	assert.LessOrEqual(t, len(s), 140)
	assert.Contains(t, s, "...")
}

func actionIDs(as []Action) []string {
	ids := make([]string, len(as))
	for i, a := range as {
		ids[i] = a.ID
	}
	return ids
}
