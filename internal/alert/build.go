package alert

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/linker"
	"github.com/WhatsYourWhy/Hardstop/internal/scoring"
)

// Classification thresholds on the 0-10 impact scale.
const (
	impactfulThreshold = 8.0
	relevantThreshold  = 4.0
)

const maxSummaryLen = 140

// Classify maps an impact score to a classification tier. Monotonic: a
// higher score never yields a lower tier.
func Classify(score float64) int {
	switch {
	case score >= impactfulThreshold:
		return ClassImpactful
	case score >= relevantThreshold:
		return ClassRelevant
	default:
		return ClassInteresting
	}
}

// ApplyFloor raises a classification to the source's configured floor.
// Floors only raise; a floor below the derived tier changes nothing.
func ApplyFloor(classification, floor int) int {
	if floor > classification {
		return floor
	}
	return classification
}

// Build assembles an alert candidate from a scored, enriched event. The
// candidate carries no alert id, correlation key, or timestamps; the
// correlation engine owns those.
func Build(enriched linker.EnrichedEvent, breakdown scoring.Breakdown) Alert {
	ev := enriched.Event
	classification := ApplyFloor(Classify(breakdown.Total), ev.ClassificationFloor)

	a := Alert{
		EventType:      ev.EventType,
		Classification: classification,
		Status:         StatusOpen,
		Summary:        summarize(ev),
		Scope: Scope{
			Facilities:           sortedCopy(enriched.FacilityIDs()),
			Lanes:                sortedCopy(enriched.LaneIDs()),
			Shipments:            sortedCopy(enriched.ShipmentIDs()),
			ShipmentsTotalLinked: enriched.ShipmentsTotalLinked,
		},
		ImpactScore: breakdown.Total,
		Evidence: Evidence{
			Breakdown:    breakdown,
			LinkingNotes: enriched.Diagnostics,
			Source: SourceRef{
				ID:        ev.SourceID,
				Tier:      ev.Tier,
				RawID:     ev.RawID,
				URL:       ev.URL,
				TrustTier: ev.TrustTier,
			},
		},
		Lineage: []string{ev.EventID},
	}
	a.Actions = RecommendedActions(classification, ev.EventType, len(a.Scope.Shipments) > 0)
	return a
}

// summarize produces the one-line human summary: bucket tag plus the best
// available text, clipped to a fixed length.
func summarize(ev event.CanonicalEvent) string {
	text := strings.TrimSpace(ev.Title)
	if text == "" {
		text = strings.TrimSpace(ev.RawText)
	}
	if text == "" {
		text = ev.LocationHint
	}
	if text == "" {
		text = "no event detail"
	}
	s := fmt.Sprintf("[%s] %s", ev.EventType, text)
	if len(s) > maxSummaryLen {
		s = s[:maxSummaryLen-3] + "..."
	}
	return s
}

// bucketActions are the type-specific responses, applied at tier 1 and up.
var bucketActions = map[event.Bucket]Action{
	event.BucketSpill:   {ID: "ACT-REROUTE", Description: "Evaluate alternate lanes around the affected site", OwnerRole: "network-ops", DueWithinHours: 12},
	event.BucketClosure: {ID: "ACT-REROUTE", Description: "Evaluate alternate lanes around the affected site", OwnerRole: "network-ops", DueWithinHours: 12},
	event.BucketStrike:  {ID: "ACT-CAPACITY", Description: "Line up backup carrier capacity", OwnerRole: "logistics", DueWithinHours: 24},
	event.BucketWeather: {ID: "ACT-WEATHER", Description: "Confirm facility weather readiness and staffing", OwnerRole: "site-ops", DueWithinHours: 24},
	event.BucketRecall:  {ID: "ACT-TRACE", Description: "Trace affected lots through linked shipments", OwnerRole: "quality", DueWithinHours: 24},
	event.BucketReg:     {ID: "ACT-COMPLIANCE", Description: "Review regulatory change against current routings", OwnerRole: "compliance", DueWithinHours: 72},
}

// RecommendedActions returns the fixed, ordered response list for a
// classification tier and event type. Same inputs, same list.
func RecommendedActions(classification int, bucket event.Bucket, hasShipments bool) []Action {
	actions := []Action{
		{ID: "ACT-REVIEW", Description: "Review event evidence and confirm classification", OwnerRole: "risk-analyst", DueWithinHours: 24},
	}
	if classification < ClassRelevant {
		return actions
	}
	actions = append(actions, Action{
		ID: "ACT-NOTIFY", Description: "Notify owners of affected facilities and lanes", OwnerRole: "network-ops", DueWithinHours: 12,
	})
	if hasShipments {
		actions = append(actions, Action{
			ID: "ACT-SHIPMENTS", Description: "Check upcoming shipments for delay exposure", OwnerRole: "logistics", DueWithinHours: 12,
		})
	}
	if ba, ok := bucketActions[bucket]; ok {
		actions = append(actions, ba)
	}
	if classification >= ClassImpactful {
		actions = append(actions, Action{
			ID: "ACT-ESCALATE", Description: "Escalate to supply continuity lead", OwnerRole: "continuity-lead", DueWithinHours: 4,
		})
	}
	return actions
}

// MergeScope unions two scopes with sorted, deduplicated lists. Counters
// take the larger value; truncation is sticky.
func MergeScope(a, b Scope) Scope {
	out := Scope{
		Facilities:         unionSorted(a.Facilities, b.Facilities),
		Lanes:              unionSorted(a.Lanes, b.Lanes),
		Shipments:          unionSorted(a.Shipments, b.Shipments),
		ShipmentsTruncated: a.ShipmentsTruncated || b.ShipmentsTruncated,
	}
	out.ShipmentsTotalLinked = a.ShipmentsTotalLinked
	if b.ShipmentsTotalLinked > out.ShipmentsTotalLinked {
		out.ShipmentsTotalLinked = b.ShipmentsTotalLinked
	}
	return out
}

// AppendLineage adds event ids in order, skipping ones already present.
func AppendLineage(lineage []string, eventIDs ...string) []string {
	seen := make(map[string]bool, len(lineage))
	for _, id := range lineage {
		seen[id] = true
	}
	for _, id := range eventIDs {
		if !seen[id] {
			seen[id] = true
			lineage = append(lineage, id)
		}
	}
	return lineage
}

func sortedCopy(ids []string) []string {
	out := make([]string, len(ids))
	copy(out, ids)
	sort.Strings(out)
	return out
}

func unionSorted(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, id := range a {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, id := range b {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

// touchTimes is shared by create/update paths so first/last seen handling
// stays in one place.
func touchTimes(a *Alert, now time.Time) {
	if a.FirstSeenUTC.IsZero() {
		a.FirstSeenUTC = now
	}
	a.LastSeenUTC = now
}

// Touch stamps observation times on an alert.
func Touch(a *Alert, now time.Time) { touchTimes(a, now.UTC()) }
