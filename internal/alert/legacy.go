package alert

import (
	"fmt"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
)

// v1 alert records predate numeric classification: they carried a string
// priority field and had no correlation bookkeeping. MigrateV1 lifts a
// decoded v1 JSON record into the current model so old stores stay readable.

var priorityToClass = map[string]int{
	"HIGH":   ClassImpactful,
	"MEDIUM": ClassRelevant,
	"LOW":    ClassInteresting,
}

// MigrateV1 converts a decoded v1 record. Unknown priority values are a
// migration error; missing bookkeeping fields get current-model defaults
// (OPEN, CREATED, update_count 1).
func MigrateV1(raw map[string]any) (Alert, error) {
	a := Alert{
		AlertID:           str(raw["alert_id"]),
		EventType:         event.Bucket(str(raw["event_type"])),
		Status:            StatusOpen,
		Summary:           str(raw["summary"]),
		CorrelationKey:    str(raw["correlation_key"]),
		CorrelationAction: ActionCreated,
		UpdateCount:       1,
	}
	if a.AlertID == "" {
		return Alert{}, fmt.Errorf("migrate v1: record has no alert_id")
	}

	prio := str(raw["priority"])
	class, ok := priorityToClass[prio]
	if !ok {
		return Alert{}, fmt.Errorf("migrate v1: alert %s has unknown priority %q", a.AlertID, prio)
	}
	a.Classification = class

	if s := str(raw["status"]); s != "" {
		a.Status = s
	}
	if n, ok := raw["update_count"].(float64); ok && n >= 1 {
		a.UpdateCount = int(n)
	}
	if v, ok := raw["impact_score"].(float64); ok {
		a.ImpactScore = v
	}
	if ids, ok := raw["lineage"].([]any); ok {
		for _, id := range ids {
			a.Lineage = AppendLineage(a.Lineage, str(id))
		}
	}
	if scope, ok := raw["scope"].(map[string]any); ok {
		a.Scope.Facilities = strSlice(scope["facilities"])
		a.Scope.Lanes = strSlice(scope["lanes"])
		a.Scope.Shipments = strSlice(scope["shipments"])
	}

	first, err := parseTS(raw["first_seen_utc"], raw["created_at"])
	if err != nil {
		return Alert{}, fmt.Errorf("migrate v1: alert %s: %w", a.AlertID, err)
	}
	a.FirstSeenUTC = first
	last, err := parseTS(raw["last_seen_utc"], raw["created_at"])
	if err != nil {
		return Alert{}, fmt.Errorf("migrate v1: alert %s: %w", a.AlertID, err)
	}
	a.LastSeenUTC = last

	return a, nil
}

// parseTS takes the first non-empty candidate. v1 wrote RFC 3339 throughout.
func parseTS(candidates ...any) (time.Time, error) {
	for _, c := range candidates {
		s := str(c)
		if s == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad timestamp %q: %w", s, err)
		}
		return t.UTC(), nil
	}
	return time.Time{}, fmt.Errorf("no timestamp present")
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func strSlice(v any) []string {
	items, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s := str(it); s != "" {
			out = append(out, s)
		}
	}
	return sortedCopy(out)
}
