// Package incident groups related standing alerts into incidents.
//
// Merging is a pure read-side view over alerts: it never mutates the alerts
// it groups, and the same alert set in any order produces the same incidents.
package incident

import (
	"sort"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/alert"
	"github.com/WhatsYourWhy/Hardstop/internal/canonical"
)

// Merge heuristic names, in evaluation priority order. The first matching
// heuristic wins per alert pair.
const (
	HeuristicSameKey             = "same_correlation_key"
	HeuristicTimeAndEntityShared = "time_overlap_shared_entity"
	HeuristicLineageIntersection = "lineage_intersection"
)

// Incident is a group of two or more related alerts.
type Incident struct {
	IncidentID string `json:"incident_id"`

	// AlertIDs sorted ascending; CorrelationKeys sorted distinct.
	AlertIDs        []string `json:"alert_ids"`
	CorrelationKeys []string `json:"correlation_keys"`

	// StartUTC is the earliest first_seen, EndUTC the latest last_seen.
	StartUTC time.Time `json:"start_utc"`
	EndUTC   time.Time `json:"end_utc"`

	// Classification is the highest member classification.
	Classification int `json:"classification"`

	// MergeSummary lists the heuristics that linked members, in priority
	// order regardless of input order.
	MergeSummary []string `json:"merge_summary"`
}

// Merge groups alerts by the pairwise heuristics and returns incidents for
// every group of at least two, sorted by incident id. Permutation-invariant.
func Merge(alerts []alert.Alert) ([]Incident, error) {
	// Canonical processing order so group structure never depends on the
	// caller's slice order.
	sorted := make([]alert.Alert, len(alerts))
	copy(sorted, alerts)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].AlertID < sorted[j].AlertID })

	uf := newUnionFind(len(sorted))
	for i := 0; i < len(sorted); i++ {
		for j := i + 1; j < len(sorted); j++ {
			if related(sorted[i], sorted[j]) != "" {
				uf.union(i, j)
			}
		}
	}

	groups := make(map[int][]int)
	for i := range sorted {
		root := uf.find(i)
		groups[root] = append(groups[root], i)
	}

	var incidents []Incident
	for _, members := range groups {
		if len(members) < 2 {
			continue
		}
		inc, err := build(sorted, members, heuristicsForGroup(members, sorted))
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	sort.Slice(incidents, func(i, j int) bool { return incidents[i].IncidentID < incidents[j].IncidentID })
	return incidents, nil
}

// related returns the first heuristic, in priority order, linking two
// alerts, or "" when none applies.
func related(a, b alert.Alert) string {
	if a.CorrelationKey != "" && a.CorrelationKey == b.CorrelationKey {
		return HeuristicSameKey
	}
	if intervalsOverlap(a, b) && sharesEntity(a, b) {
		return HeuristicTimeAndEntityShared
	}
	if intersects(a.Lineage, b.Lineage) {
		return HeuristicLineageIntersection
	}
	return ""
}

func intervalsOverlap(a, b alert.Alert) bool {
	return !a.FirstSeenUTC.After(b.LastSeenUTC) && !b.FirstSeenUTC.After(a.LastSeenUTC)
}

func sharesEntity(a, b alert.Alert) bool {
	return intersects(a.Scope.Facilities, b.Scope.Facilities) ||
		intersects(a.Scope.Lanes, b.Scope.Lanes)
}

func intersects(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, s := range a {
		set[s] = true
	}
	for _, s := range b {
		if set[s] {
			return true
		}
	}
	return false
}

func build(alerts []alert.Alert, members []int, heuristics []string) (Incident, error) {
	inc := Incident{MergeSummary: heuristics}

	keys := make(map[string]bool)
	for _, idx := range members {
		a := alerts[idx]
		inc.AlertIDs = append(inc.AlertIDs, a.AlertID)
		if a.CorrelationKey != "" {
			keys[a.CorrelationKey] = true
		}
		if inc.StartUTC.IsZero() || a.FirstSeenUTC.Before(inc.StartUTC) {
			inc.StartUTC = a.FirstSeenUTC
		}
		if a.LastSeenUTC.After(inc.EndUTC) {
			inc.EndUTC = a.LastSeenUTC
		}
		if a.Classification > inc.Classification {
			inc.Classification = a.Classification
		}
	}
	sort.Strings(inc.AlertIDs)
	for k := range keys {
		inc.CorrelationKeys = append(inc.CorrelationKeys, k)
	}
	sort.Strings(inc.CorrelationKeys)

	// Content-addressed identity: any permutation of the same member set
	// hashes to the same id.
	primaryKey := ""
	if len(inc.CorrelationKeys) > 0 {
		primaryKey = inc.CorrelationKeys[0]
	}
	id, err := canonical.Hash(canonical.DomainIncident, map[string]any{
		"alert_ids":       toAny(inc.AlertIDs),
		"correlation_key": primaryKey,
	})
	if err != nil {
		return Incident{}, err
	}
	inc.IncidentID = "INC-" + id[:16]
	return inc, nil
}

// heuristicsForGroup derives the fired heuristics for a final group by
// checking all member pairs. Reported in fixed priority order, so the
// summary is stable under any input permutation.
func heuristicsForGroup(members []int, alerts []alert.Alert) []string {
	seen := make(map[string]bool)
	for i := 0; i < len(members); i++ {
		for j := i + 1; j < len(members); j++ {
			if h := related(alerts[members[i]], alerts[members[j]]); h != "" {
				seen[h] = true
			}
		}
	}
	var out []string
	for _, h := range []string{HeuristicSameKey, HeuristicTimeAndEntityShared, HeuristicLineageIntersection} {
		if seen[h] {
			out = append(out, h)
		}
	}
	return out
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

type unionFind struct {
	parent []int
}

func newUnionFind(n int) *unionFind {
	uf := &unionFind{parent: make([]int, n)}
	for i := range uf.parent {
		uf.parent[i] = i
	}
	return uf
}

func (uf *unionFind) find(i int) int {
	for uf.parent[i] != i {
		uf.parent[i] = uf.parent[uf.parent[i]]
		i = uf.parent[i]
	}
	return i
}

func (uf *unionFind) union(i, j int) {
	ri, rj := uf.find(i), uf.find(j)
	if ri != rj {
		uf.parent[rj] = ri
	}
}
