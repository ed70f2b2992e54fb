// Package linker enriches canonical events with matched network entities.
//
// Linking degrades, never fails: with no directory or no matches the
// enriched event carries empty entity lists and a diagnostic note.
package linker

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/network"
)

// facility-id style references in free text, e.g. PLANT-01, DC-7, LANE-003.
var idRefRE = regexp.MustCompile(`\b([A-Z]+-\d+)\b`)

// EnrichedEvent is a canonical event plus its network context. Shipments
// holds only the "upcoming" set: lane members whose ETA falls inside the
// look-ahead window anchored at link time.
type EnrichedEvent struct {
	Event event.CanonicalEvent

	// Facilities ordered by criticality descending, ties by id ascending.
	Facilities []network.Facility
	// Lanes ordered by id ascending.
	Lanes []network.Lane
	// Shipments ordered by id ascending.
	Shipments []network.Shipment

	// ShipmentsTotalLinked counts lane-member shipments before the ETA
	// window filter, for scope bookkeeping.
	ShipmentsTotalLinked int

	// Diagnostics records why matches did or did not happen, including the
	// degraded no-directory path and shipments dropped for bad ETAs.
	Diagnostics []string

	// Degraded is true when no directory was available.
	Degraded bool
}

// FacilityIDs returns matched facility ids in enriched order.
func (e *EnrichedEvent) FacilityIDs() []string {
	ids := make([]string, len(e.Facilities))
	for i, f := range e.Facilities {
		ids[i] = f.ID
	}
	return ids
}

// LaneIDs returns matched lane ids in enriched order.
func (e *EnrichedEvent) LaneIDs() []string {
	ids := make([]string, len(e.Lanes))
	for i, l := range e.Lanes {
		ids[i] = l.ID
	}
	return ids
}

// ShipmentIDs returns upcoming shipment ids in enriched order.
func (e *EnrichedEvent) ShipmentIDs() []string {
	ids := make([]string, len(e.Shipments))
	for i, s := range e.Shipments {
		ids[i] = s.ID
	}
	return ids
}

// Link matches an event against the network directory.
//
// Facilities are matched by exact id reference in the text first, then by
// case-insensitive location match on the event's location hint. Lanes are
// matched by origin-facility membership. Shipments are matched by lane
// membership with an ETA inside [now, now+daysAhead]; missing or
// unparseable ETAs exclude the shipment from the upcoming set and add a
// diagnostic.
//
// A nil directory yields an explicitly degraded result, not an error.
func Link(ctx context.Context, ev event.CanonicalEvent, dir network.Directory, daysAhead int, now time.Time) (EnrichedEvent, error) {
	enriched := EnrichedEvent{Event: ev}

	if dir == nil {
		enriched.Degraded = true
		enriched.Diagnostics = append(enriched.Diagnostics, "no network directory available; linking skipped")
		return enriched, nil
	}

	facilities, notes, err := matchFacilities(ctx, ev, dir)
	if err != nil {
		return enriched, fmt.Errorf("link facilities: %w", err)
	}
	enriched.Diagnostics = append(enriched.Diagnostics, notes...)

	// Deterministic order: criticality desc, id asc.
	sort.Slice(facilities, func(i, j int) bool {
		if facilities[i].Criticality != facilities[j].Criticality {
			return facilities[i].Criticality > facilities[j].Criticality
		}
		return facilities[i].ID < facilities[j].ID
	})
	enriched.Facilities = facilities

	if len(facilities) == 0 {
		enriched.Diagnostics = append(enriched.Diagnostics, "no facility match; lanes and shipments not linked")
		return enriched, nil
	}

	lanes, err := dir.LanesByOrigin(ctx, enriched.FacilityIDs())
	if err != nil {
		return enriched, fmt.Errorf("link lanes: %w", err)
	}
	sort.Slice(lanes, func(i, j int) bool { return lanes[i].ID < lanes[j].ID })
	enriched.Lanes = lanes

	if len(lanes) == 0 {
		return enriched, nil
	}

	shipments, err := dir.ShipmentsByLane(ctx, enriched.LaneIDs())
	if err != nil {
		return enriched, fmt.Errorf("link shipments: %w", err)
	}
	enriched.ShipmentsTotalLinked = len(shipments)

	windowEnd := now.Add(time.Duration(daysAhead) * 24 * time.Hour)
	upcoming := shipments[:0:0]
	for _, s := range shipments {
		eta, err := network.ParseETA(s.ETA)
		if err != nil {
			enriched.Diagnostics = append(enriched.Diagnostics,
				fmt.Sprintf("shipment %s excluded from upcoming set: %v", s.ID, err))
			continue
		}
		if !eta.Before(now) && !eta.After(windowEnd) {
			upcoming = append(upcoming, s)
		}
	}
	sort.Slice(upcoming, func(i, j int) bool { return upcoming[i].ID < upcoming[j].ID })
	enriched.Shipments = upcoming

	return enriched, nil
}

// matchFacilities tries exact id references, then the location hint.
func matchFacilities(ctx context.Context, ev event.CanonicalEvent, dir network.Directory) ([]network.Facility, []string, error) {
	var notes []string

	refs := idRefRE.FindAllString(ev.Title+" "+ev.RawText, -1)
	if len(refs) > 0 {
		found, err := dir.FacilitiesByID(ctx, dedupe(refs))
		if err != nil {
			return nil, notes, err
		}
		if len(found) > 0 {
			notes = append(notes, fmt.Sprintf("facility match by id reference: %s", joinFacilityIDs(found)))
			return found, notes, nil
		}
	}

	city, state := splitLocationHint(ev.LocationHint)
	if city == "" && state == "" {
		return nil, notes, nil
	}
	found, err := dir.FacilitiesByLocation(ctx, city, state)
	if err != nil {
		return nil, notes, err
	}
	if len(found) > 0 {
		notes = append(notes, fmt.Sprintf("facility match by location %q: %s", ev.LocationHint, joinFacilityIDs(found)))
	} else {
		notes = append(notes, fmt.Sprintf("no facility match for location %q", ev.LocationHint))
	}
	return found, notes, nil
}

// splitLocationHint breaks "City, State" hints apart; a hint with no comma
// is treated as a city.
func splitLocationHint(hint string) (city, state string) {
	if hint == "" {
		return "", ""
	}
	parts := strings.SplitN(hint, ",", 2)
	city = strings.TrimSpace(parts[0])
	if len(parts) == 2 {
		state = strings.TrimSpace(parts[1])
	}
	return city, state
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := items[:0:0]
	for _, it := range items {
		if !seen[it] {
			seen[it] = true
			out = append(out, it)
		}
	}
	return out
}

func joinFacilityIDs(fs []network.Facility) string {
	ids := make([]string, len(fs))
	for i, f := range fs {
		ids[i] = f.ID
	}
	sort.Strings(ids)
	return strings.Join(ids, ",")
}
