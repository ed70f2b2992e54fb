// Package scoring computes the deterministic 0-10 operational impact score
// for an enriched event, with a full auditable breakdown.
//
// The score is a fixed weighted sum of named subscores, adjusted by the
// source's trust tier and weighting bias. There is no failure path: missing
// inputs default their subscore to zero and record a diagnostic.
package scoring

import (
	"fmt"
	"math"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/linker"
	"github.com/WhatsYourWhy/Hardstop/internal/network"
)

// Subscore names, also used as breakdown component names.
const (
	SubscoreFacilityCriticality = "facility_criticality"
	SubscoreLaneVolume          = "lane_volume"
	SubscoreShipmentPriority    = "shipment_priority"
	SubscoreEventSeverity       = "event_severity"
	SubscoreETAProximity        = "eta_proximity"
)

// Weights of the fixed weighted-sum formula. They sum to 1.0 so the raw
// combined score stays on the subscores' 0-10 scale before modifiers.
var weights = map[string]float64{
	SubscoreFacilityCriticality: 0.30,
	SubscoreLaneVolume:          0.20,
	SubscoreShipmentPriority:    0.15,
	SubscoreEventSeverity:       0.25,
	SubscoreETAProximity:        0.10,
}

// severityTable is the fixed event-type severity lookup, 0-10.
var severityTable = map[event.Bucket]float64{
	event.BucketSpill:   9,
	event.BucketClosure: 8,
	event.BucketStrike:  7,
	event.BucketWeather: 6,
	event.BucketRecall:  5,
	event.BucketReg:     4,
	event.BucketOther:   2,
}

// ETA proximity bonuses: highest inside 12 real hours, medium inside 48.
const (
	etaNearWindow = 12 * time.Hour
	etaMidWindow  = 48 * time.Hour
	etaNearBonus  = 10.0
	etaMidBonus   = 6.0
	priorityBonus = 10.0
)

// trustFactor is the multiplicative trust-tier modifier.
var trustFactor = map[int]float64{1: 0.85, 2: 1.00, 3: 1.10}

// Component is one named subscore with its contribution to the total.
type Component struct {
	Name         string  `json:"name"`
	Raw          float64 `json:"raw_value"`
	Weight       float64 `json:"weight"`
	Contribution float64 `json:"contribution"`
}

// Breakdown is the immutable scoring rationale. It is embedded verbatim in
// alert evidence and never recomputed after the fact.
type Breakdown struct {
	Components []Component `json:"components"`

	// WeightedSum is the clamped combination before modifiers.
	WeightedSum float64 `json:"weighted_sum"`

	// TrustTier and TrustFactor document the multiplicative modifier;
	// WeightingBias documents the additive one.
	TrustTier     int     `json:"trust_tier"`
	TrustFactor   float64 `json:"trust_factor"`
	WeightingBias int     `json:"weighting_bias"`

	// Total is the final score: clamp(WeightedSum*TrustFactor+Bias, 0, 10)
	// rounded to one decimal, half away from zero.
	Total float64 `json:"total"`

	// Diagnostics records defaulted subscores (ScoringDefaulted paths).
	Diagnostics []string `json:"diagnostics,omitempty"`
}

// ToMap renders the breakdown as a canonical-JSON-compatible structure for
// hashing and evidence storage.
func (b Breakdown) ToMap() map[string]any {
	comps := make([]any, len(b.Components))
	for i, c := range b.Components {
		comps[i] = map[string]any{
			"name":         c.Name,
			"raw_value":    c.Raw,
			"weight":       c.Weight,
			"contribution": c.Contribution,
		}
	}
	m := map[string]any{
		"components":     comps,
		"weighted_sum":   b.WeightedSum,
		"trust_tier":     b.TrustTier,
		"trust_factor":   b.TrustFactor,
		"weighting_bias": b.WeightingBias,
		"total":          b.Total,
	}
	if len(b.Diagnostics) > 0 {
		m["diagnostics"] = b.Diagnostics
	}
	return m
}

// Score computes the impact score for an enriched event, anchored at now
// for ETA proximity. Deterministic: same enriched event and now always
// produce the same breakdown.
func Score(enriched linker.EnrichedEvent, now time.Time) Breakdown {
	var diags []string

	facility := maxFacilityCriticality(enriched.Facilities)
	if len(enriched.Facilities) == 0 {
		diags = append(diags, "no linked facilities; facility_criticality defaulted to 0")
	}

	lane := maxLaneVolume(enriched.Lanes)
	if len(enriched.Lanes) == 0 {
		diags = append(diags, "no linked lanes; lane_volume defaulted to 0")
	}

	shipment := 0.0
	if anyPriority(enriched.Shipments) {
		shipment = priorityBonus
	}

	severity, ok := severityTable[enriched.Event.EventType]
	if !ok {
		severity = severityTable[event.BucketOther]
		diags = append(diags, fmt.Sprintf("unknown event type %q; event_severity defaulted", enriched.Event.EventType))
	}

	eta := etaProximity(enriched.Shipments, now)

	order := []struct {
		name string
		raw  float64
	}{
		{SubscoreFacilityCriticality, facility},
		{SubscoreLaneVolume, lane},
		{SubscoreShipmentPriority, shipment},
		{SubscoreEventSeverity, severity},
		{SubscoreETAProximity, eta},
	}

	b := Breakdown{
		TrustTier:     enriched.Event.TrustTier,
		WeightingBias: enriched.Event.WeightingBias,
		Diagnostics:   diags,
	}

	sum := 0.0
	for _, s := range order {
		w := weights[s.name]
		contribution := round1(s.raw * w)
		b.Components = append(b.Components, Component{
			Name:         s.name,
			Raw:          s.raw,
			Weight:       w,
			Contribution: contribution,
		})
		sum += s.raw * w
	}
	b.WeightedSum = round1(clamp(sum, 0, 10))

	factor, ok := trustFactor[enriched.Event.TrustTier]
	if !ok {
		factor = trustFactor[2]
		b.Diagnostics = append(b.Diagnostics,
			fmt.Sprintf("unknown trust tier %d; factor defaulted to 1.00", enriched.Event.TrustTier))
	}
	b.TrustFactor = factor

	b.Total = round1(clamp(clamp(sum, 0, 10)*factor+float64(enriched.Event.WeightingBias), 0, 10))
	return b
}

func maxFacilityCriticality(fs []network.Facility) float64 {
	max := 0.0
	for _, f := range fs {
		if v := float64(f.Criticality); v > max {
			max = v
		}
	}
	return clamp(max, 0, 10)
}

func maxLaneVolume(ls []network.Lane) float64 {
	max := 0.0
	for _, l := range ls {
		if v := float64(l.Volume); v > max {
			max = v
		}
	}
	return clamp(max, 0, 10)
}

func anyPriority(ss []network.Shipment) bool {
	for _, s := range ss {
		if s.Priority {
			return true
		}
	}
	return false
}

// etaProximity grades the soonest parseable upcoming ETA. Shipments here
// have already passed the linker's window filter, so unparseable ETAs never
// reach this point; the zero default still guards the direct-call path.
func etaProximity(ss []network.Shipment, now time.Time) float64 {
	best := 0.0
	for _, s := range ss {
		eta, err := network.ParseETA(s.ETA)
		if err != nil || eta.Before(now) {
			continue
		}
		switch d := eta.Sub(now); {
		case d <= etaNearWindow:
			return etaNearBonus
		case d <= etaMidWindow && best < etaMidBonus:
			best = etaMidBonus
		}
	}
	return best
}

func clamp(v, lo, hi float64) float64 {
	return math.Min(hi, math.Max(lo, v))
}

// round1 rounds to one decimal, half away from zero. All stored scores and
// contributions go through this so hashes are reproducible.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
