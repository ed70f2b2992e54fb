// Package alert defines the standing risk-assessment model and the builder
// that converts a scored, enriched event into an alert decision.
//
// Decisional fields (classification, summary, scope) are kept separate from
// non-decisional evidence (diagnostics, linking notes, score breakdown):
// evidence explains the decision but is never an input to re-deriving it.
package alert

import (
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
	"github.com/WhatsYourWhy/Hardstop/internal/scoring"
)

// Classification tiers. Derived solely from impact score (plus the source's
// classification floor); never set independently.
const (
	ClassInteresting = 0
	ClassRelevant    = 1
	ClassImpactful   = 2
)

// Alert status values. Alerts are never deleted.
const (
	StatusOpen = "OPEN"
)

// Correlation actions. Written once at create/update time and stored
// verbatim; never re-derived from status at read time.
const (
	ActionCreated = "CREATED"
	ActionUpdated = "UPDATED"
)

// Scope lists the network entities an alert covers. Lists are sorted and
// deduplicated.
type Scope struct {
	Facilities []string `json:"facilities"`
	Lanes      []string `json:"lanes"`
	Shipments  []string `json:"shipments"`

	// ShipmentsTotalLinked counts shipments linked before the upcoming-ETA
	// filter; ShipmentsTruncated records whether any list was cut short.
	ShipmentsTotalLinked int  `json:"shipments_total_linked"`
	ShipmentsTruncated   bool `json:"shipments_truncated"`
}

// Action is one recommended operational response.
type Action struct {
	ID             string `json:"id"`
	Description    string `json:"description"`
	OwnerRole      string `json:"owner_role"`
	DueWithinHours int    `json:"due_within_hours"`
}

// SourceRef identifies the source of the triggering event.
type SourceRef struct {
	ID        string `json:"id"`
	Tier      string `json:"tier,omitempty"`
	RawID     string `json:"raw_id,omitempty"`
	URL       string `json:"url,omitempty"`
	TrustTier int    `json:"trust_tier"`
}

// Evidence is the non-decisional audit payload carried on an alert.
type Evidence struct {
	Breakdown    scoring.Breakdown `json:"breakdown"`
	Diagnostics  []string          `json:"diagnostics,omitempty"`
	LinkingNotes []string          `json:"linking_notes,omitempty"`
	Source       SourceRef         `json:"source"`
}

// Alert is a standing risk assessment. Created on the first occurrence of a
// correlation key, mutated only by the correlation engine, never deleted.
type Alert struct {
	AlertID        string       `json:"alert_id"`
	EventType      event.Bucket `json:"event_type"`
	Classification int          `json:"classification"`
	Status         string       `json:"status"`
	Summary        string       `json:"summary"`

	Scope   Scope    `json:"scope"`
	Actions []Action `json:"actions"`

	ImpactScore float64  `json:"impact_score"`
	Evidence    Evidence `json:"evidence"`

	CorrelationKey    string `json:"correlation_key"`
	CorrelationAction string `json:"correlation_action"`

	// Lineage is the deduplicated list of event ids that created or
	// updated this alert, in observation order.
	Lineage []string `json:"lineage"`

	FirstSeenUTC time.Time `json:"first_seen_utc"`
	LastSeenUTC  time.Time `json:"last_seen_utc"`
	UpdateCount  int       `json:"update_count"`
}
