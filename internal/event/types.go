package event

import "fmt"

// Geo is optional location metadata declared on a source.
type Geo struct {
	City    string `yaml:"city" json:"city,omitempty"`
	State   string `yaml:"state" json:"state,omitempty"`
	Country string `yaml:"country" json:"country,omitempty"`
}

// SourceConfig carries the per-source trust settings injected into every
// event canonicalized from that source.
type SourceConfig struct {
	ID   string `yaml:"id"`
	Tier string `yaml:"tier"` // global | regional | local

	// TrustTier is 1 (low) to 3 (high). Defaults to 2 when unset.
	TrustTier int `yaml:"trust_tier"`

	// ClassificationFloor is the minimum classification (0-2) alerts from
	// this source may carry. It raises, never lowers.
	ClassificationFloor int `yaml:"classification_floor"`

	// WeightingBias is an additive impact-score adjustment, applied after
	// the trust-tier multiplier.
	WeightingBias int `yaml:"weighting_bias"`

	Geo *Geo `yaml:"geo"`
}

// Normalize fills defaults for zero-valued trust settings.
func (c SourceConfig) Normalize() SourceConfig {
	if c.TrustTier == 0 {
		c.TrustTier = 2
	}
	return c
}

// RawItemCandidate is an unprocessed external input. It is consumed exactly
// once by the canonicalizer and never retained beyond its content hash.
type RawItemCandidate struct {
	SourceID       string
	RawID          string
	EventID        string
	CanonicalID    string
	Title          string
	URL            string
	PublishedAtUTC string
	Payload        map[string]any
}

// CanonicalEvent is the normalized, immutable representation of an ingested
// item. Construct it only via Canonicalize.
type CanonicalEvent struct {
	EventID      string
	EventType    Bucket
	Title        string
	RawText      string
	LocationHint string
	Entities     map[string]string

	SourceID string
	RawID    string
	Tier     string
	URL      string

	TrustTier           int
	ClassificationFloor int
	WeightingBias       int

	EventTimeUTC string

	// PayloadJSON is the original payload in canonical JSON form, suitable
	// for content hashing.
	PayloadJSON []byte

	// IDFallback is true when no identifying field was present and a fresh
	// id was generated. Such events are not replay-deterministic end to end.
	IDFallback bool
}

// ValidationError reports a raw item whose payload is not a structured
// object. It is fatal to that item only; the batch continues.
type ValidationError struct {
	SourceID string
	RawID    string
	Message  string
}

func (e *ValidationError) Error() string {
	if e.SourceID != "" || e.RawID != "" {
		return fmt.Sprintf("validation: %s (source=%s, raw=%s)", e.Message, e.SourceID, e.RawID)
	}
	return "validation: " + e.Message
}
