package event

import (
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/WhatsYourWhy/Hardstop/internal/canonical"
)

// Payload fields probed, in order, for text content and location hints.
var (
	textFields     = []string{"summary", "description", "content", "body"}
	locationFields = []string{"areaDesc", "location", "area", "region", "city", "state"}

	// "City, ST" or "City Name, State" in free text.
	cityStateRE = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+)*),\s+([A-Z]{2}|[A-Z][a-z]+)\b`)
)

// Canonicalize turns a raw item into an immutable canonical event.
//
// The event id is derived deterministically, preferring caller-supplied
// EventID, then CanonicalID, then RawID. Only when none exist is a fresh
// UUID generated, and the event is flagged IDFallback so downstream replay
// tooling can see the non-deterministic boundary.
//
// Returns *ValidationError when the payload is not a structured object.
// Everything else degrades: missing text, location, or type information
// yields empty fields, never an error.
func Canonicalize(raw RawItemCandidate, src SourceConfig) (CanonicalEvent, error) {
	if raw.Payload == nil {
		return CanonicalEvent{}, &ValidationError{
			SourceID: raw.SourceID,
			RawID:    raw.RawID,
			Message:  "raw payload is not a structured object",
		}
	}
	src = src.Normalize()

	title := raw.Title
	if title == "" {
		title, _ = raw.Payload["title"].(string)
	}

	rawText := joinText(title, raw.Payload)

	explicitType, _ := raw.Payload["event_type"].(string)
	bucket := ClassifyType(explicitType, rawText)

	locationHint := extractLocationHint(raw.Payload, src.Geo)
	entities := map[string]string{}
	if locationHint != "" {
		entities["location"] = locationHint
	}

	eventID, fallback := deriveEventID(raw)

	payloadJSON, err := canonical.Marshal(raw.Payload)
	if err != nil {
		return CanonicalEvent{}, &ValidationError{
			SourceID: raw.SourceID,
			RawID:    raw.RawID,
			Message:  "payload has no canonical form: " + err.Error(),
		}
	}

	return CanonicalEvent{
		EventID:             eventID,
		EventType:           bucket,
		Title:               title,
		RawText:             rawText,
		LocationHint:        locationHint,
		Entities:            entities,
		SourceID:            raw.SourceID,
		RawID:               raw.RawID,
		Tier:                src.Tier,
		URL:                 raw.URL,
		TrustTier:           src.TrustTier,
		ClassificationFloor: src.ClassificationFloor,
		WeightingBias:       src.WeightingBias,
		EventTimeUTC:        raw.PublishedAtUTC,
		PayloadJSON:         payloadJSON,
		IDFallback:          fallback,
	}, nil
}

// deriveEventID applies the id preference order. The generated-id branch is
// the one non-deterministic step in the whole pipeline.
func deriveEventID(raw RawItemCandidate) (id string, fallback bool) {
	switch {
	case raw.EventID != "":
		return raw.EventID, false
	case raw.CanonicalID != "":
		return raw.CanonicalID, false
	case raw.RawID != "":
		return raw.RawID, false
	default:
		return "EVT-" + uuid.NewString(), true
	}
}

// joinText concatenates the title and all known text-bearing payload fields.
func joinText(title string, payload map[string]any) string {
	parts := make([]string, 0, len(textFields)+1)
	if title != "" {
		parts = append(parts, title)
	}
	for _, field := range textFields {
		if v, ok := payload[field].(string); ok && v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}

// extractLocationHint prefers source geo metadata, then payload location
// fields, then a "City, State" pattern in the text fields. Returns "" when
// nothing matches.
func extractLocationHint(payload map[string]any, geo *Geo) string {
	if geo != nil {
		parts := []string{}
		for _, p := range []string{geo.City, geo.State, geo.Country} {
			if p != "" {
				parts = append(parts, p)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, ", ")
		}
	}

	for _, field := range locationFields {
		if v, ok := payload[field].(string); ok && v != "" {
			return v
		}
	}

	for _, field := range append([]string{"title"}, textFields...) {
		v, ok := payload[field].(string)
		if !ok || v == "" {
			continue
		}
		if m := cityStateRE.FindStringSubmatch(v); m != nil {
			return m[1] + ", " + m[2]
		}
	}
	return ""
}
