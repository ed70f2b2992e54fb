// Package event defines the raw-input and canonical-event types and the
// canonicalizer that converts one into the other.
//
// A CanonicalEvent is immutable once built. Its payload is stored in
// canonical JSON form so later stages can reference it by content hash.
package event
