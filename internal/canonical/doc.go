// Package canonical implements deterministic JSON serialization and
// content-addressed hashing for artifact identity.
//
// Every artifact reference in a RunRecord, every incident id, and every
// export manifest entry is derived from the same primitive: SHA-256 over a
// domain prefix plus the canonical JSON form of the structure. Canonical
// form sorts object keys recursively (UTF-16 code unit order, per RFC 8785),
// NFC-normalizes strings, disables HTML escaping, and formats numbers
// stably, so structurally equivalent payloads hash identically regardless
// of key order.
package canonical
