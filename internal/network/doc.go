// Package network defines the operational network reference data (facilities,
// transport lanes, shipments) and the read-only Directory query capability
// the entity linker consumes.
//
// The core never mutates reference data. Directory is implemented by the
// SQLite store for production and by MemDirectory for tests and offline use.
package network
