package network

import (
	"context"
	"fmt"
	"time"
)

// Facility is a physical node in the operational network.
type Facility struct {
	ID      string
	Name    string
	City    string
	State   string
	Country string

	// Criticality is 0-10; it feeds the facility subscore directly.
	Criticality int
}

// Lane is a directed transport connection between two facilities.
type Lane struct {
	ID               string
	OriginFacilityID string
	DestFacilityID   string

	// Volume is 0-10; it feeds the lane subscore directly.
	Volume int
}

// Shipment is a planned movement on a lane.
type Shipment struct {
	ID       string
	LaneID   string
	Priority bool
	Status   string

	// ETA is either RFC 3339 or a date-only "2006-01-02" string. Date-only
	// values are interpreted as end of day UTC. May be empty or garbage;
	// consumers must degrade, not fail.
	ETA string

	ShipDate string
}

// Directory is the read-only query capability over network reference data.
type Directory interface {
	// FacilitiesByID returns facilities whose id is in ids, any order.
	FacilitiesByID(ctx context.Context, ids []string) ([]Facility, error)

	// FacilitiesByLocation matches city and state case-insensitively.
	// Either argument may be empty, in which case it is not constrained.
	FacilitiesByLocation(ctx context.Context, city, state string) ([]Facility, error)

	// LanesByOrigin returns lanes whose origin facility is in facilityIDs.
	LanesByOrigin(ctx context.Context, facilityIDs []string) ([]Lane, error)

	// ShipmentsByLane returns shipments on any of the given lanes.
	ShipmentsByLane(ctx context.Context, laneIDs []string) ([]Shipment, error)
}

// ParseETA parses a shipment ETA. Date-only ETAs resolve to end of day UTC
// so that "due today" shipments stay inside a [now, now+window] check for
// the whole day.
func ParseETA(eta string) (time.Time, error) {
	if eta == "" {
		return time.Time{}, fmt.Errorf("empty eta")
	}
	if t, err := time.Parse(time.RFC3339, eta); err == nil {
		return t.UTC(), nil
	}
	if d, err := time.Parse("2006-01-02", eta); err == nil {
		return time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, 0, time.UTC), nil
	}
	return time.Time{}, fmt.Errorf("unparseable eta %q", eta)
}
