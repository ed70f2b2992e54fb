package network

import (
	"context"
	"strings"
)

// MemDirectory is an in-memory Directory for tests and offline runs.
// Zero value is usable and returns empty results.
type MemDirectory struct {
	Facilities []Facility
	Lanes      []Lane
	Shipments  []Shipment
}

var _ Directory = (*MemDirectory)(nil)

func (d *MemDirectory) FacilitiesByID(_ context.Context, ids []string) ([]Facility, error) {
	want := toSet(ids)
	var out []Facility
	for _, f := range d.Facilities {
		if want[f.ID] {
			out = append(out, f)
		}
	}
	return out, nil
}

func (d *MemDirectory) FacilitiesByLocation(_ context.Context, city, state string) ([]Facility, error) {
	var out []Facility
	for _, f := range d.Facilities {
		if city != "" && !strings.EqualFold(f.City, city) {
			continue
		}
		if state != "" && !strings.EqualFold(f.State, state) {
			continue
		}
		if city == "" && state == "" {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

func (d *MemDirectory) LanesByOrigin(_ context.Context, facilityIDs []string) ([]Lane, error) {
	want := toSet(facilityIDs)
	var out []Lane
	for _, l := range d.Lanes {
		if want[l.OriginFacilityID] {
			out = append(out, l)
		}
	}
	return out, nil
}

func (d *MemDirectory) ShipmentsByLane(_ context.Context, laneIDs []string) ([]Shipment, error) {
	want := toSet(laneIDs)
	var out []Shipment
	for _, s := range d.Shipments {
		if want[s.LaneID] {
			out = append(out, s)
		}
	}
	return out, nil
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}
