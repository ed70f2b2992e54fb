package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/WhatsYourWhy/Hardstop/internal/network"
)

var _ network.Directory = (*Store)(nil)

// SeedNetwork loads reference rows. Idempotent: existing ids are left
// untouched (ON CONFLICT DO NOTHING), so re-seeding never mutates data the
// core has already linked against.
func (s *Store) SeedNetwork(ctx context.Context, facilities []network.Facility, lanes []network.Lane, shipments []network.Shipment) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("seed network: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	for _, f := range facilities {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO facilities (id, name, city, state, country, criticality)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, f.ID, f.Name, f.City, f.State, f.Country, f.Criticality)
		if err != nil {
			return fmt.Errorf("seed facility %s: %w", f.ID, err)
		}
	}

	for _, l := range lanes {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO lanes (id, origin_facility_id, dest_facility_id, volume)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, l.ID, l.OriginFacilityID, l.DestFacilityID, l.Volume)
		if err != nil {
			return fmt.Errorf("seed lane %s: %w", l.ID, err)
		}
	}

	for _, sh := range shipments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO shipments (id, lane_id, priority, status, eta_utc, ship_date)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, sh.ID, sh.LaneID, sh.Priority, sh.Status, sh.ETA, sh.ShipDate)
		if err != nil {
			return fmt.Errorf("seed shipment %s: %w", sh.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed network: commit: %w", err)
	}
	return nil
}

// FacilitiesByID returns facilities whose id is in ids, in id order.
func (s *Store) FacilitiesByID(ctx context.Context, ids []string) ([]network.Facility, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, name, city, state, country, criticality
		FROM facilities WHERE id IN (%s) ORDER BY id
	`, placeholders(len(ids)))

	rows, err := s.db.QueryContext(ctx, query, toArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("facilities by id: %w", err)
	}
	defer rows.Close()
	return scanFacilities(rows)
}

// FacilitiesByLocation matches city and state case-insensitively. Empty
// parts match anything; both empty matches nothing.
func (s *Store) FacilitiesByLocation(ctx context.Context, city, state string) ([]network.Facility, error) {
	if city == "" && state == "" {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, city, state, country, criticality
		FROM facilities
		WHERE (? = '' OR city = ? COLLATE NOCASE)
		  AND (? = '' OR state = ? COLLATE NOCASE)
		ORDER BY id
	`, city, city, state, state)
	if err != nil {
		return nil, fmt.Errorf("facilities by location: %w", err)
	}
	defer rows.Close()
	return scanFacilities(rows)
}

// LanesByOrigin returns lanes originating at any of the facilities.
func (s *Store) LanesByOrigin(ctx context.Context, facilityIDs []string) ([]network.Lane, error) {
	if len(facilityIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, origin_facility_id, dest_facility_id, volume
		FROM lanes WHERE origin_facility_id IN (%s) ORDER BY id
	`, placeholders(len(facilityIDs)))

	rows, err := s.db.QueryContext(ctx, query, toArgs(facilityIDs)...)
	if err != nil {
		return nil, fmt.Errorf("lanes by origin: %w", err)
	}
	defer rows.Close()

	var out []network.Lane
	for rows.Next() {
		var l network.Lane
		if err := rows.Scan(&l.ID, &l.OriginFacilityID, &l.DestFacilityID, &l.Volume); err != nil {
			return nil, fmt.Errorf("scan lane: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// ShipmentsByLane returns shipments on any of the lanes.
func (s *Store) ShipmentsByLane(ctx context.Context, laneIDs []string) ([]network.Shipment, error) {
	if len(laneIDs) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, lane_id, priority, status, eta_utc, ship_date
		FROM shipments WHERE lane_id IN (%s) ORDER BY id
	`, placeholders(len(laneIDs)))

	rows, err := s.db.QueryContext(ctx, query, toArgs(laneIDs)...)
	if err != nil {
		return nil, fmt.Errorf("shipments by lane: %w", err)
	}
	defer rows.Close()

	var out []network.Shipment
	for rows.Next() {
		var sh network.Shipment
		if err := rows.Scan(&sh.ID, &sh.LaneID, &sh.Priority, &sh.Status, &sh.ETA, &sh.ShipDate); err != nil {
			return nil, fmt.Errorf("scan shipment: %w", err)
		}
		out = append(out, sh)
	}
	return out, rows.Err()
}

func scanFacilities(rows *sql.Rows) ([]network.Facility, error) {
	var out []network.Facility
	for rows.Next() {
		var f network.Facility
		if err := rows.Scan(&f.ID, &f.Name, &f.City, &f.State, &f.Country, &f.Criticality); err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func toArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	return args
}
