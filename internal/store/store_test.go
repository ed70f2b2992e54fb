package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/WhatsYourWhy/Hardstop/internal/network"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "hardstop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedTestNetwork(t *testing.T, s *Store) {
	t.Helper()
	err := s.SeedNetwork(context.Background(),
		[]network.Facility{
			{ID: "PLANT-01", Name: "Avon Plant", City: "Avon", State: "IN", Criticality: 8},
			{ID: "DC-02", Name: "Avon DC", City: "Avon", State: "IN", Criticality: 5},
			{ID: "PORT-09", Name: "Savannah Port", City: "Savannah", State: "GA", Criticality: 9},
		},
		[]network.Lane{
			{ID: "LANE-001", OriginFacilityID: "PLANT-01", DestFacilityID: "DC-02", Volume: 8},
			{ID: "LANE-002", OriginFacilityID: "DC-02", DestFacilityID: "PORT-09", Volume: 4},
		},
		[]network.Shipment{
			{ID: "SHP-1001", LaneID: "LANE-001", Priority: true, ETA: "2026-08-02T10:00:00Z"},
			{ID: "SHP-1002", LaneID: "LANE-002", ETA: "2026-08-05"},
		},
	)
	require.NoError(t, err)
}

func TestOpenAppliesPragmas(t *testing.T) {
	s := openTestStore(t)

	assert.NoError(t, s.verifyPragma("journal_mode", "wal"))
	assert.NoError(t, s.verifyPragma("foreign_keys", "1"))
	assert.NoError(t, s.verifyPragma("busy_timeout", "5000"))
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hardstop.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	var version int
	require.NoError(t, s2.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)
}

func TestSeedNetworkIdempotent(t *testing.T) {
	s := openTestStore(t)
	seedTestNetwork(t, s)
	seedTestNetwork(t, s) // second seed is a no-op

	fs, err := s.FacilitiesByID(context.Background(), []string{"PLANT-01", "DC-02", "PORT-09"})
	require.NoError(t, err)
	assert.Len(t, fs, 3)
}

func TestFacilitiesByLocationCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	seedTestNetwork(t, s)

	fs, err := s.FacilitiesByLocation(context.Background(), "avon", "in")
	require.NoError(t, err)
	require.Len(t, fs, 2)
	assert.Equal(t, "DC-02", fs[0].ID)
	assert.Equal(t, "PLANT-01", fs[1].ID)

	none, err := s.FacilitiesByLocation(context.Background(), "", "")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestLanesAndShipmentsLookup(t *testing.T) {
	s := openTestStore(t)
	seedTestNetwork(t, s)

	lanes, err := s.LanesByOrigin(context.Background(), []string{"PLANT-01", "DC-02"})
	require.NoError(t, err)
	require.Len(t, lanes, 2)

	shipments, err := s.ShipmentsByLane(context.Background(), []string{"LANE-001"})
	require.NoError(t, err)
	require.Len(t, shipments, 1)
	assert.Equal(t, "SHP-1001", shipments[0].ID)
	assert.True(t, shipments[0].Priority)
}

func TestTimeRoundTrip(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 123456789, time.UTC)
	got, err := parseTime(formatTime(now))
	require.NoError(t, err)
	assert.True(t, now.Equal(got))

	// Second-precision RFC 3339 from older rows still parses.
	got, err = parseTime("2026-08-01T12:00:00Z")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC), got)
}
