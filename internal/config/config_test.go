package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
sources:
  - id: county-alerts
    tier: local
    trust_tier: 2
    geo:
      city: Avon
      state: IN
  - id: noaa-feed
    tier: global
    trust_tier: 3
    classification_floor: 1
days_ahead: 14
workers: 2
database_path: hardstop.db
`

func TestParseValidDocument(t *testing.T) {
	snap, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	require.Len(t, snap.Sources, 2)
	// Sorted by id regardless of document order.
	assert.Equal(t, "county-alerts", snap.Sources[0].ID)
	assert.Equal(t, "noaa-feed", snap.Sources[1].ID)
	assert.Equal(t, 14, snap.DaysAhead)
	assert.Equal(t, 2, snap.Workers)
	assert.Equal(t, DefaultWindowDays, snap.WindowDays)
	assert.Equal(t, DefaultMode, snap.Mode)
}

func TestParseRejectsUnknownTier(t *testing.T) {
	bad := `
sources:
  - id: x
    tier: galactic
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestParseRejectsOutOfRangeTrust(t *testing.T) {
	bad := `
sources:
  - id: x
    tier: local
    trust_tier: 9
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
}

func TestParseRejectsUnknownField(t *testing.T) {
	bad := `
sources: []
turbo_mode: true
`
	_, err := Parse([]byte(bad))
	require.Error(t, err)
}

func TestParseRejectsEmptyDocument(t *testing.T) {
	_, err := Parse([]byte(""))
	require.Error(t, err)
}

func TestSourceLookupDefaultsUnknown(t *testing.T) {
	snap, err := Parse([]byte(validYAML))
	require.NoError(t, err)

	src, ok := snap.Source("county-alerts")
	assert.True(t, ok)
	assert.Equal(t, 2, src.TrustTier)

	unknown, ok := snap.Source("mystery")
	assert.False(t, ok)
	assert.Equal(t, 2, unknown.TrustTier, "unknown sources get the default trust tier")
}

func TestHashStableAcrossDocumentOrder(t *testing.T) {
	reordered := `
days_ahead: 14
workers: 2
database_path: hardstop.db
sources:
  - id: noaa-feed
    tier: global
    trust_tier: 3
    classification_floor: 1
  - id: county-alerts
    tier: local
    trust_tier: 2
    geo:
      city: Avon
      state: IN
`
	a, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	b, err := Parse([]byte(reordered))
	require.NoError(t, err)

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
}

func TestHashChangesWithContent(t *testing.T) {
	a, err := Parse([]byte(validYAML))
	require.NoError(t, err)
	b := a
	b.WindowDays = 30

	ha, err := a.Hash()
	require.NoError(t, err)
	hb, err := b.Hash()
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "hardstop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(validYAML), 0o644))

	snap, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, snap.Sources, 2)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
}
