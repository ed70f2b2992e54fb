package brief

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/WhatsYourWhy/Hardstop/internal/canonical"
)

// ExportSchemaVersion is bumped whenever the bundle layout changes.
const ExportSchemaVersion = 2

// Manifest makes an export bundle self-verifying: the data hash and the
// per-alert artifact hashes can be recomputed from the bundle alone, and
// the config hash ties the bundle to the snapshot that produced it.
type Manifest struct {
	ConfigHash     string   `json:"config_hash"`
	ExportDataHash string   `json:"export_data_hash"`
	ArtifactHashes []string `json:"artifact_hashes"`
}

// Bundle is the portable JSON export of one brief.
type Bundle struct {
	ExportSchemaVersion int      `json:"export_schema_version"`
	Brief               Brief    `json:"data"`
	Manifest            Manifest `json:"manifest"`
}

// Export seals a brief into a bundle.
func Export(b Brief, configHash string) (Bundle, error) {
	dataHash, artifactHashes, err := hashBrief(b)
	if err != nil {
		return Bundle{}, fmt.Errorf("export: %w", err)
	}
	return Bundle{
		ExportSchemaVersion: ExportSchemaVersion,
		Brief:               b,
		Manifest: Manifest{
			ConfigHash:     configHash,
			ExportDataHash: dataHash,
			ArtifactHashes: artifactHashes,
		},
	}, nil
}

// Verify recomputes the manifest from the bundle's data. A mismatch means
// the bundle was altered after export.
func Verify(bundle Bundle) error {
	if bundle.ExportSchemaVersion != ExportSchemaVersion {
		return fmt.Errorf("verify export: unsupported schema version %d", bundle.ExportSchemaVersion)
	}
	dataHash, artifactHashes, err := hashBrief(bundle.Brief)
	if err != nil {
		return fmt.Errorf("verify export: %w", err)
	}
	if dataHash != bundle.Manifest.ExportDataHash {
		return fmt.Errorf("verify export: data hash mismatch (want %s, got %s)",
			bundle.Manifest.ExportDataHash, dataHash)
	}
	if len(artifactHashes) != len(bundle.Manifest.ArtifactHashes) {
		return fmt.Errorf("verify export: artifact count mismatch")
	}
	for i, h := range artifactHashes {
		if h != bundle.Manifest.ArtifactHashes[i] {
			return fmt.Errorf("verify export: artifact hash mismatch at %d", i)
		}
	}
	return nil
}

// hashBrief derives the data hash over the brief's JSON form and one hash
// per alert, sorted for order independence.
func hashBrief(b Brief) (dataHash string, artifactHashes []string, err error) {
	data, err := json.Marshal(b)
	if err != nil {
		return "", nil, fmt.Errorf("marshal brief: %w", err)
	}
	dataHash = canonical.HashBytes(canonical.DomainArtifact, data)

	for _, a := range b.Alerts {
		blob, err := json.Marshal(a)
		if err != nil {
			return "", nil, fmt.Errorf("marshal alert %s: %w", a.AlertID, err)
		}
		artifactHashes = append(artifactHashes, canonical.HashBytes(canonical.DomainArtifact, blob))
	}
	sort.Strings(artifactHashes)
	return dataHash, artifactHashes, nil
}
