// Package provenance records what ran, over which inputs, producing which
// outputs, so any alert can be traced and replayed after the fact.
//
// RunRecords are append-only. Verification compares content hashes, never
// re-inspects payloads.
package provenance

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/WhatsYourWhy/Hardstop/internal/canonical"
)

// Run modes. Strict mode turns integrity failures and config drift into
// fatal errors; best-effort records them and continues.
const (
	ModeStrict     = "strict"
	ModeBestEffort = "best-effort"
)

// Run statuses.
const (
	StatusOK       = "OK"
	StatusDegraded = "DEGRADED"
	StatusFailed   = "FAILED"
)

// ArtifactRef is a content-addressed reference to an input or output
// artifact. Hash covers the artifact's canonical JSON form.
type ArtifactRef struct {
	ID     string `json:"id"`
	Hash   string `json:"hash"`
	Kind   string `json:"kind"`
	Schema string `json:"schema"`
	Bytes  int    `json:"bytes"`
}

// NewArtifactRef hashes a payload into a reference.
func NewArtifactRef(id, kind, schema string, payload any) (ArtifactRef, error) {
	data, err := canonical.Marshal(payload)
	if err != nil {
		return ArtifactRef{}, fmt.Errorf("artifact %s: %w", id, err)
	}
	return ArtifactRef{
		ID:     id,
		Hash:   canonical.HashBytes(canonical.DomainArtifact, data),
		Kind:   kind,
		Schema: schema,
		Bytes:  len(data),
	}, nil
}

// RunRecord is one operator invocation. Append-only, never mutated.
type RunRecord struct {
	RunID string `json:"run_id"`

	// OperatorID is operator@version, e.g. "canonicalize@1.0.0".
	OperatorID string `json:"operator_id"`

	Mode       string `json:"mode"`
	Status     string `json:"status"`
	ConfigHash string `json:"config_hash"`

	InputRefs  []ArtifactRef `json:"input_refs"`
	OutputRefs []ArtifactRef `json:"output_refs"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`

	// Note carries the failure or degradation reason, empty when OK.
	Note string `json:"note,omitempty"`
}

// Sink is the append-only RunRecord store.
type Sink interface {
	AppendRunRecord(ctx context.Context, rec RunRecord) error
}

// IntegrityError reports a replay whose outputs do not hash-match the
// original run. Fatal in strict mode.
type IntegrityError struct {
	OperatorID string
	ArtifactID string
	WantHash   string
	GotHash    string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("integrity: operator %s artifact %s hash mismatch (want %s, got %s)",
		e.OperatorID, e.ArtifactID, e.WantHash, e.GotHash)
}

// ConfigDriftWarning reports a replay under a different config snapshot.
// Non-fatal unless strict: the runs are not comparable, but nothing is
// known to be wrong.
type ConfigDriftWarning struct {
	OriginalHash string
	ReplayedHash string
}

func (e *ConfigDriftWarning) Error() string {
	return fmt.Sprintf("config drift: original %s, replayed %s", e.OriginalHash, e.ReplayedHash)
}

// Ledger writes one RunRecord per operator invocation.
type Ledger struct {
	sink       Sink
	mode       string
	configHash string

	newRunID func() string
}

// NewLedger hashes the config snapshot once and binds it to every record.
// A nil sink is allowed: records are built and returned but not persisted.
func NewLedger(sink Sink, mode string, configSnapshot any) (*Ledger, error) {
	if mode != ModeStrict && mode != ModeBestEffort {
		return nil, fmt.Errorf("provenance: unknown mode %q", mode)
	}
	configHash, err := canonical.Hash(canonical.DomainConfig, configSnapshot)
	if err != nil {
		return nil, fmt.Errorf("provenance: hash config: %w", err)
	}
	return &Ledger{
		sink:       sink,
		mode:       mode,
		configHash: configHash,
		newRunID:   func() string { return "RUN-" + uuid.NewString() },
	}, nil
}

// Mode returns the ledger's run mode.
func (l *Ledger) Mode() string { return l.mode }

// Strict reports whether integrity failures are fatal.
func (l *Ledger) Strict() bool { return l.mode == ModeStrict }

// ConfigHash returns the bound config snapshot hash.
func (l *Ledger) ConfigHash() string { return l.configHash }

// SetRunIDGenerator overrides run id generation, for deterministic tests.
func (l *Ledger) SetRunIDGenerator(gen func() string) { l.newRunID = gen }

// Record appends one RunRecord and returns it.
func (l *Ledger) Record(ctx context.Context, operatorID, status, note string, inputs, outputs []ArtifactRef, started, ended time.Time) (RunRecord, error) {
	rec := RunRecord{
		RunID:      l.newRunID(),
		OperatorID: operatorID,
		Mode:       l.mode,
		Status:     status,
		ConfigHash: l.configHash,
		InputRefs:  inputs,
		OutputRefs: outputs,
		StartedAt:  started.UTC(),
		EndedAt:    ended.UTC(),
		Note:       note,
	}
	if l.sink == nil {
		return rec, nil
	}
	if err := l.sink.AppendRunRecord(ctx, rec); err != nil {
		return RunRecord{}, fmt.Errorf("provenance: append run record: %w", err)
	}
	return rec, nil
}

// Verify compares an original run against its replay.
//
// Input hashes must match for the runs to be comparable at all. A config
// hash mismatch yields *ConfigDriftWarning; an output hash mismatch yields
// *IntegrityError. The caller decides fatality by mode.
func Verify(original, replayed RunRecord) error {
	if original.OperatorID != replayed.OperatorID {
		return fmt.Errorf("verify: operator mismatch: %s vs %s", original.OperatorID, replayed.OperatorID)
	}
	if err := compareRefs("input", original.InputRefs, replayed.InputRefs); err != nil {
		return fmt.Errorf("verify: runs not comparable: %w", err)
	}
	if original.ConfigHash != replayed.ConfigHash {
		return &ConfigDriftWarning{OriginalHash: original.ConfigHash, ReplayedHash: replayed.ConfigHash}
	}
	if len(original.OutputRefs) != len(replayed.OutputRefs) {
		return &IntegrityError{
			OperatorID: original.OperatorID,
			ArtifactID: fmt.Sprintf("output count %d vs %d", len(original.OutputRefs), len(replayed.OutputRefs)),
		}
	}
	for i, want := range original.OutputRefs {
		got := replayed.OutputRefs[i]
		if want.Hash != got.Hash {
			return &IntegrityError{
				OperatorID: original.OperatorID,
				ArtifactID: want.ID,
				WantHash:   want.Hash,
				GotHash:    got.Hash,
			}
		}
	}
	return nil
}

func compareRefs(kind string, a, b []ArtifactRef) error {
	if len(a) != len(b) {
		return fmt.Errorf("%s count %d vs %d", kind, len(a), len(b))
	}
	for i := range a {
		if a[i].Hash != b[i].Hash {
			return fmt.Errorf("%s %s hash differs", kind, a[i].ID)
		}
	}
	return nil
}

// Operator re-executes a recorded run against its stored inputs.
type Operator func(ctx context.Context, inputs []ArtifactRef) ([]ArtifactRef, error)

// Replay re-runs an operator and verifies its outputs against the original
// record. In best-effort mode an integrity failure is recorded as a
// DEGRADED run and returned as the error with the replay record intact; in
// strict mode it is fatal. Config drift is fatal only in strict mode.
func (l *Ledger) Replay(ctx context.Context, original RunRecord, op Operator) (RunRecord, error) {
	started := time.Now().UTC()
	outputs, err := op(ctx, original.InputRefs)
	if err != nil {
		rec, recErr := l.Record(ctx, original.OperatorID, StatusFailed, err.Error(), original.InputRefs, nil, started, time.Now())
		if recErr != nil {
			return RunRecord{}, recErr
		}
		return rec, fmt.Errorf("replay %s: %w", original.OperatorID, err)
	}

	replayed := RunRecord{
		OperatorID: original.OperatorID,
		ConfigHash: l.configHash,
		InputRefs:  original.InputRefs,
		OutputRefs: outputs,
	}

	verr := Verify(original, replayed)
	status, note := StatusOK, ""
	if verr != nil {
		status, note = StatusDegraded, verr.Error()
	}
	rec, recErr := l.Record(ctx, original.OperatorID, status, note, original.InputRefs, outputs, started, time.Now())
	if recErr != nil {
		return RunRecord{}, recErr
	}

	if verr == nil {
		return rec, nil
	}
	// Inputs were replayed verbatim, so verr is drift or an integrity
	// failure. Strict mode makes either fatal; best-effort hands the typed
	// error back with the DEGRADED record already committed.
	if l.Strict() {
		return rec, fmt.Errorf("replay %s: %w", original.OperatorID, verr)
	}
	return rec, verr
}
