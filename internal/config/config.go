// Package config loads the run configuration: source trust settings,
// scoring knobs, and the database path.
//
// The YAML document is validated against an embedded CUE schema before it
// is trusted; out-of-range trust values and unknown tiers fail the load,
// they never default.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"sort"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/WhatsYourWhy/Hardstop/internal/canonical"
	"github.com/WhatsYourWhy/Hardstop/internal/event"
)

//go:embed schema.cue
var schemaCUE string

// Defaults applied after validation.
const (
	DefaultDaysAhead  = 30
	DefaultWorkers    = 4
	DefaultWindowDays = 7
	DefaultMode       = "best-effort"
)

// Snapshot is the validated, immutable run configuration. Its canonical
// hash is stamped on every RunRecord.
type Snapshot struct {
	Sources      []event.SourceConfig `yaml:"sources"`
	DaysAhead    int                  `yaml:"days_ahead"`
	Workers      int                  `yaml:"workers"`
	WindowDays   int                  `yaml:"window_days"`
	DatabasePath string               `yaml:"database_path"`
	Mode         string               `yaml:"mode"`
}

// Error reports a config document that failed schema validation.
type Error struct {
	Path    string
	Message string
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("config %s: %s", e.Path, e.Message)
	}
	return "config: " + e.Message
}

// Load reads, validates, and normalizes a config file.
func Load(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read config: %w", err)
	}
	snap, err := Parse(data)
	if err != nil {
		return Snapshot{}, &Error{Path: path, Message: err.Error()}
	}
	return snap, nil
}

// Parse validates raw YAML against the schema and fills defaults.
func Parse(data []byte) (Snapshot, error) {
	// Validate the document as written, before Go-side defaulting can
	// paper over bad values.
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return Snapshot{}, fmt.Errorf("parse yaml: %w", err)
	}
	if doc == nil {
		return Snapshot{}, fmt.Errorf("empty config document")
	}
	if err := validate(doc); err != nil {
		return Snapshot{}, err
	}

	var snap Snapshot
	if err := yaml.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decode config: %w", err)
	}
	return snap.normalize(), nil
}

func validate(doc map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE)
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))
	if err := def.Err(); err != nil {
		return fmt.Errorf("lookup schema: %w", err)
	}
	unified := def.Unify(ctx.Encode(doc))
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("schema: %w", err)
	}
	return nil
}

func (s Snapshot) normalize() Snapshot {
	if s.DaysAhead == 0 {
		s.DaysAhead = DefaultDaysAhead
	}
	if s.Workers == 0 {
		s.Workers = DefaultWorkers
	}
	if s.WindowDays == 0 {
		s.WindowDays = DefaultWindowDays
	}
	if s.Mode == "" {
		s.Mode = DefaultMode
	}
	for i, src := range s.Sources {
		s.Sources[i] = src.Normalize()
	}
	sort.Slice(s.Sources, func(i, j int) bool { return s.Sources[i].ID < s.Sources[j].ID })
	return s
}

// Source returns the config for a source id, or a normalized zero-value
// config when the source is unknown.
func (s Snapshot) Source(id string) (event.SourceConfig, bool) {
	for _, src := range s.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return event.SourceConfig{ID: id}.Normalize(), false
}

// ToMap renders the snapshot for canonical hashing. Sources are already
// sorted by id, so the map is order-independent of the document.
func (s Snapshot) ToMap() map[string]any {
	sources := make([]any, len(s.Sources))
	for i, src := range s.Sources {
		m := map[string]any{
			"id":                   src.ID,
			"tier":                 src.Tier,
			"trust_tier":           int64(src.TrustTier),
			"classification_floor": int64(src.ClassificationFloor),
			"weighting_bias":       int64(src.WeightingBias),
		}
		if src.Geo != nil {
			m["geo"] = map[string]any{
				"city":    src.Geo.City,
				"state":   src.Geo.State,
				"country": src.Geo.Country,
			}
		}
		sources[i] = m
	}
	return map[string]any{
		"sources":       sources,
		"days_ahead":    int64(s.DaysAhead),
		"workers":       int64(s.Workers),
		"window_days":   int64(s.WindowDays),
		"database_path": s.DatabasePath,
		"mode":          s.Mode,
	}
}

// Hash is the canonical config fingerprint.
func (s Snapshot) Hash() (string, error) {
	return canonical.Hash(canonical.DomainConfig, s.ToMap())
}
