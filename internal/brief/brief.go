// Package brief assembles the deterministic operational read-out: the
// window's alerts in priority order, incidents, and the run ledger.
package brief

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/WhatsYourWhy/Hardstop/internal/alert"
	"github.com/WhatsYourWhy/Hardstop/internal/incident"
	"github.com/WhatsYourWhy/Hardstop/internal/provenance"
)

// Source is the read surface the brief needs. *store.Store satisfies it.
type Source interface {
	ListAlerts(ctx context.Context, since time.Time, includeClass0 bool, limit int) ([]alert.Alert, error)
	ListIncidents(ctx context.Context) ([]incident.Incident, error)
	ListRunRecords(ctx context.Context, operatorID string) ([]provenance.RunRecord, error)
}

// Brief is one deterministic read-out. Same store state and window, same
// brief.
type Brief struct {
	GeneratedAtUTC time.Time              `json:"generated_at_utc"`
	Window         string                 `json:"window"`
	Alerts         []alert.Alert          `json:"alerts"`
	Incidents      []incident.Incident    `json:"incidents"`
	RunRecords     []provenance.RunRecord `json:"run_records"`
}

var windowRE = regexp.MustCompile(`^(\d+)([hd])$`)

// ParseWindow parses trailing-window shorthand: "24h", "72h", "7d".
func ParseWindow(s string) (time.Duration, error) {
	m := windowRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return 0, fmt.Errorf("bad window %q: want <n>h or <n>d", s)
	}
	n, err := strconv.Atoi(m[1])
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("bad window %q: count must be positive", s)
	}
	switch m[2] {
	case "h":
		return time.Duration(n) * time.Hour, nil
	default:
		return time.Duration(n) * 24 * time.Hour, nil
	}
}

// Query builds a brief over the trailing window anchored at now. Ordering
// is total: the store sorts alerts by classification, impact, update
// count, recency, then alert id; incidents and records come back by id.
func Query(ctx context.Context, src Source, now time.Time, window time.Duration, includeClass0 bool, limit int) (Brief, error) {
	now = now.UTC()
	alerts, err := src.ListAlerts(ctx, now.Add(-window), includeClass0, limit)
	if err != nil {
		return Brief{}, fmt.Errorf("brief: %w", err)
	}
	incidents, err := src.ListIncidents(ctx)
	if err != nil {
		return Brief{}, fmt.Errorf("brief: %w", err)
	}
	records, err := src.ListRunRecords(ctx, "")
	if err != nil {
		return Brief{}, fmt.Errorf("brief: %w", err)
	}
	return Brief{
		GeneratedAtUTC: now,
		Window:         formatWindow(window),
		Alerts:         alerts,
		Incidents:      incidents,
		RunRecords:     records,
	}, nil
}

func formatWindow(w time.Duration) string {
	if w%(24*time.Hour) == 0 {
		return fmt.Sprintf("%dd", int(w/(24*time.Hour)))
	}
	return fmt.Sprintf("%dh", int(w/time.Hour))
}

var classLabels = map[int]string{
	alert.ClassInteresting: "INTERESTING",
	alert.ClassRelevant:    "RELEVANT",
	alert.ClassImpactful:   "IMPACTFUL",
}

// RenderText writes the plain-text brief. Output is deterministic and
// stable enough to diff between runs.
func (b Brief) RenderText(sb *strings.Builder) {
	fmt.Fprintf(sb, "DAILY BRIEF  window=%s  generated=%s\n", b.Window, b.GeneratedAtUTC.Format(time.RFC3339))
	fmt.Fprintf(sb, "alerts=%d incidents=%d runs=%d\n", len(b.Alerts), len(b.Incidents), len(b.RunRecords))

	if len(b.Alerts) > 0 {
		sb.WriteString("\nALERTS\n")
		for _, a := range b.Alerts {
			fmt.Fprintf(sb, "  [%s] %.1f %s %s x%d\n",
				classLabels[a.Classification], a.ImpactScore, a.AlertID, a.CorrelationKey, a.UpdateCount)
			fmt.Fprintf(sb, "      %s\n", a.Summary)
		}
	}

	if len(b.Incidents) > 0 {
		sb.WriteString("\nINCIDENTS\n")
		for _, inc := range b.Incidents {
			fmt.Fprintf(sb, "  %s alerts=%s via=%s\n",
				inc.IncidentID, strings.Join(inc.AlertIDs, ","), strings.Join(inc.MergeSummary, ","))
		}
	}
}
