package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/WhatsYourWhy/Hardstop/internal/event"
)

// rawItemDoc is the on-disk JSON layout for one raw item.
type rawItemDoc struct {
	SourceID       string         `json:"source_id"`
	RawID          string         `json:"raw_id"`
	EventID        string         `json:"event_id"`
	CanonicalID    string         `json:"canonical_id"`
	Title          string         `json:"title"`
	URL            string         `json:"url"`
	PublishedAtUTC string         `json:"published_at_utc"`
	Payload        map[string]any `json:"payload"`
}

// ingestItemOutput is the per-item line of the ingest report.
type ingestItemOutput struct {
	RawID          string   `json:"raw_id"`
	EventID        string   `json:"event_id,omitempty"`
	AlertID        string   `json:"alert_id,omitempty"`
	Action         string   `json:"action,omitempty"`
	Classification int      `json:"classification"`
	ImpactScore    float64  `json:"impact_score"`
	Degraded       bool     `json:"degraded,omitempty"`
	Diagnostics    []string `json:"diagnostics,omitempty"`
	Error          string   `json:"error,omitempty"`
}

// ingestOutput is the full ingest report.
type ingestOutput struct {
	Items     []ingestItemOutput `json:"items"`
	Created   int                `json:"created"`
	Updated   int                `json:"updated"`
	Degraded  int                `json:"degraded"`
	Failed    int                `json:"failed"`
	Incidents int                `json:"incidents,omitempty"`
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(opts *RootOptions) *cobra.Command {
	var mergeIncidents bool

	cmd := &cobra.Command{
		Use:   "ingest <items.json>",
		Short: "Run raw items through the decision core",
		Long: "Ingest canonicalizes, links, scores, and correlates a JSON array of\n" +
			"raw items into the standing alert set. Every stage writes a run record.\n" +
			"A failed item does not stop the batch; the exit code reports it.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, opts, args[0], mergeIncidents)
		},
	}
	cmd.Flags().BoolVar(&mergeIncidents, "merge-incidents", false, "run the incident merge pass after the batch")
	return cmd
}

func runIngest(cmd *cobra.Command, opts *RootOptions, path string, mergeIncidents bool) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		formatter.Error(ErrCodeBadInput, fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "read items file", err)
	}

	var docs []rawItemDoc
	if err := json.Unmarshal(data, &docs); err != nil {
		formatter.Error(ErrCodeBadInput, fmt.Sprintf("malformed items file %s", path), err.Error())
		return WrapExitError(ExitCommandError, "parse items file", err)
	}

	env, err := openEnv(opts)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer env.Close()

	items := make([]event.RawItemCandidate, 0, len(docs))
	for _, d := range docs {
		items = append(items, event.RawItemCandidate{
			SourceID:       d.SourceID,
			RawID:          d.RawID,
			EventID:        d.EventID,
			CanonicalID:    d.CanonicalID,
			Title:          d.Title,
			URL:            d.URL,
			PublishedAtUTC: d.PublishedAtUTC,
			Payload:        d.Payload,
		})
	}

	p := env.pipeline()
	results := p.ProcessBatch(cmd.Context(), items)

	out := ingestOutput{Items: make([]ingestItemOutput, 0, len(results))}
	for _, r := range results {
		line := ingestItemOutput{
			RawID:       r.RawID,
			EventID:     r.EventID,
			Degraded:    r.Degraded,
			Diagnostics: r.Diagnostics,
		}
		switch {
		case r.Err != nil:
			line.Error = r.Err.Error()
			out.Failed++
		case r.Alert != nil:
			line.AlertID = r.Alert.AlertID
			line.Action = r.Alert.CorrelationAction
			line.Classification = r.Alert.Classification
			line.ImpactScore = r.Alert.ImpactScore
			if r.Created {
				out.Created++
			} else {
				out.Updated++
			}
		}
		if r.Degraded {
			out.Degraded++
		}
		out.Items = append(out.Items, line)
	}

	if mergeIncidents {
		incidents, err := p.MergeIncidents(cmd.Context())
		if err != nil {
			formatter.Error(ErrCodeStore, "incident merge failed", err.Error())
			return WrapExitError(ExitFailure, "merge incidents", err)
		}
		out.Incidents = len(incidents)
	}

	if err := formatter.Text(renderIngestText(out), out); err != nil {
		return err
	}
	if out.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d items failed", out.Failed, len(results)))
	}
	return nil
}

func renderIngestText(out ingestOutput) string {
	var sb strings.Builder
	for _, it := range out.Items {
		if it.Error != "" {
			fmt.Fprintf(&sb, "FAILED  %s: %s\n", it.RawID, it.Error)
			continue
		}
		fmt.Fprintf(&sb, "%-7s %s -> %s class=%d score=%.1f\n",
			it.Action, it.RawID, it.AlertID, it.Classification, it.ImpactScore)
		for _, d := range it.Diagnostics {
			fmt.Fprintf(&sb, "        note: %s\n", d)
		}
	}
	fmt.Fprintf(&sb, "created=%d updated=%d degraded=%d failed=%d\n",
		out.Created, out.Updated, out.Degraded, out.Failed)
	if out.Incidents > 0 {
		fmt.Fprintf(&sb, "incidents=%d\n", out.Incidents)
	}
	return sb.String()
}
