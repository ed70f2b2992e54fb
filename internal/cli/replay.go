package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/WhatsYourWhy/Hardstop/internal/pipeline"
	"github.com/WhatsYourWhy/Hardstop/internal/provenance"
)

// NewReplayCommand creates the replay command.
func NewReplayCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <run-id>",
		Short: "Re-verify a recorded correlate run against current store state",
		Long: "Replay loads a correlate run record, recomputes the alert artifact\n" +
			"from the alert as currently stored, and compares hashes. Only the\n" +
			"newest record for an alert verifies clean; older records report the\n" +
			"updates that landed since as an integrity mismatch. Config drift is\n" +
			"a warning in best-effort mode and fatal in strict mode.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, opts, args[0])
		},
	}
	return cmd
}

func runReplay(cmd *cobra.Command, opts *RootOptions, runID string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	env, err := openEnv(opts)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer env.Close()

	ctx := cmd.Context()
	original, err := env.store.GetRunRecord(ctx, runID)
	if err != nil {
		formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "load run record", err)
	}
	if original.OperatorID != pipeline.OpCorrelate {
		msg := fmt.Sprintf("run %s is a %s record; only %s runs are replayable",
			runID, original.OperatorID, pipeline.OpCorrelate)
		formatter.Error(ErrCodeBadInput, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	op := func(ctx context.Context, _ []provenance.ArtifactRef) ([]provenance.ArtifactRef, error) {
		outputs := make([]provenance.ArtifactRef, 0, len(original.OutputRefs))
		for _, ref := range original.OutputRefs {
			a, err := env.store.GetAlert(ctx, ref.ID)
			if err != nil {
				return nil, fmt.Errorf("load alert %s: %w", ref.ID, err)
			}
			out, err := pipeline.AlertArtifact(*a)
			if err != nil {
				return nil, fmt.Errorf("hash alert %s: %w", ref.ID, err)
			}
			outputs = append(outputs, out)
		}
		return outputs, nil
	}

	replayed, err := env.ledger.Replay(ctx, *original, op)
	if err != nil {
		var drift *provenance.ConfigDriftWarning
		if errors.As(err, &drift) {
			if env.ledger.Strict() {
				formatter.Error(ErrCodeDrift, "config drift", err.Error())
				return WrapExitError(ExitFailure, "replay", err)
			}
			// Best-effort: drift is a warning; the DEGRADED record is already
			// committed.
			formatter.VerboseLog("config drift: %v", drift)
			return formatter.Text(
				fmt.Sprintf("replay %s: DEGRADED (config drift %s -> %s)\n",
					runID, drift.OriginalHash, drift.ReplayedHash),
				map[string]any{
					"run_id":        runID,
					"replay_run_id": replayed.RunID,
					"status":        replayed.Status,
					"drift":         drift.Error(),
				},
			)
		}
		var integ *provenance.IntegrityError
		if errors.As(err, &integ) {
			formatter.Error(ErrCodeIntegrity, "replay hash mismatch", integ.Error())
			return WrapExitError(ExitFailure, "replay", err)
		}
		formatter.Error(ErrCodeGeneric, "replay failed", err.Error())
		return WrapExitError(ExitFailure, "replay", err)
	}

	return formatter.Text(
		fmt.Sprintf("replay %s: OK (replay record %s)\n", runID, replayed.RunID),
		map[string]any{
			"run_id":        runID,
			"replay_run_id": replayed.RunID,
			"status":        replayed.Status,
		},
	)
}
