package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/WhatsYourWhy/Hardstop/internal/brief"
)

// NewExportCommand creates the export command.
func NewExportCommand(opts *RootOptions) *cobra.Command {
	var (
		window string
		all    bool
		limit  int
		out    string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the brief as a self-verifying JSON bundle",
		Long: "Export seals the window's brief into a bundle whose manifest carries\n" +
			"the config hash, a data hash, and per-alert artifact hashes. Anyone\n" +
			"holding the bundle can verify it without database access.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd, opts, window, all, limit, out)
		},
	}
	cmd.Flags().StringVar(&window, "window", "7d", "trailing window (e.g. 24h, 72h, 7d)")
	cmd.Flags().BoolVar(&all, "all", false, "include class-0 (interesting) alerts")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum alerts to export (0 = no limit)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "write the bundle to this file instead of stdout")
	return cmd
}

func runExport(cmd *cobra.Command, opts *RootOptions, window string, all bool, limit int, out string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	w, err := brief.ParseWindow(window)
	if err != nil {
		formatter.Error(ErrCodeBadInput, err.Error(), nil)
		return WrapExitError(ExitCommandError, "parse window", err)
	}

	env, err := openEnv(opts)
	if err != nil {
		formatter.Error(ErrCodeStore, err.Error(), nil)
		return err
	}
	defer env.Close()

	b, err := brief.Query(cmd.Context(), env.store, time.Now(), w, all, limit)
	if err != nil {
		formatter.Error(ErrCodeStore, "brief query failed", err.Error())
		return WrapExitError(ExitFailure, "build brief", err)
	}

	configHash, err := env.cfg.Hash()
	if err != nil {
		formatter.Error(ErrCodeConfig, "config hash failed", err.Error())
		return WrapExitError(ExitFailure, "hash config", err)
	}

	bundle, err := brief.Export(b, configHash)
	if err != nil {
		formatter.Error(ErrCodeGeneric, "export failed", err.Error())
		return WrapExitError(ExitFailure, "export brief", err)
	}

	blob, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return WrapExitError(ExitFailure, "marshal bundle", err)
	}
	blob = append(blob, '\n')

	if out == "" {
		_, err := cmd.OutOrStdout().Write(blob)
		return err
	}
	if err := os.WriteFile(out, blob, 0o644); err != nil {
		formatter.Error(ErrCodeGeneric, fmt.Sprintf("cannot write %s", out), err.Error())
		return WrapExitError(ExitFailure, "write bundle", err)
	}
	return formatter.Text(
		fmt.Sprintf("wrote bundle %s (%d alerts, data hash %s)\n",
			out, len(b.Alerts), bundle.Manifest.ExportDataHash),
		map[string]any{
			"path":             out,
			"alerts":           len(b.Alerts),
			"export_data_hash": bundle.Manifest.ExportDataHash,
		},
	)
}
