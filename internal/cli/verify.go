package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/WhatsYourWhy/Hardstop/internal/brief"
)

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify <bundle.json>",
		Short: "Verify an exported bundle against its manifest",
		Long: "Verify recomputes the data hash and per-alert artifact hashes from\n" +
			"the bundle's data section and compares them to the manifest. No\n" +
			"database access is needed; a mismatch means the bundle was altered.",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(cmd, opts, args[0])
		},
	}
	return cmd
}

func runVerify(cmd *cobra.Command, opts *RootOptions, path string) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		formatter.Error(ErrCodeBadInput, fmt.Sprintf("cannot read %s", path), err.Error())
		return WrapExitError(ExitCommandError, "read bundle", err)
	}

	var bundle brief.Bundle
	if err := json.Unmarshal(data, &bundle); err != nil {
		formatter.Error(ErrCodeBadInput, fmt.Sprintf("malformed bundle %s", path), err.Error())
		return WrapExitError(ExitCommandError, "parse bundle", err)
	}

	if err := brief.Verify(bundle); err != nil {
		formatter.Error(ErrCodeIntegrity, "bundle verification failed", err.Error())
		return WrapExitError(ExitFailure, "verify bundle", err)
	}

	return formatter.Text(
		fmt.Sprintf("bundle ok: %d alerts, data hash %s\n",
			len(bundle.Brief.Alerts), bundle.Manifest.ExportDataHash),
		map[string]any{
			"alerts":           len(bundle.Brief.Alerts),
			"export_data_hash": bundle.Manifest.ExportDataHash,
			"config_hash":      bundle.Manifest.ConfigHash,
		},
	)
}
