package cli

import (
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/WhatsYourWhy/Hardstop/internal/brief"
)

// NewBriefCommand creates the brief command.
func NewBriefCommand(opts *RootOptions) *cobra.Command {
	var (
		window string
		all    bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "brief",
		Short: "Print the operational brief for the trailing window",
		Long: "Brief lists the window's standing alerts in priority order, plus\n" +
			"incidents and run records. Class-0 alerts are hidden unless --all.",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBrief(cmd, opts, window, all, limit)
		},
	}
	cmd.Flags().StringVar(&window, "window", "7d", "trailing window (e.g. 24h, 72h, 7d)")
	cmd.Flags().BoolVar(&all, "all", false, "include class-0 (interesting) alerts")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum alerts to show (0 = no limit)")
	return cmd
}

func runBrief(cmd *cobra.Command, opts *RootOptions, window string, all bool, limit int) error {
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

	var sb strings.Builder
	b.RenderText(&sb)
	return formatter.Text(sb.String(), b)
}
