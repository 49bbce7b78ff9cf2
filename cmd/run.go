// File: cmd/run.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/agent"
	"github.com/xkilldash9x/deskpilot/internal/config"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type runOptions struct {
	dryRun    bool
	noStore   bool
	maxCycles int
	jsonOut   bool
}

func newRunCommand() *cobra.Command {
	var opts runOptions
	runCmd := &cobra.Command{
		Use:   "run <command>",
		Short: "Carry out a natural-language command on the desktop",
		Long: `Runs one session: the screen is captured and read, the model plans the
next steps, and the steps are performed with human-like input until the task
is done, the model gives up, or an abort is requested.

Abort a running session with SIGUSR1, or with 'deskpilot abort' from another terminal.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			opts.apply(cfg)
			return runSession(cmd.Context(), cfg, strings.Join(args, " "), cmd.OutOrStdout(), opts.jsonOut)
		},
	}
	runCmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log input events instead of injecting them")
	runCmd.Flags().BoolVar(&opts.noStore, "no-store", false, "do not record the session in the history database")
	runCmd.Flags().IntVar(&opts.maxCycles, "max-cycles", 0, "override loop.cycle_ceiling")
	runCmd.Flags().BoolVar(&opts.jsonOut, "json", false, "print the session result as JSON")
	return runCmd
}

func (o runOptions) apply(cfg *config.Config) {
	if o.dryRun {
		cfg.Input.Backend = config.InputDryRun
	}
	if o.noStore {
		cfg.Store.Enabled = false
	}
	if o.maxCycles > 0 {
		cfg.Loop.CycleCeiling = o.maxCycles
	}
}

func runSession(ctx context.Context, cfg *config.Config, text string, out io.Writer, jsonOut bool) error {
	logger := observability.GetLogger()

	// The shell and Execute share one monitor across commands. Anything else
	// gets one for the length of this session.
	fs := FailsafeFrom(ctx)
	if fs == nil {
		fs = NewFailsafe()
		defer fs.Stop()
	}
	monitor, err := fs.Start(ctx, cfg.Failsafe, logger)
	if err != nil {
		return fmt.Errorf("failed to start failsafe: %w", err)
	}

	comps, err := initializeComponents(ctx, cfg, monitor, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize components: %w", err)
	}
	defer comps.Shutdown()

	command := schemas.Command{ID: uuid.NewString(), Text: text}
	logger.Info("Running command.", zap.String("command_id", command.ID), zap.String("text", text))

	res, runErr := comps.Controller.Run(ctx, command)
	if res != nil {
		if err := printResult(out, res, jsonOut); err != nil {
			return err
		}
	}
	return runErr
}

func printResult(w io.Writer, res *agent.Result, jsonOut bool) error {
	if jsonOut {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	fmt.Fprintf(w, "Session %s %s after %d cycle(s)", res.SessionID, res.Outcome, res.Cycles)
	if res.Reason != "" {
		fmt.Fprintf(w, ": %s", res.Reason)
	}
	fmt.Fprintf(w, " (%s)\n", res.EndedAt.Sub(res.StartedAt).Round(time.Millisecond))
	for _, rec := range res.History {
		status := "ok"
		if !rec.Success {
			status = "failed: " + rec.Error
		}
		fmt.Fprintf(w, "  [%d] %-40s %s\n", rec.Cycle, rec.Step, status)
	}
	return nil
}
