// File: cmd/abort.go
package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/xkilldash9x/deskpilot/internal/failsafe"
)

func newAbortCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "abort [reason]",
		Short: "Stop the session running in another terminal",
		Long: `Writes the abort file watched by a running session. The session stops at
its next checkpoint; the step in flight is allowed to finish.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFrom(cmd)
			if err != nil {
				return err
			}
			detail := strings.Join(args, " ")
			if detail == "" {
				detail = fmt.Sprintf("requested by pid %d", os.Getpid())
			}
			if err := failsafe.RequestAbort(cfg.Failsafe.AbortFile, detail); err != nil {
				return fmt.Errorf("failed to request abort: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Abort requested via %s\n", cfg.Failsafe.AbortFile)
			return nil
		},
	}
}
