// File: cmd/sessions.go
package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/deskpilot/internal/observability"
	"github.com/xkilldash9x/deskpilot/internal/store"
)

func newSessionsCommand() *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Inspect recorded sessions",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the most recent sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				sessions, err := st.ListSessions(ctx, limit)
				if err != nil {
					return err
				}
				return printSessionList(cmd.OutOrStdout(), sessions)
			})
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of sessions to show")

	var jsonOut bool
	showCmd := &cobra.Command{
		Use:   "show <session-id>",
		Short: "Show one session and every step it executed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				detail, err := st.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				if jsonOut {
					enc := json.NewEncoder(cmd.OutOrStdout())
					enc.SetIndent("", "  ")
					return enc.Encode(detail)
				}
				printSessionDetail(cmd.OutOrStdout(), detail)
				return nil
			})
		},
	}
	showCmd.Flags().BoolVar(&jsonOut, "json", false, "print the session as JSON")

	snapshotCmd := &cobra.Command{
		Use:   "snapshot <session-id> <cycle>",
		Short: "Print the scene the agent perceived at the start of a cycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cycle, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid cycle %q: %w", args[1], err)
			}
			return withStore(cmd, func(ctx context.Context, st *store.Store) error {
				detail, err := st.GetSession(ctx, args[0])
				if err != nil {
					return err
				}
				snap, err := st.LoadSnapshot(ctx, detail.ID, cycle)
				if err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(snap)
			})
		},
	}

	sessionsCmd.AddCommand(listCmd, showCmd, snapshotCmd)
	return sessionsCmd
}

func withStore(cmd *cobra.Command, fn func(context.Context, *store.Store) error) error {
	cfg, err := configFrom(cmd)
	if err != nil {
		return err
	}
	st, err := store.Open(cmd.Context(), cfg.Store.Path, false, observability.GetLogger())
	if err != nil {
		return err
	}
	defer st.Close()
	return fn(cmd.Context(), st)
}

// commandWidth caps the command column; longer commands wrap.
const commandWidth = 60

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleLight)
	return tw
}

func printSessionList(w io.Writer, sessions []store.SessionSummary) error {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions recorded.")
		return nil
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "Started", "Status", "Cycles", "Steps", "Command"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 4, Align: text.AlignRight},
		{Number: 5, Align: text.AlignRight},
		{Number: 6, WidthMax: commandWidth},
	})
	for _, s := range sessions {
		tw.AppendRow(table.Row{shortID(s.ID), s.StartedAt.Local().Format(time.DateTime), s.Status, s.Cycles, s.Steps, s.Command})
	}
	tw.Render()
	return nil
}

func printSessionDetail(w io.Writer, d *store.SessionDetail) {
	fmt.Fprintf(w, "Session:  %s\n", d.ID)
	fmt.Fprintf(w, "Command:  %s\n", d.Command)
	fmt.Fprintf(w, "Status:   %s\n", d.Status)
	if d.Reason != "" {
		fmt.Fprintf(w, "Reason:   %s\n", d.Reason)
	}
	fmt.Fprintf(w, "Started:  %s\n", d.StartedAt.Local().Format(time.DateTime))
	if d.EndedAt != nil {
		fmt.Fprintf(w, "Duration: %s\n", d.EndedAt.Sub(d.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Cycles:   %d\n", d.Cycles)
	if len(d.Snapshots) > 0 {
		fmt.Fprintf(w, "Snapshots at cycles: %v\n", d.Snapshots)
	}
	if len(d.Records) == 0 {
		return
	}

	tw := newTable(w)
	tw.AppendHeader(table.Row{"Cycle", "Step", "Cursor", "Result"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: commandWidth},
	})
	for _, rec := range d.Records {
		result := "ok"
		if !rec.Success {
			result = "failed: " + rec.Error
		}
		cursor := fmt.Sprintf("%d,%d", rec.CursorAfter.X, rec.CursorAfter.Y)
		tw.AppendRow(table.Row{rec.Cycle, rec.Step.String(), cursor, result})
	}
	tw.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
