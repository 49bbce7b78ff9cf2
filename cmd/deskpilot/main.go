// File: cmd/deskpilot/main.go
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/deskpilot/cmd"
	"github.com/xkilldash9x/deskpilot/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  deskpilot %s
  Type a subcommand (e.g. run "open the settings menu"), or exit to quit.
  Abort a running session with SIGUSR1 or 'deskpilot abort' from another terminal.

`

var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		if err := cmd.Execute(ctx); err != nil && !errors.Is(err, context.Canceled) {
			osExit(1)
		}
		return
	}

	shellCtx, stopFailsafe := startFailsafe(ctx, os.Stderr)
	defer stopFailsafe()

	if err := interactive(shellCtx, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
}

// startFailsafe brings the abort monitor up before the first prompt, so its
// signals are handled for the whole shell session and not only while a command
// runs. If the configuration cannot be read yet, the first `run` starts it.
func startFailsafe(ctx context.Context, errOut io.Writer) (context.Context, func()) {
	fs := cmd.NewFailsafe()
	cfg, err := cmd.LoadConfig("")
	if err != nil {
		fmt.Fprintln(errOut, "Warning: failsafe not started:", err)
		return cmd.WithFailsafe(ctx, fs), fs.Stop
	}
	observability.InitializeLogger(cfg.Logger)
	if _, err := fs.Start(ctx, cfg.Failsafe, observability.GetLogger()); err != nil {
		fmt.Fprintln(errOut, "Warning: failsafe not started:", err)
	}
	return cmd.WithFailsafe(ctx, fs), fs.Stop
}

// interactive reads one command line at a time until EOF, exit, or shutdown.
func interactive(ctx context.Context, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, banner, cmd.Version)
	scanner := bufio.NewScanner(in)
	for ctx.Err() == nil {
		fmt.Fprint(out, "deskpilot > ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		executeInteractiveCommand(ctx, line, out)
	}
	fmt.Fprintln(out, "Exiting deskpilot.")
	return scanner.Err()
}

// executeInteractiveCommand runs one line on a fresh command tree. Errors and
// panics are reported without leaving the shell.
func executeInteractiveCommand(ctx context.Context, line string, out io.Writer) {
	args, err := splitArgs(line)
	if err != nil {
		fmt.Fprintln(out, "Error:", err)
		return
	}

	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(out)
	rootCmd.SetErr(out)

	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(out, "Error: command panicked: %v\n", r)
		}
	}()
	if err := rootCmd.ExecuteContext(ctx); err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(out, "Error:", err)
	}
}

// splitArgs splits a line on whitespace, keeping double-quoted runs together
// so `run "open the file menu"` is a single argument.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		inQuote bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			inQuote = !inQuote
			started = true
		case (r == ' ' || r == '\t') && !inQuote:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if inQuote {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}

// handlePanic writes the crash to panic.log so it survives a closed terminal.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	msg := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(msg), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", msg)
		osExit(2)
		return
	}
	fmt.Fprintf(os.Stderr, "\nCRASH DETECTED. Details logged to %s\n", panicLogFile)
	osExit(2)
}
