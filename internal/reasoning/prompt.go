// internal/reasoning/prompt.go
package reasoning

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/deskpilot/api/schemas"
	"github.com/xkilldash9x/deskpilot/internal/llmutil"
)

const systemPrompt = `You are the planner of 'deskpilot', an agent that operates a desktop computer on behalf of a user.
Each turn you receive the user's command, a list of the elements currently visible on screen and the most recent actions taken.
You respond with a single JSON object describing the next few actions. Nothing else.

Coordinates are normalized: x and y run from 0 (left/top) to 1 (right/bottom) of the screen.
You may only point at elements from the list. Either reference one by id ("element": "e3") or give x/y inside its box.

Response format:
{"rationale": "<one short sentence>", "steps": [<step>, ...]}

Available steps:
    - {"action": "move_to", "element": "e3"} or {"action": "move_to", "x": 0.42, "y": 0.17}: move the pointer.
    - {"action": "click", "button": "left"|"right"|"middle"}: click where the pointer is. Add "element" (or x/y) to move there first.
    - {"action": "type_text", "text": "hello"}: type into the focused field.
    - {"action": "key_press", "key": "enter"}: press a key or combination such as "ctrl+s".
    - {"action": "scroll", "dx": 0, "dy": -3}: scroll by wheel detents; positive dy scrolls down.
    - {"action": "wait", "duration_ms": 1000}: wait for the interface to settle.

Finishing:
    - When the command has been fully carried out, respond with {"action": "done"}.
    - When it cannot be carried out, respond with {"action": "give_up", "reason": "<why>"}.
    - "done" and "give_up" are never combined with other steps.

Guidelines:
    - If the screen shows a loading indicator, prefer a short wait.
    - If an error dialog is visible, deal with it before anything else.
    - Check the recent actions; do not repeat an action that had no visible effect.`

// buildUserPrompt renders the per-cycle context. Element ids follow the
// snapshot's element order.
func buildUserPrompt(cmd schemas.Command, snap schemas.SceneSnapshot, history []schemas.ExecutionRecord, window int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Command: %s\n\n", cmd.Text)
	fmt.Fprintf(&b, "Screen: %dx%d", snap.Resolution.Width, snap.Resolution.Height)
	if snap.Loading {
		b.WriteString(" [loading indicator visible]")
	}
	if snap.ErrorDialog {
		b.WriteString(" [error message visible]")
	}
	b.WriteString("\n\n")

	b.WriteString("Visible elements:\n")
	if len(snap.Elements) == 0 {
		b.WriteString("    (none detected)\n")
	}
	for i, el := range snap.Elements {
		cx, cy := el.Box.Center()
		fmt.Fprintf(&b, "    e%d %s %q center=(%.3f,%.3f) box=(%.3f,%.3f,%.3f,%.3f)",
			i, el.Kind, el.Label, cx, cy, el.Box.X, el.Box.Y, el.Box.W, el.Box.H)
		if len(el.Captions) > 0 {
			fmt.Fprintf(&b, " overlaps=%q", strings.Join(el.Captions, ", "))
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRecent actions:\n")
	recent := history
	if window >= 0 && len(recent) > window {
		recent = recent[len(recent)-window:]
	}
	if len(recent) == 0 {
		b.WriteString("    (none yet)\n")
	}
	for _, rec := range recent {
		status := "ok"
		if !rec.Success {
			status = "failed: " + rec.Error
		}
		fmt.Fprintf(&b, "    cycle %d: %s -> %s\n", rec.Cycle, rec.Step, status)
	}

	b.WriteString("\nDetermine the next steps. Respond with a single JSON object.")
	return b.String()
}

// buildCorrectivePrompt repeats the request with the rejected output and the
// reason it was rejected.
func buildCorrectivePrompt(base, rejected string, reason error) string {
	return fmt.Sprintf(`%s

Your previous response was rejected.
Previous response:
%s
Problem: %v
Respond again with a corrected JSON object that follows the format exactly.`, base, llmutil.Truncate(strings.TrimSpace(rejected), 1000), reason)
}
