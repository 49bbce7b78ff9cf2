// internal/reasoning/validate.go
package reasoning

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// planResponse is the JSON shape the model is asked to produce. A bare
// {"action":"done"} is accepted in place of a steps list.
type planResponse struct {
	Steps     []rawStep `json:"steps"`
	Rationale string    `json:"rationale"`
	Action    string    `json:"action"`
	Reason    string    `json:"reason"`
}

type rawStep struct {
	Action     string   `json:"action"`
	Element    string   `json:"element"`
	X          *float64 `json:"x"`
	Y          *float64 `json:"y"`
	Button     string   `json:"button"`
	Text       string   `json:"text"`
	Key        string   `json:"key"`
	DX         int      `json:"dx"`
	DY         int      `json:"dy"`
	DurationMs int      `json:"duration_ms"`
	Reason     string   `json:"reason"`
}

// defaultGiveUpReason keeps a reason-less give_up from reading as success.
const defaultGiveUpReason = "model gave up without a reason"

var actionAliases = map[string]schemas.ActionKind{
	"move_to":    schemas.ActionMoveTo,
	"move":       schemas.ActionMoveTo,
	"mouse_move": schemas.ActionMoveTo,
	"hover":      schemas.ActionMoveTo,
	"click":      schemas.ActionClick,
	"type_text":  schemas.ActionTypeText,
	"type":       schemas.ActionTypeText,
	"key_press":  schemas.ActionKeyPress,
	"key":        schemas.ActionKeyPress,
	"press":      schemas.ActionKeyPress,
	"hotkey":     schemas.ActionKeyPress,
	"scroll":     schemas.ActionScroll,
	"wait":       schemas.ActionWait,
	"give_up":    schemas.ActionGiveUp,
	"giveup":     schemas.ActionGiveUp,
	"fail":       schemas.ActionGiveUp,
}

var doneAliases = map[string]bool{"done": true, "finish": true, "complete": true, "completed": true}

// Validator turns a parsed model response into an ActionPlan that is safe to
// execute against one specific snapshot.
type Validator struct {
	margin  float64
	maxWait time.Duration
	allowed map[string]bool
	unsafe  bool
}

// NewValidator builds a Validator from the engine options.
func NewValidator(opts Options) *Validator {
	allowed := make(map[string]bool, len(opts.AllowedHotkeys))
	for _, k := range opts.AllowedHotkeys {
		if n, err := NormalizeKey(k); err == nil {
			allowed[n] = true
		}
	}
	return &Validator{
		margin:  opts.TargetMargin,
		maxWait: opts.MaxWait,
		allowed: allowed,
		unsafe:  opts.UnsafeMode,
	}
}

// Build validates resp against snap. Errors wrap ErrInvalidPlan or ErrHallucinatedTarget.
func (v *Validator) Build(resp *planResponse, snap schemas.SceneSnapshot) (schemas.ActionPlan, error) {
	raws := resp.Steps
	if len(raws) == 0 && resp.Action != "" {
		raws = []rawStep{{Action: resp.Action, Reason: resp.Reason}}
	}
	if len(raws) == 0 {
		return schemas.ActionPlan{}, fmt.Errorf("%w: plan has no steps", ErrInvalidPlan)
	}

	steps := make([]schemas.ActionStep, 0, len(raws))
	for i, raw := range raws {
		converted, err := v.convert(i, raw, snap)
		if err != nil {
			return schemas.ActionPlan{}, err
		}
		steps = append(steps, converted...)
	}

	for i, s := range steps {
		if s.Kind == schemas.ActionGiveUp && len(steps) > 1 {
			return schemas.ActionPlan{}, stepError(i, ErrInvalidPlan, "done/give_up must be the only step in a plan")
		}
	}
	return schemas.ActionPlan{Steps: steps, Rationale: strings.TrimSpace(resp.Rationale)}, nil
}

// convert maps one raw step onto one or more ActionSteps. A click that names
// a target expands into MoveTo followed by Click.
func (v *Validator) convert(i int, raw rawStep, snap schemas.SceneSnapshot) ([]schemas.ActionStep, error) {
	name := strings.ToLower(strings.TrimSpace(raw.Action))
	if doneAliases[name] {
		return []schemas.ActionStep{schemas.GiveUp("")}, nil
	}
	kind, ok := actionAliases[name]
	if !ok {
		return nil, stepError(i, ErrInvalidPlan, "unknown action %q", raw.Action)
	}

	switch kind {
	case schemas.ActionGiveUp:
		reason := strings.TrimSpace(raw.Reason)
		if reason == "" {
			reason = defaultGiveUpReason
		}
		return []schemas.ActionStep{schemas.GiveUp(reason)}, nil

	case schemas.ActionMoveTo:
		move, err := v.target(i, raw, snap)
		if err != nil {
			return nil, err
		}
		if move == nil {
			return nil, stepError(i, ErrInvalidPlan, "move_to needs x and y or an element id")
		}
		return []schemas.ActionStep{*move}, nil

	case schemas.ActionClick:
		button := schemas.MouseButton(strings.ToLower(strings.TrimSpace(raw.Button)))
		switch button {
		case "":
			button = schemas.ButtonLeft
		case schemas.ButtonLeft, schemas.ButtonRight, schemas.ButtonMiddle:
		default:
			return nil, stepError(i, ErrInvalidPlan, "unknown mouse button %q", raw.Button)
		}
		move, err := v.target(i, raw, snap)
		if err != nil {
			return nil, err
		}
		if move != nil {
			return []schemas.ActionStep{*move, schemas.Click(button)}, nil
		}
		return []schemas.ActionStep{schemas.Click(button)}, nil

	case schemas.ActionTypeText:
		if raw.Text == "" {
			return nil, stepError(i, ErrInvalidPlan, "type_text needs non-empty text")
		}
		return []schemas.ActionStep{schemas.TypeText(raw.Text)}, nil

	case schemas.ActionKeyPress:
		key, err := NormalizeKey(raw.Key)
		if err != nil {
			return nil, stepError(i, ErrInvalidPlan, "%v", err)
		}
		if isHotkey(key) && !v.unsafe && !v.allowed[key] {
			return nil, stepError(i, ErrInvalidPlan, "hotkey %q is not on the allow-list", key)
		}
		return []schemas.ActionStep{schemas.KeyPress(key)}, nil

	case schemas.ActionScroll:
		if raw.DX == 0 && raw.DY == 0 {
			return nil, stepError(i, ErrInvalidPlan, "scroll needs a non-zero dx or dy")
		}
		return []schemas.ActionStep{schemas.Scroll(raw.DX, raw.DY)}, nil

	case schemas.ActionWait:
		if raw.DurationMs <= 0 {
			return nil, stepError(i, ErrInvalidPlan, "wait needs a positive duration_ms")
		}
		if v.maxWait > 0 && time.Duration(raw.DurationMs)*time.Millisecond > v.maxWait {
			return nil, stepError(i, ErrInvalidPlan, "wait of %dms exceeds the %s maximum", raw.DurationMs, v.maxWait)
		}
		return []schemas.ActionStep{schemas.Wait(raw.DurationMs)}, nil
	}
	return nil, stepError(i, ErrInvalidPlan, "unsupported action %q", raw.Action)
}

// target resolves the pointer destination of a step. It returns nil when the
// step names none.
func (v *Validator) target(i int, raw rawStep, snap schemas.SceneSnapshot) (*schemas.ActionStep, error) {
	if id := strings.TrimSpace(raw.Element); id != "" {
		idx, err := parseElementID(id)
		if err != nil || idx >= len(snap.Elements) {
			return nil, stepError(i, ErrHallucinatedTarget, "no element %q on screen", id)
		}
		x, y := snap.Elements[idx].Box.Center()
		step := schemas.MoveTo(x, y)
		return &step, nil
	}
	if raw.X == nil && raw.Y == nil {
		return nil, nil
	}
	if raw.X == nil || raw.Y == nil {
		return nil, stepError(i, ErrInvalidPlan, "coordinates need both x and y")
	}
	x, y := *raw.X, *raw.Y
	if x < 0 || x > 1 || y < 0 || y > 1 {
		return nil, stepError(i, ErrInvalidPlan, "coordinates (%.3f, %.3f) are outside the normalized range [0,1]", x, y)
	}
	for _, el := range snap.Elements {
		if el.Box.Contains(x, y, v.margin) {
			step := schemas.MoveTo(x, y)
			return &step, nil
		}
	}
	return nil, stepError(i, ErrHallucinatedTarget, "(%.3f, %.3f) does not fall on any listed element", x, y)
}

func parseElementID(id string) (int, error) {
	id = strings.TrimPrefix(strings.ToLower(id), "e")
	n, err := strconv.Atoi(id)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("bad element id %q", id)
	}
	return n, nil
}
