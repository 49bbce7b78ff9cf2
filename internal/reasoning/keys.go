// internal/reasoning/keys.go
package reasoning

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var modifierAliases = map[string]string{
	"ctrl":    "ctrl",
	"control": "ctrl",
	"alt":     "alt",
	"option":  "alt",
	"shift":   "shift",
	"super":   "super",
	"win":     "super",
	"meta":    "super",
	"cmd":     "super",
}

var namedKeyAliases = map[string]string{
	"enter":     "enter",
	"return":    "enter",
	"tab":       "tab",
	"escape":    "escape",
	"esc":       "escape",
	"backspace": "backspace",
	"delete":    "delete",
	"del":       "delete",
	"insert":    "insert",
	"space":     "space",
	"up":        "up",
	"down":      "down",
	"left":      "left",
	"right":     "right",
	"home":      "home",
	"end":       "end",
	"pageup":    "pageup",
	"page_up":   "pageup",
	"pagedown":  "pagedown",
	"page_down": "pagedown",
	"menu":      "menu",
	"print":     "print",
}

func init() {
	for i := 1; i <= 12; i++ {
		k := fmt.Sprintf("f%d", i)
		namedKeyAliases[k] = k
	}
}

// NormalizeKey canonicalizes a key or key combination such as "Control+Shift+T"
// into "ctrl+shift+t". It fails for anything outside the key vocabulary.
func NormalizeKey(raw string) (string, error) {
	raw = strings.ToLower(strings.TrimSpace(raw))
	if raw == "" {
		return "", fmt.Errorf("empty key")
	}
	// A lone "+" is the plus key, not a separator.
	if raw == "+" {
		return raw, nil
	}

	parts := strings.Split(raw, "+")
	mods := parts[:len(parts)-1]
	base := strings.TrimSpace(parts[len(parts)-1])

	out := make([]string, 0, len(parts))
	seen := map[string]bool{}
	for _, m := range mods {
		canon, ok := modifierAliases[strings.TrimSpace(m)]
		if !ok {
			return "", fmt.Errorf("unknown modifier %q in %q", m, raw)
		}
		if !seen[canon] {
			seen[canon] = true
			out = append(out, canon)
		}
	}

	switch {
	case base == "":
		return "", fmt.Errorf("missing key in %q", raw)
	case namedKeyAliases[base] != "":
		out = append(out, namedKeyAliases[base])
	case modifierAliases[base] != "" && len(mods) == 0:
		// A bare modifier press, e.g. "super" to open a launcher.
		out = append(out, modifierAliases[base])
	case utf8.RuneCountInString(base) == 1:
		out = append(out, base)
	default:
		return "", fmt.Errorf("unknown key %q", base)
	}
	return strings.Join(out, "+"), nil
}

// isHotkey reports whether a normalized combination holds a modifier that can
// trigger system-level shortcuts.
func isHotkey(normalized string) bool {
	parts := strings.Split(normalized, "+")
	if len(parts) < 2 {
		return false
	}
	for _, p := range parts[:len(parts)-1] {
		if p == "ctrl" || p == "alt" || p == "super" {
			return true
		}
	}
	return false
}
