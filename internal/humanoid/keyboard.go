// internal/humanoid/keyboard.go
package humanoid

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode"
)

// keyboardNeighbors maps characters to their adjacent keys on a QWERTY layout.
var keyboardNeighbors = map[rune]string{
	'1': "2q`", '2': "13wq", '3': "24we", '4': "35er", '5': "46rt", '6': "57ty",
	'7': "68yu", '8': "79ui", '9': "80io", '0': "9-op",
	'q': "wa1s", 'w': "qase23", 'e': "wsdr34", 'r': "edft45", 't': "rfgy56",
	'y': "tghu67", 'u': "yhji78", 'i': "ujko89", 'o': "iklp90", 'p': "ol;0-",
	'a': "qwsz", 's': "awedxz", 'd': "serfcx", 'f': "drtgvc", 'g': "ftyhbv",
	'h': "gyujnb", 'j': "huikmn", 'k': "jiol,m", 'l': "kop;.",
	'z': "asx", 'x': "zsdc", 'c': "xdfv", 'v': "cfgb", 'b': "vghn", 'n': "bhjm", 'm': "njk,",
}

// commonNgrams are typed in a faster, rhythmic burst.
var commonNgrams = map[string]bool{
	"th": true, "he": true, "in": true, "er": true, "an": true, "re": true,
	"es": true, "on": true, "st": true, "nt": true,
	"the": true, "and": true, "ing": true, "ion": true, "tio": true,
}

// Type enters text character by character. Inter-key delays follow a clamped
// Gaussian whose mean drifts with pink noise; spaces get a word pause and a
// word start occasionally gets a longer hesitation.
func (h *Humanoid) Type(ctx context.Context, text string) error {
	h.updateFatigue(float64(len(text)) * 0.05)

	runes := []rune(text)
	for i, r := range runes {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := h.pause(ctx, h.keyDelay(runes, i)); err != nil {
			return err
		}
		if i == 0 || unicode.IsSpace(runes[i-1]) {
			if err := h.maybeHesitate(ctx); err != nil {
				return err
			}
		}
		if err := h.typeRune(ctx, r); err != nil {
			return fmt.Errorf("humanoid: failed to type %q: %w", r, err)
		}
	}
	return nil
}

// typeRune sends one character, sometimes hitting a neighbouring key first
// and correcting it with backspace.
func (h *Humanoid) typeRune(ctx context.Context, r rune) error {
	h.mu.Lock()
	typo := h.dynamicConfig.TypoRate > 0 && h.rng.Float64() < h.dynamicConfig.TypoRate
	var wrong rune
	if typo {
		neighbors := keyboardNeighbors[unicode.ToLower(r)]
		if neighbors == "" {
			typo = false
		} else {
			wrong = rune(neighbors[h.rng.Intn(len(neighbors))])
			if unicode.IsUpper(r) {
				wrong = unicode.ToUpper(wrong)
			}
		}
	}
	cfg := h.dynamicConfig
	h.mu.Unlock()

	if typo {
		if err := h.executor.TypeChar(ctx, wrong); err != nil {
			return err
		}
		// Noticing the mistake takes longer than a normal keystroke.
		if err := h.pause(ctx, msDuration(cfg.KeyDelayMeanMs*2.5)); err != nil {
			return err
		}
		if err := h.executor.SendKey(ctx, KeyBackspace); err != nil {
			return err
		}
		if err := h.pause(ctx, msDuration(cfg.KeyDelayMeanMs*1.2)); err != nil {
			return err
		}
	}
	return h.executor.TypeChar(ctx, r)
}

// keyDelay computes the inter-key delay before runes[i].
func (h *Humanoid) keyDelay(runes []rune, i int) time.Duration {
	h.mu.Lock()
	cfg := h.dynamicConfig
	norm := h.rng.NormFloat64()
	pink := h.pink.Next()
	h.mu.Unlock()

	if i == 0 {
		return 0
	}
	if unicode.IsSpace(runes[i]) || unicode.IsSpace(runes[i-1]) {
		return msDuration(cfg.WordPauseMeanMs * (1 + 0.3*norm))
	}

	mean := cfg.KeyDelayMeanMs * (1 + 0.25*pink)
	if inNgram(runes, i) {
		mean *= cfg.NgramSpeedup
	}
	delay := mean + norm*cfg.KeyDelayStdDevMs
	delay = math.Max(cfg.KeyDelayMinMs, math.Min(cfg.KeyDelayMaxMs, delay))
	return msDuration(delay)
}

// inNgram reports whether runes[i] completes a common digraph or trigraph.
func inNgram(runes []rune, i int) bool {
	if i >= 2 && commonNgrams[strings.ToLower(string(runes[i-2:i+1]))] {
		return true
	}
	return i >= 1 && commonNgrams[strings.ToLower(string(runes[i-1:i+1]))]
}

// maybeHesitate occasionally pauses before a word, as if recalling what comes next.
func (h *Humanoid) maybeHesitate(ctx context.Context) error {
	h.mu.Lock()
	cfg := h.dynamicConfig
	hesitate := h.rng.Float64() < cfg.HesitationProbability
	h.mu.Unlock()
	if !hesitate {
		return nil
	}
	return h.pause(ctx, h.uniformMs(cfg.HesitationMinMs, cfg.HesitationMaxMs))
}
