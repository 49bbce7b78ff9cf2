// FILE: ./internal/humanoid/mocks_test.go
package humanoid

import (
	"context"
	"sync"
	"time"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

// event is one primitive call recorded by mockExecutor.
type event struct {
	Kind   string
	X, Y   int
	Button schemas.MouseButton
	Key    string
	Char   rune
}

// mockExecutor records every primitive and never really sleeps.
type mockExecutor struct {
	mu             sync.Mutex
	events         []event
	sleepDurations []time.Duration

	// failOn makes the call of that kind return err.
	failOn string
	err    error
}

func newMockExecutor() *mockExecutor { return &mockExecutor{} }

func (m *mockExecutor) record(e event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	if m.failOn == e.Kind {
		return m.err
	}
	return nil
}

func (m *mockExecutor) Sleep(ctx context.Context, d time.Duration) error {
	m.mu.Lock()
	m.sleepDurations = append(m.sleepDurations, d)
	m.mu.Unlock()
	return ctx.Err()
}

func (m *mockExecutor) MoveCursorTo(_ context.Context, x, y int) error {
	return m.record(event{Kind: "move", X: x, Y: y})
}

func (m *mockExecutor) Click(_ context.Context, b schemas.MouseButton) error {
	return m.record(event{Kind: "click", Button: b})
}

func (m *mockExecutor) SendKey(_ context.Context, key string) error {
	return m.record(event{Kind: "key", Key: key})
}

func (m *mockExecutor) TypeChar(_ context.Context, r rune) error {
	return m.record(event{Kind: "char", Char: r})
}

func (m *mockExecutor) Scroll(_ context.Context, dx, dy int) error {
	return m.record(event{Kind: "scroll", X: dx, Y: dy})
}

func (m *mockExecutor) ofKind(kind string) []event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []event
	for _, e := range m.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

func (m *mockExecutor) totalSleep() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total time.Duration
	for _, d := range m.sleepDurations {
		total += d
	}
	return total
}

// typedText replays char and backspace events into the text that ends up on screen.
func (m *mockExecutor) typedText() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []rune
	for _, e := range m.events {
		switch {
		case e.Kind == "char":
			out = append(out, e.Char)
		case e.Kind == "key" && e.Key == KeyBackspace && len(out) > 0:
			out = out[:len(out)-1]
		}
	}
	return string(out)
}
