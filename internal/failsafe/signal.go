// File: internal/failsafe/signal.go
package failsafe

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"
)

// SignalSource fires on delivery of any of its OS signals, e.g. `kill -USR1 <pid>`
// from a window-manager keybinding.
type SignalSource struct {
	signals []os.Signal
	once    sync.Once
	ch      chan os.Signal
}

// NewSignalSource resolves signal names such as "SIGUSR1" or "usr1".
func NewSignalSource(names []string) (*SignalSource, error) {
	var sigs []os.Signal
	for _, n := range names {
		key := strings.ToUpper(strings.TrimSpace(n))
		if !strings.HasPrefix(key, "SIG") {
			key = "SIG" + key
		}
		sig, ok := signalsByName[key]
		if !ok {
			return nil, fmt.Errorf("failsafe: unsupported signal %q", n)
		}
		sigs = append(sigs, sig)
	}
	return &SignalSource{signals: sigs}, nil
}

func (s *SignalSource) Name() string { return "signal" }

// Register installs the handler without waiting for Listen. Until then the
// signals keep their default action, which for SIGUSR1 is to terminate.
// A signal caught before Listen starts is delivered once it does.
func (s *SignalSource) Register() {
	s.once.Do(func() {
		s.ch = make(chan os.Signal, 1)
		if len(s.signals) > 0 {
			signal.Notify(s.ch, s.signals...)
		}
	})
}

func (s *SignalSource) Listen(ctx context.Context, fire func(Trigger)) error {
	if len(s.signals) == 0 {
		<-ctx.Done()
		return nil
	}
	s.Register()
	defer signal.Stop(s.ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case sig := <-s.ch:
			fire(Trigger{Source: s.Name(), Detail: sig.String(), At: time.Now()})
		}
	}
}
