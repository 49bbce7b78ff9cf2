// File: internal/failsafe/token.go
package failsafe

import (
	"sync"
	"time"
)

// CancellationToken is a one-shot broadcast flag. The Monitor trips it, the
// loop reads it at checkpoints. Once tripped it stays tripped.
type CancellationToken struct {
	once      sync.Once
	done      chan struct{}
	mu        sync.Mutex
	reason    string
	trippedAt time.Time
}

// NewToken returns an untripped token.
func NewToken() *CancellationToken {
	return &CancellationToken{done: make(chan struct{})}
}

// Trip marks the token as cancelled. Only the first call has any effect.
// It reports whether this call was the one that tripped the token.
func (t *CancellationToken) Trip(reason string) bool {
	tripped := false
	t.once.Do(func() {
		t.mu.Lock()
		t.reason = reason
		t.trippedAt = time.Now()
		t.mu.Unlock()
		close(t.done)
		tripped = true
	})
	return tripped
}

// Tripped reports whether the token has been tripped. It never blocks.
func (t *CancellationToken) Tripped() bool {
	select {
	case <-t.done:
		return true
	default:
		return false
	}
}

// Done returns a channel that is closed when the token trips.
func (t *CancellationToken) Done() <-chan struct{} {
	return t.done
}

// Reason returns what tripped the token and when; empty until tripped.
func (t *CancellationToken) Reason() (string, time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.reason, t.trippedAt
}
