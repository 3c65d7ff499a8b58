// ABOUTME: Process-wide mutable set of blocked client addresses.
// ABOUTME: Mutex-guarded; an optional TTL sweep expires stale entries in the background.
package security

import (
	"context"
	"sort"
	"sync"
	"time"
)

// Blocklist is the shared set of blocked client addresses. Reads happen on
// every request; writes only via explicit Block/Unblock calls. Construct one
// per pipeline instance and inject it — no ambient global state, so
// independent pipelines can be tested in isolation.
type Blocklist struct {
	mu      sync.RWMutex
	entries map[string]time.Time // address -> time blocked

	// ttl of 0 means entries persist until explicitly unblocked.
	ttl time.Duration
}

// NewBlocklist creates an empty blocklist. ttl > 0 enables automatic expiry:
// IsBlocked treats entries older than ttl as gone, and Sweep (run via
// StartSweep) removes them.
func NewBlocklist(ttl time.Duration) *Blocklist {
	return &Blocklist{
		entries: make(map[string]time.Time),
		ttl:     ttl,
	}
}

// Block adds address to the set. Re-blocking refreshes the TTL clock.
func (b *Blocklist) Block(address string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[address] = time.Now()
}

// Unblock removes address, reporting whether it was present.
func (b *Blocklist) Unblock(address string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.entries[address]
	delete(b.entries, address)
	return ok
}

// IsBlocked reports whether address is currently blocked.
func (b *Blocklist) IsBlocked(address string) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	at, ok := b.entries[address]
	if !ok {
		return false
	}
	if b.ttl > 0 && time.Since(at) > b.ttl {
		return false
	}
	return true
}

// List returns the currently blocked addresses, sorted.
func (b *Blocklist) List() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]string, 0, len(b.entries))
	for addr, at := range b.entries {
		if b.ttl > 0 && time.Since(at) > b.ttl {
			continue
		}
		out = append(out, addr)
	}
	sort.Strings(out)
	return out
}

// Sweep removes expired entries. No-op when TTL is disabled.
func (b *Blocklist) Sweep() {
	if b.ttl == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	cutoff := time.Now().Add(-b.ttl)
	for addr, at := range b.entries {
		if at.Before(cutoff) {
			delete(b.entries, addr)
		}
	}
}

// StartSweep runs Sweep every ttl/2 until ctx is cancelled. Returns
// immediately when TTL is disabled.
func (b *Blocklist) StartSweep(ctx context.Context) {
	if b.ttl == 0 {
		return
	}
	ticker := time.NewTicker(b.ttl / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			b.Sweep()
		}
	}
}
