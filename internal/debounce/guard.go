// Package debounce drops inbound events that arrive too soon after the
// previous admitted event of the same user.
package debounce

import (
	"sync"
	"time"
)

// DefaultDelay is the minimum spacing between admitted events of one user.
const DefaultDelay = time.Second

// Guard tracks the last admitted event per user.
type Guard struct {
	delay time.Duration

	mu   sync.Mutex
	last map[int64]time.Time
}

func New(delay time.Duration) *Guard {
	if delay < 0 {
		delay = 0
	}
	return &Guard{
		delay: delay,
		last:  make(map[int64]time.Time),
	}
}

// Admit reports whether an event from userID at now should be processed.
// Only admitted events are recorded, so a user hammering the bot is let
// through again once delay has passed since the last admitted event.
func (g *Guard) Admit(userID int64, now time.Time) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if prev, ok := g.last[userID]; ok && now.Sub(prev) < g.delay {
		return false
	}
	g.last[userID] = now
	return true
}

// Sweep forgets users whose last admitted event is before cutoff.
func (g *Guard) Sweep(cutoff time.Time) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	n := 0
	for id, ts := range g.last {
		if ts.Before(cutoff) {
			delete(g.last, id)
			n++
		}
	}
	return n
}

// Delay returns the configured spacing.
func (g *Guard) Delay() time.Duration { return g.delay }

// Len returns the number of tracked users.
func (g *Guard) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.last)
}
