package application

import (
	"sync"

	reconcile "cashdesk/internal/reconcile/domain"
)

// generationGuard hands out per-day request generations. Every local
// mutation bumps the day's generation; an async response carries the
// generation captured at dispatch and is applied only while it is still
// current. A stale response is dropped whole, whatever order the calls
// resolved in.
type generationGuard struct {
	mu   sync.Mutex
	gens map[reconcile.DayKey]uint64
}

func newGenerationGuard() *generationGuard {
	return &generationGuard{gens: make(map[reconcile.DayKey]uint64)}
}

// bump invalidates all in-flight responses for the day and returns the new
// generation.
func (g *generationGuard) bump(day reconcile.DayKey) uint64 {
	g.mu.Lock()
	g.gens[day]++
	gen := g.gens[day]
	g.mu.Unlock()
	return gen
}

// current returns the day's live generation.
func (g *generationGuard) current(day reconcile.DayKey) uint64 {
	g.mu.Lock()
	gen := g.gens[day]
	g.mu.Unlock()
	return gen
}

// stillCurrent reports whether a captured generation has not been superseded.
func (g *generationGuard) stillCurrent(day reconcile.DayKey, gen uint64) bool {
	return g.current(day) == gen
}
