package application

import (
	"context"
	"log"
	"sync"
	"time"

	"cashdesk/internal/observability/metrics"
	reconcile "cashdesk/internal/reconcile/domain"
)

const mirrorWriteTimeout = 5 * time.Second

// Mirror debounces local cache writes. Every edit schedules a write after
// the debounce interval; a newer edit for the same day replaces the pending
// one, so a typing burst costs one write instead of one per keystroke.
type Mirror struct {
	cache    DraftCache
	debounce time.Duration
	logger   *log.Logger

	mu     sync.Mutex
	timers map[reconcile.DayKey]*time.Timer
	closed bool
}

// NewMirror constructs a debounced cache mirror.
func NewMirror(cache DraftCache, debounce time.Duration, logger *log.Logger) *Mirror {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Mirror{
		cache:    cache,
		debounce: debounce,
		logger:   logger,
		timers:   make(map[reconcile.DayKey]*time.Timer),
	}
}

// Schedule queues a cache write for the day, replacing any pending one.
func (m *Mirror) Schedule(day reconcile.DayKey, in reconcile.Inputs, manualOverride bool) {
	if m == nil || m.cache == nil || day == "" {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	if t := m.timers[day]; t != nil {
		t.Stop()
	}
	m.timers[day] = time.AfterFunc(m.debounce, func() {
		m.flush(day, in, manualOverride)
	})
}

// CancelDay drops the day's pending write, used when the active date
// changes so a stale write cannot land under the old date.
func (m *Mirror) CancelDay(day reconcile.DayKey) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if t := m.timers[day]; t != nil {
		t.Stop()
		delete(m.timers, day)
	}
}

// Close cancels every pending write.
func (m *Mirror) Close() {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	for day, t := range m.timers {
		t.Stop()
		delete(m.timers, day)
	}
}

func (m *Mirror) flush(day reconcile.DayKey, in reconcile.Inputs, manualOverride bool) {
	m.mu.Lock()
	delete(m.timers, day)
	m.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), mirrorWriteTimeout)
	defer cancel()
	if err := m.cache.PutDraft(ctx, day.String(), in, manualOverride); err != nil {
		metrics.IncMirrorWrite(metrics.ResultError)
		m.logger.Printf("mirror: day=%s cache write failed: %v", day, err)
		return
	}
	metrics.IncMirrorWrite(metrics.ResultSuccess)
}
