package application

import (
	"context"
	"time"
)

// Autosaver periodically saves the active day's draft when a computed
// result exists and the draft is unsaved. A failed save is logged inside
// the tick and retried on the next one; the loop never stops on error.
type Autosaver struct {
	service *DraftService
	period  time.Duration
}

// NewAutosaver constructs an autosave loop.
func NewAutosaver(service *DraftService, period time.Duration) *Autosaver {
	if period <= 0 {
		period = 15 * time.Minute
	}
	return &Autosaver{service: service, period: period}
}

// Start runs the autosave loop until the context is cancelled.
func (a *Autosaver) Start(ctx context.Context) {
	if a == nil || a.service == nil {
		return
	}
	ticker := time.NewTicker(a.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.service.AutosaveTick(ctx)
		}
	}
}
