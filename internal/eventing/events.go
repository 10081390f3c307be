package eventing

import "time"

// DraftComputed fires when an upstream compute response is applied to a
// draft. Stale responses that lose the generation race never publish it.
type DraftComputed struct {
	Day          string
	Generation   uint64
	NetResultUSD float64
	OccurredAt   time.Time
}

// DraftSaved fires after a successful persistence call, whether manual or
// autosave.
type DraftSaved struct {
	Day        string
	Autosave   bool
	OccurredAt time.Time
}

// DraftCleared fires after a confirmed clear of a day's draft.
type DraftCleared struct {
	Day        string
	OccurredAt time.Time
}

// RecordDeleted fires after a confirmed deletion of a history record.
type RecordDeleted struct {
	Day        string
	OccurredAt time.Time
}

// RateUpdated fires after a manual exchange rate edit is accepted upstream.
type RateUpdated struct {
	Pair       string
	Rate       float64
	OccurredAt time.Time
}
