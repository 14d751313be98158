package engine

import "sync"

// Status is the terminal outcome of one article's processing attempt.
type Status string

const (
	StatusApplied     Status = "applied"
	StatusAlreadyDone Status = "already-done"
	StatusFailed      Status = "failed"
)

// Summary is the aggregate outcome of one engine run.
type Summary struct {
	Applied     int      `json:"applied"`
	AlreadyDone int      `json:"already_done"`
	Failed      int      `json:"failed"`
	Total       int      `json:"total"`
	FailedIDs   []string `json:"failed_ids,omitempty"`
}

// Ledger tallies per-article terminal statuses. Counters are purely
// additive and safe under concurrent Record calls; the ledger lives only
// for the duration of one run.
type Ledger struct {
	mu          sync.Mutex
	applied     int
	alreadyDone int
	failed      int
	failedIDs   []string
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record tallies one article's terminal status.
func (l *Ledger) Record(articleID string, status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()
	switch status {
	case StatusApplied:
		l.applied++
	case StatusAlreadyDone:
		l.alreadyDone++
	case StatusFailed:
		l.failed++
		l.failedIDs = append(l.failedIDs, articleID)
	}
}

// Summary returns the totals recorded so far.
func (l *Ledger) Summary() Summary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Summary{
		Applied:     l.applied,
		AlreadyDone: l.alreadyDone,
		Failed:      l.failed,
		Total:       l.applied + l.alreadyDone + l.failed,
		FailedIDs:   append([]string(nil), l.failedIDs...),
	}
}
