// Package quota tracks external call spend. The ledger is append-only:
// every attempt against a provider is recorded with its cost, latency, and
// outcome, so totals stay accurate even for calls that ultimately failed.
package quota

import (
	"sync"
	"time"

	"github.com/scribeworks/keyword-cli/internal/model"
)

// Ledger is a concurrency-safe append-only record of external call attempts.
type Ledger struct {
	mu      sync.Mutex
	entries []model.LedgerEntry
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// Record appends one attempt. Entries are never mutated after append.
func (l *Ledger) Record(provider, keyword string, cost float64, latency time.Duration, success bool, attempt int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, model.LedgerEntry{
		Timestamp: time.Now().UTC(),
		Provider:  provider,
		Keyword:   keyword,
		Cost:      cost,
		LatencyMS: latency.Milliseconds(),
		Success:   success,
		Attempt:   attempt,
	})
}

// Entries returns a copy of all recorded entries in append order.
func (l *Ledger) Entries() []model.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.LedgerEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Drain returns all recorded entries and resets the ledger. The orchestrator
// uses it to flush per-stage spend into the store.
func (l *Ledger) Drain() []model.LedgerEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.entries
	l.entries = nil
	return out
}

// TotalCost sums the cost of every recorded attempt, failures included.
func (l *Ledger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	var total float64
	for _, e := range l.entries {
		total += e.Cost
	}
	return total
}

// TotalCalls returns the number of recorded attempts.
func (l *Ledger) TotalCalls() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// CallsByProvider returns attempt counts keyed by provider.
func (l *Ledger) CallsByProvider() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()
	counts := make(map[string]int)
	for _, e := range l.entries {
		counts[e.Provider]++
	}
	return counts
}

// CostByProvider returns summed cost keyed by provider.
func (l *Ledger) CostByProvider() map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	costs := make(map[string]float64)
	for _, e := range l.entries {
		costs[e.Provider] += e.Cost
	}
	return costs
}
