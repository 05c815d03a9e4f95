package model

import "time"

// LedgerEntry records one external call attempt. Entries are append-only and
// never mutated; failed and retried attempts are recorded so quota totals
// stay accurate even when a call ultimately fails.
type LedgerEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Provider  string    `json:"provider"`
	Keyword   string    `json:"keyword,omitempty"`
	Cost      float64   `json:"cost"`
	LatencyMS int64     `json:"latency_ms"`
	Success   bool      `json:"success"`
	Attempt   int       `json:"attempt"`
}
