// Package adapter holds the contract and shared plumbing for the
// per-upstream source adapters. Each adapter speaks one upstream's
// wire dialect and emits normalized records; nothing downstream ever
// sees upstream JSON.
package adapter

import (
	"time"
)

// Window is the closed-open date range [From, To) interpreted against
// the upstream's own timestamp semantics.
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether ts falls inside the window. A zero bound
// is open on that side.
func (w Window) Contains(ts time.Time) bool {
	if !w.From.IsZero() && ts.Before(w.From) {
		return false
	}
	if !w.To.IsZero() && !ts.Before(w.To) {
		return false
	}
	return true
}

// Sort enumerates the orderings an adapter may be asked for.
type Sort string

// Supported sort orders.
const (
	SortSubmittedDesc Sort = "submitted_desc"
	SortUpdatedDesc   Sort = "updated_desc"
	SortPublishedDesc Sort = "published_desc"
)

// Options tune one fetch pass. Zero values fall back to the adapter's
// defaults.
type Options struct {
	MaxResults        int
	PageSize          int
	QueryTerms        []string
	Sort              Sort
	Retries           int
	PerRequestTimeout time.Duration
}

func (o Options) maxResults(def int) int {
	if o.MaxResults > 0 {
		return o.MaxResults
	}
	return def
}

func (o Options) pageSize(def int) int {
	if o.PageSize > 0 {
		return o.PageSize
	}
	return def
}

// Normalize fills defaults so adapters can use the options directly.
func (o Options) Normalize() Options {
	o.MaxResults = o.maxResults(500)
	o.PageSize = o.pageSize(100)
	if o.PageSize > o.MaxResults {
		o.PageSize = o.MaxResults
	}
	if o.Retries < 0 {
		o.Retries = 0
	}
	if o.PerRequestTimeout <= 0 {
		o.PerRequestTimeout = 15 * time.Second
	}
	return o
}
