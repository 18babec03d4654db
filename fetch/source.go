package fetch

import (
	"time"

	"github.com/poiesic/spicefeed/core"
)

// Source describes one feed to poll. Sources are plain configuration;
// breaker health for a source lives in the Fetcher instance and starts
// fresh on every process start.
type Source struct {
	// Name identifies the source in reports and stored items.
	Name string

	// FeedURL is the RSS, Atom, or JSON feed endpoint.
	FeedURL string

	// Category is the section hint applied to every entry from this
	// source unless a classifier overrides it.
	Category core.Category

	// Timeout bounds a single fetch of this source, retries included.
	// Zero means the Fetcher's default.
	Timeout time.Duration
}

// SourceStatus describes the outcome of fetching one source.
type SourceStatus string

const (
	StatusOK             SourceStatus = "ok"
	StatusTimedOut       SourceStatus = "timed-out"
	StatusParseError     SourceStatus = "parse-error"
	StatusTransportError SourceStatus = "transport-error"
	StatusCircuitOpen    SourceStatus = "circuit-open"
)

// SourceReport holds per-source counters for one fetch cycle.
type SourceReport struct {
	Status SourceStatus

	// Items is the number of entries that survived normalization.
	Items int

	// Dropped is the number of entries discarded for missing link or title.
	Dropped int

	// Err carries the failure detail for non-ok statuses.
	Err string
}

// Report maps source names to their per-cycle outcome.
type Report struct {
	Sources map[string]SourceReport
}

// Succeeded returns the number of sources that fetched cleanly.
func (r *Report) Succeeded() int {
	n := 0
	for _, sr := range r.Sources {
		if sr.Status == StatusOK {
			n++
		}
	}
	return n
}
