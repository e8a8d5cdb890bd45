package gnos

import "time"

// PollResult is the outcome of fetching and ingesting one modeler report.
type PollResult struct {
	// Modeler is the name given to [NewModeler].
	Modeler string

	URL string

	// Latency is the time taken by the fetch alone.
	Latency time.Duration

	CheckedAt time.Time

	// Err is the fetch error, or the ingestion error when the report was
	// fetched but rejected. Nil means the report was applied.
	Err error

	// RawReport is the fetched body, nil when the fetch failed.
	RawReport []byte
}

// OK reports whether the report was fetched and applied.
func (r PollResult) OK() bool {
	return r.Err == nil
}
