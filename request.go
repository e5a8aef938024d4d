// request.go defines the internal request representation used by the store and
// worker pool. Not exposed via MCP directly; see RequestView for the wire form.
package main

import "time"

// Request statuses. A request moves pending -> processing exactly once, then
// processing -> completed or processing -> failed exactly once. Terminal
// statuses never change.
const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// Request is the internal representation of one tracked lookup. The inputs
// (Query, Format, Include3D) are captured at submission and never change.
//
// Lifecycle: pending -> processing -> completed | failed
type Request struct {
	ID        string
	Query     string
	Format    string
	Include3D bool

	Status    string // pending, processing, completed, failed
	Result    string // rendered output (populated on completion)
	Error     string // error message (populated on failure)
	CreatedAt time.Time
	UpdatedAt time.Time // advances on every status transition
}

// View converts a request to its wire form. Result and Error are mutually
// exclusive and both absent while the request is non-terminal.
func (r *Request) View() RequestView {
	v := RequestView{
		RequestID: r.ID,
		Query:     r.Query,
		Format:    r.Format,
		Include3D: r.Include3D,
		Status:    r.Status,
		CreatedAt: epochSeconds(r.CreatedAt),
		UpdatedAt: epochSeconds(r.UpdatedAt),
	}
	switch r.Status {
	case StatusCompleted:
		v.Result = r.Result
	case StatusFailed:
		v.Error = r.Error
	}
	return v
}

// epochSeconds renders a timestamp as fractional seconds since the Unix epoch.
func epochSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}
