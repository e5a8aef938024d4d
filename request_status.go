// request_status.go defines the get_request_status tool types: poll the
// lifecycle state of a previously submitted request.
package main

// RequestStatusArgs is the input for the get_request_status tool.
type RequestStatusArgs struct {
	RequestID string `json:"request_id" jsonschema:"Request ID returned from submit_pubchem_request"`
}

// RequestView is the wire form of a tracked request. Timestamps are
// fractional seconds since the Unix epoch. Result is present only for
// completed requests, Error only for failed ones.
type RequestView struct {
	RequestID string  `json:"request_id"`
	Query     string  `json:"query"`
	Format    string  `json:"format"`
	Include3D bool    `json:"include_3d"`
	Status    string  `json:"status"` // pending, processing, completed, failed
	CreatedAt float64 `json:"created_at"`
	UpdatedAt float64 `json:"updated_at"`
	Result    string  `json:"result,omitempty"`
	Error     string  `json:"error,omitempty"`
}
