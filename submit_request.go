// submit_request.go defines the submit_pubchem_request tool types: queue a
// lookup for background processing and get back a pollable request ID.
package main

// SubmitRequestArgs is the input for the submit_pubchem_request tool.
type SubmitRequestArgs struct {
	Query     string `json:"query" jsonschema:"Compound name or PubChem CID"`
	Format    string `json:"format,omitempty" jsonschema:"Output format: JSON, CSV, or XYZ. Default JSON."`
	Include3D bool   `json:"include_3d,omitempty" jsonschema:"Include 3D structure information. Required true for XYZ format, ignored otherwise."`
}

// SubmitRequestOutput acknowledges a queued request.
type SubmitRequestOutput struct {
	RequestID string `json:"request_id"`
	Message   string `json:"message"`
}
