// pubchem_data.go defines the get_pubchem_data tool types: the synchronous
// fetch path for queries fast enough to answer inline.
package main

// GetDataArgs is the input for the get_pubchem_data tool.
type GetDataArgs struct {
	Query     string `json:"query" jsonschema:"Compound name or PubChem CID"`
	Format    string `json:"format,omitempty" jsonschema:"Output format: JSON, CSV, or XYZ. Default JSON."`
	Include3D bool   `json:"include_3d,omitempty" jsonschema:"Include 3D structure information. Required true for XYZ format, ignored otherwise."`
}

// GetDataOutput carries the rendered compound data.
type GetDataOutput struct {
	Data string `json:"data"`
}
