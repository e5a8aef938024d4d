// render.go converts a fetched compound into one of the output encodings and
// composes the full fetch-and-render cycle used by workers and the
// synchronous tool.
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
)

// Recognized output formats.
const (
	FormatJSON = "JSON"
	FormatCSV  = "CSV"
	FormatXYZ  = "XYZ"
)

var errInvalidFormat = fmt.Errorf("invalid format: must be one of %s, %s, %s", FormatJSON, FormatCSV, FormatXYZ)

// normalizeFormat upper-cases a format value, applying the JSON default for
// an empty one. Returns errInvalidFormat for anything unrecognized.
func normalizeFormat(format string) (string, error) {
	f := strings.ToUpper(strings.TrimSpace(format))
	if f == "" {
		return FormatJSON, nil
	}
	switch f {
	case FormatJSON, FormatCSV, FormatXYZ:
		return f, nil
	}
	return "", errInvalidFormat
}

// compoundJSON fixes the key order of the rendered JSON object.
type compoundJSON struct {
	IUPACName        string `json:"IUPACName"`
	MolecularFormula string `json:"MolecularFormula"`
	MolecularWeight  string `json:"MolecularWeight"`
	CanonicalSMILES  string `json:"CanonicalSMILES"`
	InChI            string `json:"InChI"`
	InChIKey         string `json:"InChIKey"`
	CID              string `json:"CID"`
}

// renderJSON renders a compound as an indented JSON object.
func renderJSON(c *Compound) (string, error) {
	out, err := json.MarshalIndent(compoundJSON{
		IUPACName:        c.IUPACName,
		MolecularFormula: c.MolecularFormula,
		MolecularWeight:  c.MolecularWeight,
		CanonicalSMILES:  c.CanonicalSMILES,
		InChI:            c.InChI,
		InChIKey:         c.InChIKey,
		CID:              c.CID,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render JSON: %w", err)
	}
	return string(out), nil
}

var csvHeader = []string{"CID", "IUPACName", "MolecularFormula", "MolecularWeight", "CanonicalSMILES", "InChI", "InChIKey"}

// renderCSV renders a compound as a two-line CSV document: header plus one row.
func renderCSV(c *Compound) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	row := []string{c.CID, c.IUPACName, c.MolecularFormula, c.MolecularWeight, c.CanonicalSMILES, c.InChI, c.InChIKey}
	if err := w.WriteAll([][]string{csvHeader, row}); err != nil {
		return "", fmt.Errorf("failed to render CSV: %w", err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

// Fetcher ties the PubChem client and the 3D pipeline together into the one
// blocking operation a worker performs.
type Fetcher struct {
	client *PubChemClient
	xyz    *XYZGenerator
}

// NewFetcher creates a fetcher over the given client and 3D generator.
func NewFetcher(client *PubChemClient, xyz *XYZGenerator) *Fetcher {
	return &Fetcher{client: client, xyz: xyz}
}

// FetchAndRender retrieves compound data for the query and renders it in the
// requested format. XYZ output requires include3D; the 2D property set has
// no coordinates to emit.
func (f *Fetcher) FetchAndRender(ctx context.Context, query, format string, include3D bool) (string, error) {
	fmtName, err := normalizeFormat(format)
	if err != nil {
		return "", err
	}
	if fmtName == FormatXYZ && !include3D {
		return "", fmt.Errorf("include_3d parameter must be true for %s format", FormatXYZ)
	}

	compound, err := f.client.GetCompound(ctx, query)
	if err != nil {
		return "", err
	}

	switch fmtName {
	case FormatCSV:
		return renderCSV(compound)
	case FormatXYZ:
		return f.xyz.Structure(ctx, compound)
	default:
		return renderJSON(compound)
	}
}
