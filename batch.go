// batch.go implements batch mode: read compounds from a TSV file, resolve
// each to a PubChem CID by InChIKey or SMILES, and write one XYZ structure
// file per compound. Rows that can't be resolved are logged and skipped; one
// bad row never aborts the run.
package main

import (
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BatchProcessor converts TSV rows to XYZ files.
type BatchProcessor struct {
	client *PubChemClient
	logger *slog.Logger
	delay  time.Duration // pause between rows, keeps the upstream API happy
}

// NewBatchProcessor creates a processor using the given client.
func NewBatchProcessor(client *PubChemClient, delay time.Duration, logger *slog.Logger) *BatchProcessor {
	return &BatchProcessor{client: client, logger: logger, delay: delay}
}

// ProcessFile reads a TSV file with a header row and writes <id>.xyz files
// into outputDir. Recognized columns: id (required), name, formula, rt,
// smiles/smiles.std, inchikey/inchikey.std. Existing output files are kept.
func (b *BatchProcessor) ProcessFile(ctx context.Context, tsvPath, outputDir string) error {
	f, err := os.Open(tsvPath)
	if err != nil {
		return fmt.Errorf("failed to open TSV file: %w", err)
	}
	defer f.Close()

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	r := csv.NewReader(f)
	r.Comma = '\t'
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("failed to read TSV header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	if _, ok := cols["id"]; !ok {
		return fmt.Errorf("TSV file %s has no id column", tsvPath)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		row, err := r.Read()
		if err != nil {
			break
		}
		b.processRow(ctx, row, cols, outputDir)
	}
	return nil
}

// processRow handles one compound row end to end.
func (b *BatchProcessor) processRow(ctx context.Context, row []string, cols map[string]int, outputDir string) {
	field := func(names ...string) string {
		for _, name := range names {
			if i, ok := cols[name]; ok && i < len(row) && row[i] != "" {
				return cleanField(row[i])
			}
		}
		return ""
	}

	id := field("id")
	if id == "" {
		return
	}
	smiles := field("smiles.std", "smiles", "SMILES")
	if smiles == "" {
		b.logger.Warn("no SMILES found, skipping", "id", id)
		return
	}
	inchikey := field("inchikey.std", "inchikey", "InChIKey")

	outPath := filepath.Join(outputDir, id+".xyz")
	if _, err := os.Stat(outPath); err == nil {
		b.logger.Info("file already exists, skipping", "id", id)
		return
	}

	var cid string
	var err error
	if inchikey != "" {
		cid, err = b.client.SearchCIDByInChIKey(ctx, inchikey)
		if err != nil {
			b.logger.Debug("InChIKey search failed", "id", id, "error", err)
		}
	}
	if cid == "" {
		cid, err = b.client.SearchCIDBySMILES(ctx, smiles)
		if err != nil {
			b.logger.Warn("no PubChem match, skipping", "id", id, "error", err)
			return
		}
	}
	b.logger.Info("found PubChem CID", "id", id, "cid", cid)

	sdf, err := b.client.DownloadSDF(ctx, cid)
	if err != nil {
		b.logger.Warn("failed to download structure, skipping", "id", id, "cid", cid, "error", err)
		return
	}
	atoms := parseSDF(sdf)
	if atoms == nil {
		b.logger.Warn("failed to parse structure, skipping", "id", id, "cid", cid)
		return
	}

	info := joinInfoPairs([]infoPair{
		{"id", id},
		{"name", field("name")},
		{"formula", field("formula")},
		{"rt", field("rt")},
		{"smiles", smiles},
		{"inchikey", inchikey},
		{"pubchem_cid", cid},
	})
	if err := os.WriteFile(outPath, []byte(formatXYZ(atoms, info)), 0o644); err != nil {
		b.logger.Error("failed to write XYZ file", "path", outPath, "error", err)
		return
	}
	b.logger.Info("generated XYZ", "id", id, "path", outPath)

	if b.delay > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(b.delay):
		}
	}
}

// cleanField strips control characters that would corrupt the XYZ info line.
func cleanField(s string) string {
	r := strings.NewReplacer("\n", " ", "\r", " ", "\t", " ")
	return strings.TrimSpace(r.Replace(s))
}
