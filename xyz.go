// xyz.go implements the 3D structure pipeline: download the computed 3D SDF
// record from PubChem, parse its atom block, and emit XYZ text. Generated
// structures are cached on disk keyed by CID.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// Atom is one atom placed in 3D space.
type Atom struct {
	Symbol  string
	X, Y, Z float64
}

// formatXYZ renders atoms as XYZ text: atom count, info line, then one atom
// per line with coordinates to six decimal places. An empty or placeholder
// symbol falls back to carbon.
func formatXYZ(atoms []Atom, info string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d\n%s\n", len(atoms), info)
	for _, a := range atoms {
		symbol := a.Symbol
		if symbol == "" || symbol == "0" {
			symbol = "C"
		}
		fmt.Fprintf(&b, "%s %.6f %.6f %.6f\n", symbol, a.X, a.Y, a.Z)
	}
	return b.String()
}

type infoPair struct{ key, value string }

// joinInfoPairs renders key=value pairs for the XYZ comment line, skipping
// empty values.
func joinInfoPairs(pairs []infoPair) string {
	var parts []string
	for _, p := range pairs {
		if p.value != "" {
			parts = append(parts, p.key+"="+p.value)
		}
	}
	return strings.Join(parts, " ")
}

// infoLine builds the XYZ comment line from the compound's identifiers.
func infoLine(c *Compound) string {
	return joinInfoPairs([]infoPair{
		{"id", c.CID},
		{"name", c.IUPACName},
		{"formula", c.MolecularFormula},
		{"smiles", c.CanonicalSMILES},
		{"inchikey", c.InChIKey},
	})
}

var atomLinePattern = regexp.MustCompile(`^\s*(-?\d+\.\d+)\s+(-?\d+\.\d+)\s+(-?\d+\.\d+)\s+([A-Za-z]+)`)

// parseSDF extracts the atom block from a V2000 molfile. Columns are fixed
// width (x, y, z in 10-character fields, element symbol from column 31), with
// a whitespace-split fallback for files that drift from the spec. Returns nil
// if no atoms could be parsed.
func parseSDF(sdf string) []Atom {
	lines := strings.Split(strings.TrimSpace(sdf), "\n")
	if len(lines) < 4 {
		return nil
	}

	countsLine := lines[3]
	if len(countsLine) < 3 {
		return nil
	}
	atomCount, err := strconv.Atoi(strings.TrimSpace(countsLine[:3]))
	if err != nil || atomCount <= 0 {
		return nil
	}

	var atoms []Atom
	for i := 0; i < atomCount; i++ {
		lineIndex := 4 + i
		if lineIndex >= len(lines) {
			break
		}
		line := lines[lineIndex]

		if atom, ok := parseAtomLine(line); ok {
			atoms = append(atoms, atom)
		}
	}
	if len(atoms) == 0 {
		return nil
	}
	return atoms
}

// parseAtomLine parses one atom line, first by fixed columns, then by regex.
func parseAtomLine(line string) (Atom, bool) {
	if len(line) >= 31 {
		x, errX := strconv.ParseFloat(strings.TrimSpace(line[:10]), 64)
		y, errY := strconv.ParseFloat(strings.TrimSpace(line[10:20]), 64)
		z, errZ := strconv.ParseFloat(strings.TrimSpace(line[20:30]), 64)
		if errX == nil && errY == nil && errZ == nil {
			if symbol := extractSymbol(line[30:]); symbol != "" {
				return Atom{Symbol: symbol, X: x, Y: y, Z: z}, true
			}
			// Symbol column is garbled; some files put it in the fourth
			// whitespace field instead.
			fields := strings.Fields(line)
			if len(fields) >= 4 && atomicNumber(fields[3]) > 0 {
				return Atom{Symbol: fields[3], X: x, Y: y, Z: z}, true
			}
		}
	}

	m := atomLinePattern.FindStringSubmatch(line)
	if m == nil {
		return Atom{}, false
	}
	x, _ := strconv.ParseFloat(m[1], 64)
	y, _ := strconv.ParseFloat(m[2], 64)
	z, _ := strconv.ParseFloat(m[3], 64)
	return Atom{Symbol: m[4], X: x, Y: y, Z: z}, true
}

// extractSymbol pulls the leading run of letters out of the symbol column and
// validates it against the element table.
func extractSymbol(s string) string {
	var symbol strings.Builder
	for _, r := range strings.TrimSpace(s) {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') {
			symbol.WriteRune(r)
			continue
		}
		break
	}
	if sym := symbol.String(); atomicNumber(sym) > 0 {
		return sym
	}
	return ""
}

// XYZGenerator produces XYZ structures for compounds, caching results on disk
// so repeated requests for the same CID don't re-download the SDF.
type XYZGenerator struct {
	client   *PubChemClient
	cacheDir string
	logger   *slog.Logger
}

// NewXYZGenerator creates a generator caching into cacheDir. The directory is
// created lazily on first write.
func NewXYZGenerator(client *PubChemClient, cacheDir string, logger *slog.Logger) *XYZGenerator {
	return &XYZGenerator{client: client, cacheDir: cacheDir, logger: logger}
}

// Structure returns the XYZ text for a compound. Compounds with no computed
// 3D conformer upstream fail with a descriptive error; there is no degraded
// 2D fallback.
func (g *XYZGenerator) Structure(ctx context.Context, c *Compound) (string, error) {
	cacheFile := filepath.Join(g.cacheDir, c.CID+".xyz")
	if data, err := os.ReadFile(cacheFile); err == nil {
		g.logger.Debug("xyz cache hit", "cid", c.CID)
		return string(data), nil
	}

	sdf, err := g.client.DownloadSDF(ctx, c.CID)
	if err != nil {
		return "", fmt.Errorf("failed to generate 3D structure: %w", err)
	}

	atoms := parseSDF(sdf)
	if atoms == nil {
		return "", fmt.Errorf("failed to generate 3D structure: no parsable atom block in SDF for CID %s", c.CID)
	}

	xyz := formatXYZ(atoms, infoLine(c))
	g.writeCache(cacheFile, xyz)
	return xyz, nil
}

// writeCache persists a generated structure. Cache failures are logged and
// otherwise ignored; the structure was still generated.
func (g *XYZGenerator) writeCache(path, xyz string) {
	if err := os.MkdirAll(g.cacheDir, 0o755); err != nil {
		g.logger.Error("unable to create cache directory", "dir", g.cacheDir, "error", err)
		return
	}
	if err := os.WriteFile(path, []byte(xyz), 0o644); err != nil {
		g.logger.Error("error writing cache file", "path", path, "error", err)
	}
}

// elementNumbers maps element symbols to atomic numbers, H through Fm.
var elementNumbers = map[string]int{
	"H": 1, "He": 2, "Li": 3, "Be": 4, "B": 5, "C": 6, "N": 7, "O": 8, "F": 9, "Ne": 10,
	"Na": 11, "Mg": 12, "Al": 13, "Si": 14, "P": 15, "S": 16, "Cl": 17, "Ar": 18, "K": 19, "Ca": 20,
	"Sc": 21, "Ti": 22, "V": 23, "Cr": 24, "Mn": 25, "Fe": 26, "Co": 27, "Ni": 28, "Cu": 29, "Zn": 30,
	"Ga": 31, "Ge": 32, "As": 33, "Se": 34, "Br": 35, "Kr": 36, "Rb": 37, "Sr": 38, "Y": 39, "Zr": 40,
	"Nb": 41, "Mo": 42, "Tc": 43, "Ru": 44, "Rh": 45, "Pd": 46, "Ag": 47, "Cd": 48, "In": 49, "Sn": 50,
	"Sb": 51, "Te": 52, "I": 53, "Xe": 54, "Cs": 55, "Ba": 56, "La": 57, "Ce": 58, "Pr": 59, "Nd": 60,
	"Pm": 61, "Sm": 62, "Eu": 63, "Gd": 64, "Tb": 65, "Dy": 66, "Ho": 67, "Er": 68, "Tm": 69, "Yb": 70,
	"Lu": 71, "Hf": 72, "Ta": 73, "W": 74, "Re": 75, "Os": 76, "Ir": 77, "Pt": 78, "Au": 79, "Hg": 80,
	"Tl": 81, "Pb": 82, "Bi": 83, "Po": 84, "At": 85, "Rn": 86, "Fr": 87, "Ra": 88, "Ac": 89, "Th": 90,
	"Pa": 91, "U": 92, "Np": 93, "Pu": 94, "Am": 95, "Cm": 96, "Bk": 97, "Cf": 98, "Es": 99, "Fm": 100,
}

// atomicNumber returns the atomic number for an element symbol, or 0 for an
// unknown symbol.
func atomicNumber(symbol string) int {
	return elementNumbers[symbol]
}
