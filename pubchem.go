// pubchem.go implements the client for the PubChem PUG REST API: compound
// property lookup by name or CID, CID search by SMILES/InChIKey, and 3D SDF
// download. Lookups are cached for the lifetime of the process and concurrent
// identical lookups collapse into a single upstream call.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

const defaultBaseURL = "https://pubchem.ncbi.nlm.nih.gov/rest/pug"

// compoundProperties is the property list requested from PUG REST, in the
// order they appear in rendered output.
var compoundProperties = []string{
	"IUPACName",
	"MolecularFormula",
	"MolecularWeight",
	"CanonicalSMILES",
	"InChI",
	"InChIKey",
}

var cidPattern = regexp.MustCompile(`^\d+$`)

var (
	errEmptyQuery       = errors.New("query cannot be empty")
	errCompoundNotFound = errors.New("compound not found or no data available")
)

// Compound holds the property set retrieved for one compound. All values are
// kept as strings, matching how they are rendered.
type Compound struct {
	CID              string
	IUPACName        string
	MolecularFormula string
	MolecularWeight  string
	CanonicalSMILES  string
	InChI            string
	InChIKey         string
}

// PubChemClient talks to PUG REST with retries and an in-memory cache keyed
// by "cid:N" or "name:<lowercased query>". A lookup by name also backfills
// the cid key so a later CID lookup for the same compound is a cache hit.
type PubChemClient struct {
	baseURL      string
	http         *http.Client
	sdfClient    *http.Client // SDF downloads are large; they get a longer timeout
	retryBackoff time.Duration
	logger       *slog.Logger

	mu    sync.Mutex
	cache map[string]*Compound
	group singleflight.Group
}

// NewPubChemClient creates a client using the configured base URL and timeouts.
func NewPubChemClient(cfg *Config, logger *slog.Logger) *PubChemClient {
	return &PubChemClient{
		baseURL:      cfg.BaseURL,
		http:         &http.Client{Timeout: cfg.HTTPTimeout},
		sdfClient:    &http.Client{Timeout: cfg.SDFTimeout},
		retryBackoff: time.Second,
		logger:       logger,
		cache:        make(map[string]*Compound),
	}
}

// GetCompound retrieves the property set for a compound name or a bare
// numeric PubChem CID.
func (c *PubChemClient) GetCompound(ctx context.Context, query string) (*Compound, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, errEmptyQuery
	}

	isCID := cidPattern.MatchString(q)
	cacheKey := "name:" + strings.ToLower(q)
	identifierPath := "name/" + url.PathEscape(q)
	if isCID {
		cacheKey = "cid:" + q
		identifierPath = "cid/" + q
	}

	if cached := c.cached(cacheKey); cached != nil {
		c.logger.Debug("compound cache hit", "key", cacheKey)
		return cached, nil
	}

	// Collapse concurrent identical misses into one upstream request.
	v, err, _ := c.group.Do(cacheKey, func() (any, error) {
		return c.fetchProperties(ctx, identifierPath, cacheKey)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Compound), nil
}

func (c *PubChemClient) cached(key string) *Compound {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cache[key]
}

func (c *PubChemClient) fetchProperties(ctx context.Context, identifierPath, cacheKey string) (*Compound, error) {
	if cached := c.cached(cacheKey); cached != nil {
		return cached, nil
	}

	u := fmt.Sprintf("%s/compound/%s/property/%s/JSON",
		c.baseURL, identifierPath, strings.Join(compoundProperties, ","))
	c.logger.Debug("fetching compound properties", "url", u)

	body, err := c.getWithRetry(ctx, c.http, u)
	if err != nil {
		return nil, err
	}

	// Properties are decoded into a generic map so numeric values (CID,
	// MolecularWeight) keep their literal representation via json.Number.
	var result struct {
		PropertyTable struct {
			Properties []map[string]any `json:"Properties"`
		} `json:"PropertyTable"`
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("malformed property response: %w", err)
	}
	if len(result.PropertyTable.Properties) == 0 {
		return nil, errCompoundNotFound
	}
	props := result.PropertyTable.Properties[0]

	compound := &Compound{
		CID:              stringProp(props, "CID"),
		IUPACName:        stringProp(props, "IUPACName"),
		MolecularFormula: stringProp(props, "MolecularFormula"),
		MolecularWeight:  stringProp(props, "MolecularWeight"),
		CanonicalSMILES:  stringProp(props, "CanonicalSMILES"),
		InChI:            stringProp(props, "InChI"),
		InChIKey:         stringProp(props, "InChIKey"),
	}
	if compound.CID == "" {
		return nil, errors.New("could not find CID in the response")
	}

	c.mu.Lock()
	c.cache[cacheKey] = compound
	if cidKey := "cid:" + compound.CID; cidKey != cacheKey {
		c.cache[cidKey] = compound
	}
	c.mu.Unlock()

	return compound, nil
}

// SearchCIDBySMILES resolves a SMILES string to the first matching CID.
func (c *PubChemClient) SearchCIDBySMILES(ctx context.Context, smiles string) (string, error) {
	return c.searchCID(ctx, "smiles/"+url.PathEscape(smiles))
}

// SearchCIDByInChIKey resolves an InChIKey to the first matching CID.
func (c *PubChemClient) SearchCIDByInChIKey(ctx context.Context, inchikey string) (string, error) {
	return c.searchCID(ctx, "inchikey/"+url.PathEscape(inchikey))
}

func (c *PubChemClient) searchCID(ctx context.Context, identifierPath string) (string, error) {
	u := fmt.Sprintf("%s/compound/%s/cids/TXT", c.baseURL, identifierPath)
	body, err := c.getWithRetry(ctx, c.http, u)
	if err != nil {
		return "", err
	}
	cids := strings.Split(strings.TrimSpace(string(body)), "\n")
	if len(cids) == 0 || cids[0] == "" {
		return "", errCompoundNotFound
	}
	return strings.TrimSpace(cids[0]), nil
}

// DownloadSDF fetches the 3D SDF record for a CID. Not every compound has a
// computed 3D conformer; those return a PUG fault.
func (c *PubChemClient) DownloadSDF(ctx context.Context, cid string) (string, error) {
	u := fmt.Sprintf("%s/compound/cid/%s/record/SDF/?record_type=3d&response_type=display&display_type=sdf", c.baseURL, cid)
	body, err := c.getWithRetry(ctx, c.sdfClient, u)
	if err != nil {
		return "", fmt.Errorf("failed to download SDF for CID %s: %w", cid, err)
	}
	return string(body), nil
}

// retryStatus reports whether an HTTP status is worth retrying.
func retryStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

const maxAttempts = 3

// getWithRetry performs a GET with up to maxAttempts tries, backing off
// linearly between attempts. Non-retryable error statuses are converted into
// an error carrying the PUG fault message when one is present.
func (c *PubChemClient) getWithRetry(ctx context.Context, client *http.Client, u string) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt-1) * c.retryBackoff):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("pubchem request failed", "url", u, "attempt", attempt, "error", err)
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		if resp.StatusCode == http.StatusOK {
			return body, nil
		}
		if retryStatus(resp.StatusCode) {
			lastErr = fmt.Errorf("pubchem returned status %d", resp.StatusCode)
			c.logger.Warn("pubchem retryable status", "url", u, "attempt", attempt, "status", resp.StatusCode)
			continue
		}
		return nil, faultError(resp.StatusCode, body)
	}
	return nil, lastErr
}

// faultError extracts the human-readable message from a PUG REST fault body,
// falling back to the HTTP status.
func faultError(status int, body []byte) error {
	var fault struct {
		Fault struct {
			Code    string   `json:"Code"`
			Message string   `json:"Message"`
			Details []string `json:"Details"`
		} `json:"Fault"`
	}
	if err := json.Unmarshal(body, &fault); err == nil {
		if len(fault.Fault.Details) > 0 {
			return errors.New(fault.Fault.Details[0])
		}
		if fault.Fault.Message != "" {
			return errors.New(fault.Fault.Message)
		}
	}
	return fmt.Errorf("pubchem returned status %d", status)
}

// stringProp renders a property value as a string regardless of its JSON
// type. json.Number values keep their literal form, so large CIDs don't get
// mangled into scientific notation.
func stringProp(props map[string]any, key string) string {
	v, ok := props[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}
