// server.go wires the MCP tools to the request store, worker pool, and
// fetcher. Handlers run on the transport's goroutine and never block on
// network I/O except for the explicitly synchronous get_pubchem_data tool.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type toolHandlers struct {
	store   *RequestStore
	pool    *WorkerPool
	fetcher *Fetcher
	logger  *slog.Logger
}

// validateArgs applies the shared submission checks: non-empty query, a
// recognized format, and the XYZ/include_3d coupling. Returns the normalized
// format name.
func validateArgs(query, format string, include3D bool) (string, error) {
	if query == "" {
		return "", errors.New("missing required parameter: query")
	}
	fmtName, err := normalizeFormat(format)
	if err != nil {
		return "", err
	}
	if fmtName == FormatXYZ && !include3D {
		return "", fmt.Errorf("when using %s format, the include_3d parameter must be set to true", FormatXYZ)
	}
	return fmtName, nil
}

// handleSubmitRequest queues a lookup and returns its request ID. Validation
// failures surface immediately and no record is created.
func (h *toolHandlers) handleSubmitRequest(ctx context.Context, req *mcp.CallToolRequest, args SubmitRequestArgs) (*mcp.CallToolResult, SubmitRequestOutput, error) {
	fmtName, err := validateArgs(args.Query, args.Format, args.Include3D)
	if err != nil {
		return nil, SubmitRequestOutput{}, err
	}

	id := h.store.Create(args.Query, fmtName, args.Include3D)
	h.pool.Submit(id)
	h.logger.Info("submitted new request", "request_id", id, "query", args.Query)

	return nil, SubmitRequestOutput{
		RequestID: id,
		Message:   "Request submitted successfully. Use get_request_status with this request_id to check the status.",
	}, nil
}

// handleRequestStatus returns the current view of a request. An unknown ID,
// never issued or already swept, is a normal negative result.
func (h *toolHandlers) handleRequestStatus(ctx context.Context, req *mcp.CallToolRequest, args RequestStatusArgs) (*mcp.CallToolResult, RequestView, error) {
	if args.RequestID == "" {
		return nil, RequestView{}, errors.New("missing required parameter: request_id")
	}
	r, ok := h.store.Get(args.RequestID)
	if !ok {
		return nil, RequestView{}, fmt.Errorf("request ID not found: %s", args.RequestID)
	}
	return nil, r.View(), nil
}

// handleGetData runs a fetch-and-render cycle inline and returns the result.
func (h *toolHandlers) handleGetData(ctx context.Context, req *mcp.CallToolRequest, args GetDataArgs) (*mcp.CallToolResult, GetDataOutput, error) {
	fmtName, err := validateArgs(args.Query, args.Format, args.Include3D)
	if err != nil {
		return nil, GetDataOutput{}, err
	}
	data, err := h.fetcher.FetchAndRender(ctx, args.Query, fmtName, args.Include3D)
	if err != nil {
		return nil, GetDataOutput{}, err
	}
	return nil, GetDataOutput{Data: data}, nil
}

// registerTools attaches the three PubChem tools to the MCP server.
func registerTools(server *mcp.Server, h *toolHandlers) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_pubchem_data",
		Description: "Retrieve compound structure and property data",
	}, h.handleGetData)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "submit_pubchem_request",
		Description: "Submit asynchronous request for PubChem data (useful for slower queries)",
	}, h.handleSubmitRequest)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_request_status",
		Description: "Get status of an asynchronous PubChem data request",
	}, h.handleRequestStatus)
}
