// Command pubchem-mcp-go serves PubChem compound lookups over the Model
// Context Protocol. It exposes a synchronous tool for fast queries and an
// asynchronous submit/poll pair for slow ones, backed by a bounded worker
// pool and an in-memory request store.
//
// Two auxiliary modes bypass the server: -query runs a single lookup and
// prints it, -batch-file converts a TSV of compounds into XYZ files.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	serverName    = "pubchem-server"
	serverVersion = "1.0.0"
)

func main() {
	query := flag.String("query", "", "run one synchronous lookup and print the result instead of serving")
	format := flag.String("format", "JSON", "output format for -query: JSON, CSV, or XYZ")
	include3D := flag.Bool("include-3d", false, "include 3D structure information (XYZ format only)")
	batchFile := flag.String("batch-file", "", "process a TSV file of compounds into XYZ files instead of serving")
	batchOut := flag.String("batch-output", "xyz", "output directory for -batch-file")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	logger := newLogger(cfg)

	client := NewPubChemClient(cfg, logger)
	xyzGen := NewXYZGenerator(client, cfg.CacheDir, logger)
	fetcher := NewFetcher(client, xyzGen)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *query != "":
		runQuery(ctx, fetcher, *query, *format, *include3D)
	case *batchFile != "":
		bp := NewBatchProcessor(client, cfg.BatchDelay, logger)
		if err := bp.ProcessFile(ctx, *batchFile, *batchOut); err != nil {
			fmt.Fprintln(os.Stderr, "error:", err)
			os.Exit(1)
		}
	default:
		runServer(ctx, cfg, fetcher, logger)
	}
}

// runQuery performs one synchronous lookup and prints the rendered result.
func runQuery(ctx context.Context, fetcher *Fetcher, query, format string, include3D bool) {
	fmtName, err := validateArgs(query, format, include3D)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	result, err := fetcher.FetchAndRender(ctx, query, fmtName, include3D)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	fmt.Println(result)
}

// runServer starts the request store, worker pool, janitor, and the MCP
// stdio server, and blocks until the context is cancelled or the transport
// closes.
func runServer(ctx context.Context, cfg *Config, fetcher *Fetcher, logger *slog.Logger) {
	store := NewRequestStore(logger)
	pool := NewWorkerPool(store, fetcher.FetchAndRender, cfg.Workers, logger)
	defer pool.Close()

	go runJanitor(ctx, store, cfg.CleanupInterval, cfg.StatusTTL, logger)

	server := mcp.NewServer(&mcp.Implementation{Name: serverName, Version: serverVersion}, nil)
	registerTools(server, &toolHandlers{store: store, pool: pool, fetcher: fetcher, logger: logger})

	logger.Info("pubchem MCP server running on stdio",
		"workers", cfg.Workers,
		"status_ttl", cfg.StatusTTL,
		"cleanup_interval", cfg.CleanupInterval,
	)
	if err := server.Run(ctx, &mcp.StdioTransport{}); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}
