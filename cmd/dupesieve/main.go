package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"dupesieve/internal/cluster"
	"dupesieve/internal/config"
	"dupesieve/internal/fabric"
	"dupesieve/internal/indexer"
	"dupesieve/internal/server"
	"dupesieve/internal/store"
)

func main() {
	os.Exit(run())
}

// run wires config parsing, logging, the Store, one indexing pass, and
// either console output or the query server, returning the process's
// exit code (spec §6: 0 clean, 1 fatal).
func run() int {
	var cfg config.Config
	cfg.ParseArgs()

	logger, _ := config.SetupLogger(config.DefaultLogFilePath, cfg.LogLevel())
	slog.SetDefault(logger)

	st, err := store.Open(cfg.DatabasePath, cfg.ResetDatabase)
	if err != nil {
		slog.Error("failed to open store", slog.Any("error", err))
		return 1
	}
	defer st.Close()

	guarded := fabric.New(st)
	ctx := context.Background()

	// The indexer runs in a background goroutine, contending with the
	// query server's handlers for fabric.Guarded's lock, and is joined
	// just before exit — mirroring original_source/src/main.rs's
	// thread::spawn(...)/handle.join() split (spec §4.7).
	indexDone := make(chan error, 1)
	go func() {
		skipped, err := indexer.Run(ctx, guarded, indexer.Options{
			Root:            cfg.Path,
			CleanUnfound:    cfg.CleanUnfound,
			Threads:         cfg.Threads,
			CommitBatchSize: cfg.CommitBatchSize,
			RunVideohash:    cfg.Videohash,
		})
		if err != nil {
			indexDone <- err
			return
		}
		if skipped > 0 {
			slog.Warn("walker skipped unreadable entries", slog.Int("count", skipped))
		}
		indexDone <- nil
	}()

	var code int
	if cfg.NoWeb {
		code = printClusters(ctx, guarded)
	} else {
		code = serveWeb(ctx, guarded, cfg)
	}

	if err := <-indexDone; err != nil {
		slog.Error("indexing failed", slog.Any("error", err))
		return 1
	}
	return code
}

// printClusters writes the exact-duplicate bags to stdout and prints a
// total-size-saved summary, reinstating
// original_source/src/interface.rs's show_results_in_console (spec
// SPEC_FULL §4 supplemented features) for --no-web runs.
func printClusters(ctx context.Context, guarded *fabric.Guarded) int {
	groups, err := cluster.ExactDuplicates(ctx, guarded)
	if err != nil {
		slog.Error("clustering failed", slog.Any("error", err))
		return 1
	}

	var totalSaved int64
	for _, bag := range groups {
		var maxSize int64
		for i, f := range bag {
			if i > 0 {
				totalSaved += f.Size
			}
			if f.Size > maxSize {
				maxSize = f.Size
			}
			fmt.Printf("%.2f GB: %s\n", float64(f.Size)/(1024*1024*1024), f.Path)
		}
		fmt.Println()
	}
	fmt.Printf("Total saved size: %.2f GB\n", float64(totalSaved)/(1024*1024*1024))
	return 0
}

func serveWeb(ctx context.Context, guarded *fabric.Guarded, cfg config.Config) int {
	if cfg.AllowPreview && cfg.BindAddress != "127.0.0.1" {
		slog.Warn("binding to a public interface with --allow-preview enabled")
	}

	srv := server.New(guarded, cfg.AllowPreview)
	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	slog.Info("query server listening", slog.String("addr", addr))

	if err := http.ListenAndServe(addr, srv); err != nil {
		slog.Error("query server failed", slog.Any("error", err))
		return 1
	}
	return 0
}
