// Package indexer ties the Walker, Reconciliation, Digest Pipeline, and
// Histogram Pipeline together into the single background run the
// Concurrency Fabric's indexer task performs (spec §2 data-flow
// diagram, §4.7).
package indexer

import (
	"context"
	"fmt"
	"log/slog"

	"dupesieve/internal/digest"
	"dupesieve/internal/fabric"
	"dupesieve/internal/histogram"
	"dupesieve/internal/reconcile"
	"dupesieve/internal/walker"
)

// Options configures one indexing run, mirroring the CLI flags of
// spec §6 that reach the core.
type Options struct {
	Root            string
	CleanUnfound    bool
	Threads         int
	CommitBatchSize int
	RunVideohash    bool
}

// Run performs one full pass: walk the root, reconcile against the
// Store, dispatch unknown paths to the Digest Pipeline, and — when
// requested — dispatch video rows missing a histogram to the Histogram
// Pipeline. It returns the Walker's skipped-entry count for the
// caller's summary output.
func Run(ctx context.Context, guarded *fabric.Guarded, opts Options) (int, error) {
	if opts.Root == "" {
		return 0, nil
	}

	walked, err := walker.Walk(opts.Root)
	if err != nil {
		return 0, fmt.Errorf("indexer: walking %q: %w", opts.Root, err)
	}
	slog.Info("indexer: walk complete", slog.Int("files", len(walked.Paths)), slog.Int("skipped", walked.Skipped))

	diff, err := reconcile.Compute(ctx, guarded, walked.Paths)
	if err != nil {
		return walked.Skipped, err
	}
	slog.Info("indexer: reconciliation complete",
		slog.Int("orphans", len(diff.Orphans)),
		slog.Int("unknowns", len(diff.Unknowns)))

	if opts.CleanUnfound {
		if err := reconcile.CleanUnfound(ctx, guarded, diff); err != nil {
			return walked.Skipped, err
		}
	}

	if err := digest.Run(ctx, diff.Unknowns, opts.Threads, opts.CommitBatchSize, guarded); err != nil {
		return walked.Skipped, fmt.Errorf("indexer: digest pipeline: %w", err)
	}

	if opts.RunVideohash {
		pending, err := guarded.ListVideosMissingHistogram(ctx)
		if err != nil {
			return walked.Skipped, fmt.Errorf("indexer: listing videos missing histogram: %w", err)
		}
		slog.Info("indexer: histogram pipeline starting", slog.Int("pending", len(pending)))
		if err := histogram.Run(ctx, pending, opts.Threads, opts.CommitBatchSize, guarded); err != nil {
			return walked.Skipped, fmt.Errorf("indexer: histogram pipeline: %w", err)
		}
	}

	return walked.Skipped, nil
}
