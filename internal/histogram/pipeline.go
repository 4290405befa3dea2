package histogram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"dupesieve/internal/store"
)

// Committer is the subset of *store.Store the pipeline needs.
type Committer interface {
	InsertHistogramsBatch(ctx context.Context, recs []store.HistogramRecord) error
}

// Run drives CalculateHistogram concurrently over pending using a pool
// of size workers, funnelling results through one channel to a serial
// consumer that batches batchSize records per transaction — identical
// shape to internal/digest.Run (spec §4.4: "identical to §4.3").
func Run(ctx context.Context, pending []store.PendingVideo, workers, batchSize int, st Committer) error {
	if workers < 1 {
		workers = 1
	}
	if len(pending) == 0 {
		return nil
	}

	videoChan := make(chan store.PendingVideo, len(pending))
	resultChan := make(chan store.HistogramRecord, len(pending))

	sourceSize := make(map[int64]int64, len(pending))
	for _, v := range pending {
		sourceSize[v.ID] = v.Size
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for v := range videoChan {
				hist, err := CalculateHistogram(v.Path)
				if err != nil {
					slog.Warn("histogram: skipping file", slog.String("path", v.Path), slog.Any("error", err))
					continue
				}
				resultChan <- store.HistogramRecord{ID: v.ID, Histogram: hist}
			}
		}()
	}

	for _, v := range pending {
		videoChan <- v
	}
	close(videoChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	return consume(ctx, resultChan, batchSize, st, sourceSize)
}

// consume batches HistogramRecords into commits of batchSize, logging
// the source-video throughput (MiB/s, videos/s) between commits — spec
// §4.3 point 4 names this for the Digest Pipeline; SPEC_FULL §4
// extends the same logging here.
func consume(ctx context.Context, results <-chan store.HistogramRecord, batchSize int, st Committer, sourceSize map[int64]int64) error {
	buf := make([]store.HistogramRecord, 0, batchSize)
	var bytesSinceLastCommit int64
	lastCommit := time.Now()

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		if err := st.InsertHistogramsBatch(ctx, buf); err != nil {
			return fmt.Errorf("histogram pipeline commit: %w", err)
		}

		elapsed := time.Since(lastCommit).Seconds()
		if elapsed > 0 {
			throughput := humanize.IBytes(uint64(float64(bytesSinceLastCommit) / elapsed))
			slog.Info("histogram pipeline commit",
				slog.Int("videos", len(buf)),
				slog.String("throughput", throughput+"/s"),
				slog.Float64("videos_per_s", float64(len(buf))/elapsed),
			)
		}

		buf = buf[:0]
		bytesSinceLastCommit = 0
		lastCommit = time.Now()
		return nil
	}

	for rec := range results {
		buf = append(buf, rec)
		bytesSinceLastCommit += sourceSize[rec.ID]
		if len(buf) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}
