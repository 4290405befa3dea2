// Package digest implements the Digest Pipeline (spec §4.3): a worker
// pool computes a 64-byte blake2b digest per path, a single consumer
// batches the results into transactional commits. Grounded on the
// worker-pool/channel shape of the teacher's
// internal/application.computeXXHashes, generalized from xxhash over a
// fixed buffer to blake2b over chunked reads.
package digest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/crypto/blake2b"

	"dupesieve/internal/store"
)

const chunkSize = 4 * 1024

// Committer is the subset of *store.Store the pipeline needs; it lets
// tests and internal/fabric.Guarded both satisfy the interface.
type Committer interface {
	InsertFilesBatch(ctx context.Context, recs []store.FileRecord) (int, error)
}

// Result is a successfully digested file, ready for the Store.
type Result struct {
	Path   string
	Digest []byte
	Size   int64
}

// Run digests every path in paths using a pool of size workers (spec
// default 4), committing to store in batches of batchSize (spec
// default 1024). Per-file errors are logged and skipped; a commit
// failure is fatal and returned.
func Run(ctx context.Context, paths []string, workers, batchSize int, st Committer) error {
	if workers < 1 {
		workers = 1
	}
	if len(paths) == 0 {
		return nil
	}

	pathChan := make(chan string, len(paths))
	resultChan := make(chan Result, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for path := range pathChan {
				res, err := digestFile(path)
				if err != nil {
					slog.Warn("digest: skipping file", slog.String("path", path), slog.Any("error", err))
					continue
				}
				resultChan <- res
			}
		}()
	}

	for _, p := range paths {
		pathChan <- p
	}
	close(pathChan)

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	return consume(ctx, resultChan, batchSize, st)
}

// consume drains resultChan into batches of batchSize, committing each
// full (or final partial) batch in one transaction, logging MiB/s and
// files/s between commits (spec §4.3 point 4).
func consume(ctx context.Context, results <-chan Result, batchSize int, st Committer) error {
	buf := make([]store.FileRecord, 0, batchSize)
	var bytesSinceLastCommit int64
	lastCommit := time.Now()

	flush := func() error {
		if len(buf) == 0 {
			return nil
		}
		n, err := st.InsertFilesBatch(ctx, buf)
		if err != nil {
			return fmt.Errorf("digest pipeline commit: %w", err)
		}

		elapsed := time.Since(lastCommit).Seconds()
		if elapsed > 0 {
			throughput := humanize.IBytes(uint64(float64(bytesSinceLastCommit) / elapsed))
			slog.Info("digest pipeline commit",
				slog.Int("files", n),
				slog.String("throughput", throughput+"/s"),
				slog.Float64("files_per_s", float64(n)/elapsed),
			)
		}

		buf = buf[:0]
		bytesSinceLastCommit = 0
		lastCommit = time.Now()
		return nil
	}

	for res := range results {
		buf = append(buf, store.FileRecord{Path: res.Path, Digest: res.Digest, Size: res.Size})
		bytesSinceLastCommit += res.Size
		if len(buf) >= batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// digestFile computes the blake2b-512 digest and size of path, reading
// in chunkSize chunks with strict EOF semantics (spec §9 open question,
// resolved): io.ReadFull's final short chunk (io.ErrUnexpectedEOF) is
// consumed and counted like any other data before the loop ends, so a
// file whose length isn't a multiple of chunkSize is hashed in full —
// unlike the source's bug of treating any short read as a stop signal.
func digestFile(path string) (Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return Result{}, fmt.Errorf("opening %q: %w", path, err)
	}
	defer f.Close()

	h, err := blake2b.New512(nil)
	if err != nil {
		return Result{}, fmt.Errorf("constructing blake2b hasher: %w", err)
	}

	buf := make([]byte, chunkSize)
	var size int64
	for {
		n, readErr := io.ReadFull(f, buf)
		if n > 0 {
			h.Write(buf[:n])
			size += int64(n)
		}
		if readErr == io.EOF {
			break
		}
		if readErr == io.ErrUnexpectedEOF {
			break
		}
		if readErr != nil {
			return Result{}, fmt.Errorf("reading %q: %w", path, readErr)
		}
	}

	return Result{Path: path, Digest: h.Sum(nil), Size: size}, nil
}
