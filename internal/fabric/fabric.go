// Package fabric is the Concurrency Fabric (spec §4.7): a single mutex
// guarding every access to the Store so the background indexer and the
// query server's handlers never race. No finer-grained locking is
// permitted — the Store is a single-writer design.
package fabric

import (
	"context"
	"sync"

	"dupesieve/internal/store"
)

// Guarded wraps a *store.Store behind a sync.Mutex. Every exported
// method takes the lock for its duration; VideoHashView is computed
// inside one Lock/Unlock pair so a concurrent indexer cannot change the
// underlying data mid-snapshot.
type Guarded struct {
	mu sync.Mutex
	st *store.Store
}

// New wraps st for shared access.
func New(st *store.Store) *Guarded {
	return &Guarded{st: st}
}

func (g *Guarded) InsertFile(ctx context.Context, rec store.FileRecord) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.InsertFile(ctx, rec)
}

func (g *Guarded) InsertFilesBatch(ctx context.Context, recs []store.FileRecord) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.InsertFilesBatch(ctx, recs)
}

func (g *Guarded) ListFiles(ctx context.Context) ([]store.FileRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.ListFiles(ctx)
}

func (g *Guarded) LookupFile(ctx context.Context, id int64) (store.FileRecord, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.LookupFile(ctx, id)
}

func (g *Guarded) DeleteFile(ctx context.Context, id int64) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.DeleteFile(ctx, id)
}

func (g *Guarded) RenameFile(ctx context.Context, id int64, newPath string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.RenameFile(ctx, id, newPath)
}

func (g *Guarded) InsertHistogramsBatch(ctx context.Context, recs []store.HistogramRecord) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.InsertHistogramsBatch(ctx, recs)
}

func (g *Guarded) ListVideosMissingHistogram(ctx context.Context) ([]store.PendingVideo, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.ListVideosMissingHistogram(ctx)
}

// VideoHashView computes the snapshot entirely inside one critical
// section (spec §4.7).
func (g *Guarded) VideoHashView(ctx context.Context) (store.VideoHashView, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.BuildVideoHashView(ctx)
}

// Close releases the underlying Store.
func (g *Guarded) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.st.Close()
}
