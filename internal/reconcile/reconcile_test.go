package reconcile

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupesieve/internal/store"
)

func seedFive(t *testing.T, st *store.Store) []string {
	t.Helper()
	ctx := context.Background()
	paths := []string{"/tmp/1", "/tmp/2", "/tmp/3", "/tmp/4", "/tmp/5"}
	for _, p := range paths {
		_, err := st.InsertFile(ctx, store.FileRecord{Path: p, Digest: []byte{0x01}, Size: 1})
		require.NoError(t, err)
	}
	return paths
}

func TestReconciliationRemovesOrphanOnCleanUnfound(t *testing.T) {
	// spec §8 scenario 3.
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	paths := seedFive(t, st)
	diskPaths := []string{paths[0], paths[1], paths[2], paths[4]} // missing the 4th

	diff, err := Compute(ctx, st, diskPaths)
	require.NoError(t, err)
	require.Len(t, diff.Orphans, 1)
	assert.Equal(t, paths[3], diff.Orphans[0].Path)

	require.NoError(t, CleanUnfound(ctx, st, diff))

	remaining, err := st.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 4)

	var remainingPaths []string
	for _, r := range remaining {
		remainingPaths = append(remainingPaths, r.Path)
	}
	assert.Equal(t, []string{paths[0], paths[1], paths[2], paths[4]}, remainingPaths)
}

func TestReconciliationIsIdempotent(t *testing.T) {
	// spec §8 P3.
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	paths := seedFive(t, st)

	diff1, err := Compute(ctx, st, paths)
	require.NoError(t, err)
	require.NoError(t, CleanUnfound(ctx, st, diff1))

	diff2, err := Compute(ctx, st, paths)
	require.NoError(t, err)
	require.NoError(t, CleanUnfound(ctx, st, diff2))

	final, err := st.ListFiles(ctx)
	require.NoError(t, err)
	assert.Len(t, final, 5)
}
