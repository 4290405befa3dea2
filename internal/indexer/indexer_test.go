package indexer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupesieve/internal/fabric"
	"dupesieve/internal/store"
)

func TestRunIndexesNewFilesAndReconciles(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("hello"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "b.txt"), []byte("world"), 0o644))

	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()
	guarded := fabric.New(st)

	skipped, err := Run(context.Background(), guarded, Options{
		Root:            root,
		Threads:         2,
		CommitBatchSize: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)

	files, err := guarded.ListFiles(context.Background())
	require.NoError(t, err)
	assert.Len(t, files, 2)
}

func TestRunWithEmptyRootIsNoop(t *testing.T) {
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()
	guarded := fabric.New(st)

	skipped, err := Run(context.Background(), guarded, Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, skipped)
}
