package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndLookupFile(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertFile(ctx, FileRecord{Path: "/tmp/a", Digest: []byte{0xAA}, Size: 10})
	require.NoError(t, err)

	rec, err := s.LookupFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/a", rec.Path)
	assert.Equal(t, int64(10), rec.Size)
}

func TestInsertFileDuplicatePathIsIgnoredInsert(t *testing.T) {
	// spec §8 scenario 4: duplicate path insert returns IgnoredInsert
	// and the Store keeps the first digest.
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertFile(ctx, FileRecord{Path: "/tmp/a", Digest: []byte{0xAA}, Size: 1})
	require.NoError(t, err)

	_, err = s.InsertFile(ctx, FileRecord{Path: "/tmp/a", Digest: []byte{0xBB}, Size: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrIgnoredInsert))

	files, err := s.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, []byte{0xAA}, files[0].Digest)
}

func TestInsertFilesBatchAllOrNothing(t *testing.T) {
	// spec §8 P2.
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertFile(ctx, FileRecord{Path: "/tmp/dup", Digest: []byte{0x01}, Size: 1})
	require.NoError(t, err)

	recs := []FileRecord{
		{Path: "/tmp/x", Digest: []byte{0x02}, Size: 1},
		{Path: "/tmp/dup", Digest: []byte{0x03}, Size: 1}, // collides
		{Path: "/tmp/y", Digest: []byte{0x04}, Size: 1},
	}
	_, err = s.InsertFilesBatch(ctx, recs)
	require.Error(t, err)

	files, err := s.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 1, "partial batch must roll back entirely")
}

func TestDeleteFileIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertFile(ctx, FileRecord{Path: "/tmp/a", Digest: []byte{0xAA}, Size: 1})
	require.NoError(t, err)

	n, err := s.DeleteFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = s.DeleteFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestRenameFilePreservesDigestAndSize(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertFile(ctx, FileRecord{Path: "/tmp/old", Digest: []byte{0xAA}, Size: 42})
	require.NoError(t, err)

	require.NoError(t, s.RenameFile(ctx, id, "/tmp/new"))

	rec, err := s.LookupFile(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/new", rec.Path)
	assert.Equal(t, []byte{0xAA}, rec.Digest)
	assert.Equal(t, int64(42), rec.Size)
}

func TestRenameFileNotFound(t *testing.T) {
	s := newTestStore(t)
	err := s.RenameFile(context.Background(), 999, "/tmp/nope")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListVideosMissingHistogramFiltersByExtension(t *testing.T) {
	// spec §8 scenario 6.
	s := newTestStore(t)
	ctx := context.Background()

	paths := []string{"/a.mp4", "/b.jpg", "/c.wmv", "/d.avi"}
	for _, p := range paths {
		_, err := s.InsertFile(ctx, FileRecord{Path: p, Digest: []byte{0x00}, Size: 1})
		require.NoError(t, err)
	}

	pending, err := s.ListVideosMissingHistogram(ctx)
	require.NoError(t, err)

	got := make([]string, 0, len(pending))
	for _, p := range pending {
		got = append(got, p.Path)
	}
	assert.ElementsMatch(t, []string{"/a.mp4", "/c.wmv", "/d.avi"}, got)
}

func TestListVideosMissingHistogramExcludesAlreadyHashed(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	id, err := s.InsertFile(ctx, FileRecord{Path: "/a.mp4", Digest: []byte{0x00}, Size: 1})
	require.NoError(t, err)
	require.NoError(t, s.InsertHistogramsBatch(ctx, []HistogramRecord{{ID: id, Histogram: make([]byte, 64)}}))

	pending, err := s.ListVideosMissingHistogram(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestBuildVideoHashViewDistanceMatrixSymmetricAndZeroDiagonal(t *testing.T) {
	// spec §8 P5.
	s := newTestStore(t)
	ctx := context.Background()

	h1 := []byte{0xFF, 0x00, 0xFF, 0x00}
	h2 := []byte{0x00, 0xFF, 0x00, 0xFF}
	id1, err := s.InsertFile(ctx, FileRecord{Path: "/v1.mp4", Digest: []byte{0x01}, Size: 1})
	require.NoError(t, err)
	id2, err := s.InsertFile(ctx, FileRecord{Path: "/v2.mp4", Digest: []byte{0x02}, Size: 1})
	require.NoError(t, err)
	require.NoError(t, s.InsertHistogramsBatch(ctx, []HistogramRecord{
		{ID: id1, Histogram: h1},
		{ID: id2, Histogram: h2},
	}))

	view, err := s.BuildVideoHashView(ctx)
	require.NoError(t, err)
	require.Len(t, view.Files, 2)

	assert.Equal(t, int16(0), view.Distance[0][0])
	assert.Equal(t, int16(0), view.Distance[1][1])
	assert.Equal(t, view.Distance[0][1], view.Distance[1][0])
	assert.Equal(t, int16(4*255), view.Distance[0][1])
}
