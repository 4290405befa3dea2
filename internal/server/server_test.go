package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dupesieve/internal/cluster"
	"dupesieve/internal/fabric"
	"dupesieve/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return New(fabric.New(st), false)
}

func TestHandleExactReturnsDuplicateGroups(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()
	srv := New(fabric.New(st), false)

	for i, d := range []byte{0xAA, 0xAA, 0xAB} {
		_, err := st.InsertFile(ctx, store.FileRecord{Path: "/tmp/" + string(rune('a'+i)), Digest: []byte{d, 0, 0, 0}, Size: 1})
		require.NoError(t, err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var groups [][]cluster.FileEntry
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &groups))
	require.Len(t, groups, 1)
	assert.Len(t, groups[0], 2)
}

func TestHandleRemoveMissingFileReturnsDoesNotExist(t *testing.T) {
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()
	srv := New(fabric.New(st), false)

	id, err := st.InsertFile(context.Background(), store.FileRecord{Path: "/tmp/gone-forever-xyz", Digest: []byte{0x01}, Size: 1})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/remove/"+itoa(id), nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "does-not-exist", w.Body.String())
}

func TestHandlePreviewForbiddenWhenDisabled(t *testing.T) {
	srv := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/preview/1", nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func itoa(n int64) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}
