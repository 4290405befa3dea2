package fabric

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dupesieve/internal/store"
)

func TestGuardedSerializesConcurrentWriters(t *testing.T) {
	st, err := store.Open(":memory:", false)
	require.NoError(t, err)
	defer st.Close()

	g := New(st)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = g.InsertFile(ctx, store.FileRecord{
				Path:   pathFor(i),
				Digest: []byte{byte(i)},
				Size:   int64(i),
			})
		}(i)
	}
	wg.Wait()

	files, err := g.ListFiles(ctx)
	require.NoError(t, err)
	require.Len(t, files, 50)
}

func pathFor(i int) string {
	return "/tmp/file" + string(rune('a'+i%26)) + string(rune('0'+i/26))
}
