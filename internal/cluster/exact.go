// Package cluster implements the two clustering algorithms over the
// persisted index (spec §4.5, §4.6).
package cluster

import (
	"context"
	"fmt"
	"sort"

	"dupesieve/internal/store"
)

// FileEntry is a hydrated ResultBag member (spec §4.5 point 5).
type FileEntry struct {
	ID   int64
	Path string
	Size int64
}

// Lookuper is the subset of *store.Store exact clustering needs.
type Lookuper interface {
	ListFiles(ctx context.Context) ([]store.FileRecord, error)
	LookupFile(ctx context.Context, id int64) (store.FileRecord, error)
}

type digestBag struct {
	digest []byte
	ids    []int64
}

// ExactDuplicates groups FileRecords by identical digest, prefix-
// bucketed on the first 4 bytes for speed, per spec §4.5. Grounded on
// original_source/src/similarities.rs's find_similarities/
// into_resultbag.
func ExactDuplicates(ctx context.Context, st Lookuper) ([][]FileEntry, error) {
	files, err := st.ListFiles(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading files for exact clustering: %w", err)
	}

	buckets := make(map[[4]byte][]*digestBag)
	for _, f := range files {
		if len(f.Digest) < 4 {
			continue
		}
		var prefix [4]byte
		copy(prefix[:], f.Digest[:4])

		candidates := buckets[prefix]
		inserted := false
		for _, bag := range candidates {
			if bytesEqual(bag.digest, f.Digest) {
				bag.ids = append(bag.ids, f.ID)
				inserted = true
				break
			}
		}
		if !inserted {
			buckets[prefix] = append(buckets[prefix], &digestBag{digest: f.Digest, ids: []int64{f.ID}})
		}
	}

	var idGroups [][]int64
	for _, bags := range buckets {
		for _, bag := range bags {
			if len(bag.ids) >= 2 {
				sort.Slice(bag.ids, func(i, j int) bool { return bag.ids[i] < bag.ids[j] })
				idGroups = append(idGroups, bag.ids)
			}
		}
	}

	result := make([][]FileEntry, 0, len(idGroups))
	for _, ids := range idGroups {
		entries := make([]FileEntry, 0, len(ids))
		for _, id := range ids {
			f, err := st.LookupFile(ctx, id)
			if err != nil {
				return nil, fmt.Errorf("hydrating file %d: %w", id, err)
			}
			entries = append(entries, FileEntry{ID: f.ID, Path: f.Path, Size: f.Size})
		}
		result = append(result, entries)
	}

	sort.Slice(result, func(i, j int) bool { return result[i][0].Size > result[j][0].Size })
	return result, nil
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
