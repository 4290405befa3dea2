package cluster

import (
	"sort"

	"dupesieve/internal/store"
)

// PerceptualDuplicates groups videos whose histogram L1-distance is
// below threshold, using union-find with path-halving over the
// VideoHashView's distance matrix (spec §4.6). Grounded on
// original_source/src/videohash.rs's find_similar_files/_find/_union,
// with the all-zero-histogram exclusion applied to both sides of each
// pair (spec §4.6 point 3 / P6), not just one as the source does.
func PerceptualDuplicates(view store.VideoHashView, threshold int16) [][]FileEntry {
	n := len(view.Files)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	isZero := make([]bool, n)
	for i, h := range view.Hists {
		isZero[i] = allZero(h)
	}

	for i := 0; i < n; i++ {
		if isZero[i] {
			continue
		}
		for j := i; j < n; j++ {
			if isZero[j] {
				continue
			}
			if view.Distance[i][j] < threshold {
				union(i, j, parent)
			}
		}
	}

	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		root := find(i, parent)
		groups[root] = append(groups[root], i)
	}

	var bags [][]FileEntry
	for _, idxs := range groups {
		if len(idxs) < 2 {
			continue
		}
		entries := make([]FileEntry, 0, len(idxs))
		for _, idx := range idxs {
			f := view.Files[idx]
			entries = append(entries, FileEntry{ID: f.ID, Path: f.Path, Size: f.Size})
		}
		bags = append(bags, entries)
	}

	sort.Slice(bags, func(i, j int) bool {
		return minSize(bags[i]) > minSize(bags[j])
	})
	return bags
}

// find locates the root of x, halving the path as it walks (no union
// by rank, per spec §9's "path-halving without union-by-rank is good
// enough" note).
func find(x int, parent []int) int {
	for parent[x] != x {
		next := parent[x]
		parent[x] = parent[next]
		x = next
	}
	return x
}

func union(x, y int, parent []int) {
	xRoot := find(x, parent)
	yRoot := find(y, parent)
	if xRoot == yRoot {
		return
	}
	parent[xRoot] = yRoot
}

func allZero(h []byte) bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

func minSize(entries []FileEntry) int64 {
	min := entries[0].Size
	for _, e := range entries[1:] {
		if e.Size < min {
			min = e.Size
		}
	}
	return min
}
