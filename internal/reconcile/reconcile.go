// Package reconcile computes the set difference between what the
// Walker found on disk and what the Store already knows (spec §4.8).
// Grounded on original_source/src/main.rs's
// remove_outdated_files/filter_out_files_already_in_database.
package reconcile

import (
	"context"
	"fmt"

	"dupesieve/internal/store"
)

// Deleter is the subset of the Store (or Guarded fabric) reconciliation
// needs.
type Deleter interface {
	ListFiles(ctx context.Context) ([]store.FileRecord, error)
	DeleteFile(ctx context.Context, id int64) (int, error)
}

// Diff is the outcome of comparing a disk listing against the Store.
type Diff struct {
	Orphans  []store.FileRecord // in Store, not on disk
	Unknowns []string           // on disk, not in Store
}

// Compute classifies every Store row and every disk path into orphans,
// unknowns, and the untouched known intersection (spec §4.8).
func Compute(ctx context.Context, st Deleter, diskPaths []string) (Diff, error) {
	known, err := st.ListFiles(ctx)
	if err != nil {
		return Diff{}, fmt.Errorf("reconcile: listing store files: %w", err)
	}

	onDisk := make(map[string]bool, len(diskPaths))
	for _, p := range diskPaths {
		onDisk[p] = true
	}

	inStore := make(map[string]bool, len(known))
	var diff Diff
	for _, rec := range known {
		inStore[rec.Path] = true
		if !onDisk[rec.Path] {
			diff.Orphans = append(diff.Orphans, rec)
		}
	}
	for _, p := range diskPaths {
		if !inStore[p] {
			diff.Unknowns = append(diff.Unknowns, p)
		}
	}
	return diff, nil
}

// CleanUnfound deletes every orphan by id, as --clean-unfound requests.
func CleanUnfound(ctx context.Context, st Deleter, diff Diff) error {
	for _, rec := range diff.Orphans {
		if _, err := st.DeleteFile(ctx, rec.ID); err != nil {
			return fmt.Errorf("reconcile: deleting orphan %d (%s): %w", rec.ID, rec.Path, err)
		}
	}
	return nil
}
