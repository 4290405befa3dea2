// Package store implements the persisted index (spec §3, §4.1): two
// sqlite relations accessed through database/sql, with scany doing the
// struct-scanning the teacher's dbstore package uses throughout.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// Store is the single-writer persisted index. It has no internal
// locking of its own — internal/fabric.Guarded is what serializes
// concurrent access; Store's methods are plain, unlocked database/sql
// calls, exactly the shape of the teacher's videoRepo.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the sqlite file at path, ensures the schema
// exists, and — when reset is true — drops and recreates both
// relations before returning, per spec §4.1's open(path, reset).
func Open(path string, reset bool) (*Store, error) {
	db, err := openDB(path)
	if err != nil {
		return nil, err
	}
	if reset {
		if err := resetSchema(db); err != nil {
			db.Close()
			return nil, err
		}
	}
	return &Store{db: db}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// InsertFile inserts a FileRecord (its id field is ignored) and returns
// the assigned id. A duplicate path makes the INSERT fail with sqlite's
// UNIQUE constraint violation, leaving the existing row unchanged; the
// Store reports that as ErrIgnoredInsert so the caller is forced to
// notice, per spec §4.1.
func (s *Store) InsertFile(ctx context.Context, rec FileRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO file_digests (path, digest, size) VALUES (?, ?, ?);`,
		rec.Path, rec.Digest, rec.Size)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, ErrIgnoredInsert
		}
		return 0, fmt.Errorf("insert file %q: %w", rec.Path, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("retrieve inserted id for %q: %w", rec.Path, err)
	}
	return id, nil
}

// InsertFilesBatch inserts every record inside one transaction,
// rolling back entirely on the first failure (spec §4.1 P2: all-or-
// nothing). It returns the number of rows committed.
func (s *Store) InsertFilesBatch(ctx context.Context, recs []FileRecord) (int, error) {
	if len(recs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin batch insert transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO file_digests (path, digest, size) VALUES (?, ?, ?);`)
	if err != nil {
		return 0, fmt.Errorf("prepare batch insert statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err = stmt.ExecContext(ctx, rec.Path, rec.Digest, rec.Size); err != nil {
			if isUniqueViolation(err) {
				return 0, fmt.Errorf("batch insert %q: %w", rec.Path, ErrIgnoredInsert)
			}
			return 0, fmt.Errorf("batch insert %q: %w", rec.Path, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit batch insert transaction: %w", err)
	}
	return len(recs), nil
}

// ListFiles returns every FileRecord in insertion (id ascending) order.
func (s *Store) ListFiles(ctx context.Context) ([]FileRecord, error) {
	var recs []FileRecord
	if err := sqlscan.Select(ctx, s.db, &recs, `SELECT id, path, digest, size FROM file_digests ORDER BY id;`); err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	return recs, nil
}

// LookupFile fetches a single FileRecord by id.
func (s *Store) LookupFile(ctx context.Context, id int64) (FileRecord, error) {
	var rec FileRecord
	err := sqlscan.Get(ctx, s.db, &rec, `SELECT id, path, digest, size FROM file_digests WHERE id = ?;`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return FileRecord{}, ErrNotFound
		}
		return FileRecord{}, fmt.Errorf("looking up file %d: %w", id, err)
	}
	return rec, nil
}

// DeleteFile removes a row by id, returning the number of rows removed
// (0 or 1, never an error on a missing id — spec §4.1).
func (s *Store) DeleteFile(ctx context.Context, id int64) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM file_digests WHERE id = ?;`, id)
	if err != nil {
		return 0, fmt.Errorf("deleting file %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("counting deleted rows for %d: %w", id, err)
	}
	return int(n), nil
}

// RenameFile updates only the path of a row; digest and size are
// preserved, per spec §4.1.
func (s *Store) RenameFile(ctx context.Context, id int64, newPath string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE file_digests SET path = ? WHERE id = ?;`, newPath, id)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicatePath
		}
		return fmt.Errorf("renaming file %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("counting renamed rows for %d: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertHistogramsBatch upserts HistogramRecords inside one
// transaction. A histogram with no corresponding file_digests row
// violates the foreign key and aborts the whole batch.
func (s *Store) InsertHistogramsBatch(ctx context.Context, recs []HistogramRecord) error {
	if len(recs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin histogram batch transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO video_hash (id, histogram) VALUES (?, ?);`)
	if err != nil {
		return fmt.Errorf("prepare histogram batch statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range recs {
		if _, err = stmt.ExecContext(ctx, rec.ID, rec.Histogram); err != nil {
			return fmt.Errorf("inserting histogram for file %d: %w", rec.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit histogram batch transaction: %w", err)
	}
	return nil
}

// ListVideosMissingHistogram returns the (id, path, size) of every row
// whose lowercased path extension is video-like and has no
// HistogramRecord yet, per spec §4.1 / §8 scenario 6.
func (s *Store) ListVideosMissingHistogram(ctx context.Context) ([]PendingVideo, error) {
	var all []PendingVideo
	query := `
		SELECT f.id, f.path, f.size
		FROM file_digests f
		LEFT JOIN video_hash v ON v.id = f.id
		WHERE v.id IS NULL
		ORDER BY f.id;
	`
	if err := sqlscan.Select(ctx, s.db, &all, query); err != nil {
		return nil, fmt.Errorf("listing videos missing histogram: %w", err)
	}

	pending := make([]PendingVideo, 0, len(all))
	for _, rec := range all {
		ext := strings.ToLower(filepath.Ext(rec.Path))
		if VideoExtensions[ext] {
			pending = append(pending, rec)
		}
	}
	return pending, nil
}

// ListVideosWithHistogram returns every (FileRecord, histogram) pair,
// the raw material for VideoHashView.
func (s *Store) ListVideosWithHistogram(ctx context.Context) ([]HashedVideo, error) {
	var rows []struct {
		ID        int64  `db:"id"`
		Path      string `db:"path"`
		Digest    []byte `db:"digest"`
		Size      int64  `db:"size"`
		Histogram []byte `db:"histogram"`
	}
	query := `
		SELECT f.id, f.path, f.digest, f.size, v.histogram
		FROM file_digests f
		INNER JOIN video_hash v ON v.id = f.id
		ORDER BY f.id;
	`
	if err := sqlscan.Select(ctx, s.db, &rows, query); err != nil {
		return nil, fmt.Errorf("listing videos with histogram: %w", err)
	}

	out := make([]HashedVideo, 0, len(rows))
	for _, r := range rows {
		out = append(out, HashedVideo{
			File:      FileRecord{ID: r.ID, Path: r.Path, Digest: r.Digest, Size: r.Size},
			Histogram: r.Histogram,
		})
	}
	return out, nil
}

// BuildVideoHashView loads every (file, histogram) pair and computes
// the full pairwise L1-distance matrix in one pass, per spec §4.7 — the
// caller (internal/fabric.Guarded) is responsible for holding the Store
// lock for the duration of this call so the snapshot is consistent.
func (s *Store) BuildVideoHashView(ctx context.Context) (VideoHashView, error) {
	rows, err := s.ListVideosWithHistogram(ctx)
	if err != nil {
		return VideoHashView{}, err
	}

	n := len(rows)
	view := VideoHashView{
		Files:    make([]FileRecord, n),
		Hists:    make([][]byte, n),
		Distance: make([][]int16, n),
	}
	for i, r := range rows {
		view.Files[i] = r.File
		view.Hists[i] = r.Histogram
	}
	for i := 0; i < n; i++ {
		view.Distance[i] = make([]int16, n)
		for j := i; j < n; j++ {
			d := l1Distance(view.Hists[i], view.Hists[j])
			view.Distance[i][j] = d
			view.Distance[j][i] = d
		}
	}
	return view, nil
}

// l1Distance sums the absolute byte-wise difference between two
// 64-byte histograms, widened to int16 to avoid overflow (max 64*255 =
// 16320), per spec §4.6 point 4.
func l1Distance(a, b []byte) int16 {
	var sum int16
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		d := int16(a[i]) - int16(b[i])
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// isUniqueViolation reports whether err came from a UNIQUE constraint,
// as modernc.org/sqlite reports it in its error string (the driver does
// not expose a typed sentinel for this).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint")
}
