// Package server is the query server (spec §6): a thin net/http router
// over the core clustering/store operations. No third-party router
// appears anywhere in the retrieval pack (grepped across all seven
// example repos), so this uses the Go 1.22+ pattern-based
// http.ServeMux — the one ambient concern in this repo implemented on
// the standard library, justified in DESIGN.md. Routes are grounded on
// original_source/src/interface.rs's rouille router.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"dupesieve/internal/cluster"
	"dupesieve/internal/fabric"
	"dupesieve/internal/store"
)

// Server wires the Concurrency Fabric into the six routes spec §6
// names.
type Server struct {
	guarded      *fabric.Guarded
	allowPreview bool
	mux          *http.ServeMux
}

// New builds a Server; allowPreview gates the /preview/{id} route.
func New(guarded *fabric.Guarded, allowPreview bool) *Server {
	s := &Server{guarded: guarded, allowPreview: allowPreview, mux: http.NewServeMux()}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /{$}", s.handleExact)
	s.mux.HandleFunc("GET /videohash/{threshold}", s.handleVideohash)
	s.mux.HandleFunc("GET /refresh", s.handleRefresh)
	s.mux.HandleFunc("GET /preview/{id}", s.handlePreview)
	s.mux.HandleFunc("GET /rename/{id}/{newPath}", s.handleRename)
	s.mux.HandleFunc("GET /remove/{id}", s.handleRemove)
}

// handleExact serves GET / — the exact-duplicate bags.
func (s *Server) handleExact(w http.ResponseWriter, r *http.Request) {
	groups, err := cluster.ExactDuplicates(r.Context(), s.guarded)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, groups)
}

// handleVideohash serves GET /videohash/{threshold} — perceptual bags
// at the given distance threshold.
func (s *Server) handleVideohash(w http.ResponseWriter, r *http.Request) {
	threshold, err := parseThreshold(r.PathValue("threshold"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	view, err := s.guarded.VideoHashView(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	groups := cluster.PerceptualDuplicates(view, threshold)
	writeJSON(w, groups)
}

// handleRefresh serves GET /refresh — rebuild VideoHashView and return
// bags at the pinned default threshold.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	view, err := s.guarded.VideoHashView(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	groups := cluster.PerceptualDuplicates(view, defaultRefreshThreshold)
	writeJSON(w, refreshResponse{
		Groups:        groups,
		TotalSizeSaved: totalSizeSaved(groups),
	})
}

// defaultRefreshThreshold is the distance cutoff /refresh uses; the
// route takes no threshold parameter.
const defaultRefreshThreshold int16 = 128

type refreshResponse struct {
	Groups         [][]cluster.FileEntry `json:"groups"`
	TotalSizeSaved int64                 `json:"total_size_saved_bytes"`
}

// totalSizeSaved sums every bag member's size except the largest,
// mirroring interface.rs's show_results_in_console accounting.
func totalSizeSaved(groups [][]cluster.FileEntry) int64 {
	var total int64
	for _, bag := range groups {
		var maxSize int64
		for _, f := range bag {
			total += f.Size
			if f.Size > maxSize {
				maxSize = f.Size
			}
		}
		total -= maxSize
	}
	return total
}

// handlePreview serves GET /preview/{id} — streams file bytes, gated on
// --allow-preview.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	if !s.allowPreview {
		http.Error(w, "preview disabled", http.StatusForbidden)
		return
	}

	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	rec, err := s.guarded.LookupFile(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.NotFound(w, r)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}

	f, err := os.Open(rec.Path)
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return
	}
	defer f.Close()

	if ct := mime.TypeByExtension(filepath.Ext(rec.Path)); ct != "" {
		w.Header().Set("Content-Type", ct)
	}

	info, err := f.Stat()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	http.ServeContent(w, r, filepath.Base(rec.Path), info.ModTime(), f)
}

// handleRename serves GET /rename/{id}/{newPath} — rename on disk and
// in Store; returns "success" or "does-not-exist".
func (s *Server) handleRename(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	newPath := r.PathValue("newPath")

	status, err := s.renameOnDiskAndStore(r.Context(), id, newPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	fmt.Fprint(w, status)
}

func (s *Server) renameOnDiskAndStore(ctx context.Context, id int64, newPath string) (string, error) {
	rec, err := s.guarded.LookupFile(ctx, id)
	if err != nil {
		return "", err
	}

	status := "does-not-exist"
	if _, statErr := os.Stat(rec.Path); statErr == nil {
		if err := os.Rename(rec.Path, newPath); err != nil {
			return "", err
		}
		status = "success"
	}

	if err := s.guarded.RenameFile(ctx, id, newPath); err != nil {
		return "", err
	}
	return status, nil
}

// handleRemove serves GET /remove/{id} — delete on disk and in Store;
// returns "success" or "does-not-exist".
func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	status, err := s.removeOnDiskAndStore(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	fmt.Fprint(w, status)
}

func (s *Server) removeOnDiskAndStore(ctx context.Context, id int64) (string, error) {
	rec, err := s.guarded.LookupFile(ctx, id)
	if err != nil {
		return "", err
	}

	status := "does-not-exist"
	if _, statErr := os.Stat(rec.Path); statErr == nil {
		if err := os.Remove(rec.Path); err != nil {
			return "", err
		}
		status = "success"
	}

	if _, err := s.guarded.DeleteFile(ctx, id); err != nil {
		return "", err
	}
	return status, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: %w", raw, err)
	}
	return id, nil
}

func parseThreshold(raw string) (int16, error) {
	t, err := strconv.ParseInt(raw, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid threshold %q: %w", raw, err)
	}
	return int16(t), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("server: failed to encode response", slog.Any("error", err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	slog.Error("server: request failed", slog.Any("error", err))
	http.Error(w, err.Error(), status)
}
