package server

import (
	"encoding/json"
	"errors"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// MapStore persists player-built maps as JSON files under one directory.
// It sits outside the synchronization core: rooms never consult it.
type MapStore struct {
	dir string
}

var mapNameRE = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

func NewMapStore(dir string) (*MapStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &MapStore{dir: dir}, nil
}

// ServeHTTP implements the maps API:
//
//	GET  /api/maps         list stored map names
//	GET  /api/maps/{name}  fetch one map
//	POST /api/maps/{name}  store one map (body must be valid JSON)
func (s *MapStore) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/maps"), "/")
	if name == "" {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.list(w)
		return
	}
	if !mapNameRE.MatchString(name) {
		http.Error(w, "invalid map name", http.StatusBadRequest)
		return
	}
	path := filepath.Join(s.dir, name+".json")

	switch r.Method {
	case http.MethodGet:
		b, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			http.Error(w, "map not found", http.StatusNotFound)
			return
		}
		if err != nil {
			Log.Errorw("map read failed", "name", name, "err", err)
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(b)
	case http.MethodPost, http.MethodPut:
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 1<<20))
		if err != nil {
			http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
			return
		}
		if !json.Valid(body) {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if err := os.WriteFile(path, body, 0o644); err != nil {
			Log.Errorw("map write failed", "name", name, "err", err)
			http.Error(w, "write failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "name": name})
	default:
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	}
}

func (s *MapStore) list(w http.ResponseWriter) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		http.Error(w, "list failed", http.StatusInternalServerError)
		return
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if n, ok := strings.CutSuffix(e.Name(), ".json"); ok {
			names = append(names, n)
		}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(names)
}
