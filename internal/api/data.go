package api

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"tmall-review-crawler/internal/store"
)

var dataExts = map[string]bool{
	".xlsx":  true,
	".csv":   true,
	".json":  true,
	".jsonl": true,
	".db":    true,
}

type dataFile struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	Type       string `json:"type"`
	Size       int64  `json:"size"`
	ModifiedAt int64  `json:"modified_at"`
}

func (s *Server) handleDataFiles(w http.ResponseWriter, r *http.Request) {
	files, err := listDataFiles(store.DataDir(), r.URL.Query().Get("item_id"), r.URL.Query().Get("type"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"files": files})
}

func (s *Server) handleDataPreview(w http.ResponseWriter, r *http.Request) {
	full, ok := resolveDataFile(w, r.PathValue("path"))
	if !ok {
		return
	}
	limit := 100
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && v > 0 {
		limit = min(v, 1000)
	}

	if strings.ToLower(filepath.Ext(full)) == ".jsonl" {
		recs, total, err := store.ReadJSONL(full, limit)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"records": recs, "total": total})
		return
	}
	t, total, err := store.ReadTable(full, limit)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"columns": t.Columns, "rows": t.Rows, "total": total})
}

func (s *Server) handleDataDownload(w http.ResponseWriter, r *http.Request) {
	full, ok := resolveDataFile(w, r.PathValue("path"))
	if !ok {
		return
	}
	w.Header().Set("content-disposition", `attachment; filename="`+filepath.Base(full)+`"`)
	http.ServeFile(w, r, full)
}

// resolveDataFile writes the error response itself when rel is not a regular
// file under the data directory.
func resolveDataFile(w http.ResponseWriter, rel string) (string, bool) {
	if strings.TrimSpace(rel) == "" {
		writeError(w, http.StatusBadRequest, "missing file path")
		return "", false
	}
	full, err := safeDataPath(store.DataDir(), rel)
	if err != nil {
		writeError(w, http.StatusForbidden, "access denied")
		return "", false
	}
	info, err := os.Stat(full)
	switch {
	case os.IsNotExist(err):
		writeError(w, http.StatusNotFound, "file not found")
		return "", false
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
		return "", false
	case info.IsDir():
		writeError(w, http.StatusBadRequest, "not a file")
		return "", false
	}
	return full, true
}

func listDataFiles(dataDir, itemID, fileType string) ([]dataFile, error) {
	itemID = strings.TrimSpace(itemID)
	fileType = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(fileType), "."))

	out := []dataFile{}
	err := filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(d.Name()))
		if !dataExts[ext] {
			return nil
		}
		if fileType != "" && strings.TrimPrefix(ext, ".") != fileType {
			return nil
		}
		rel, err := filepath.Rel(dataDir, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if itemID != "" && !strings.Contains(rel, itemID) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		out = append(out, dataFile{
			Name:       d.Name(),
			Path:       rel,
			Type:       strings.TrimPrefix(ext, "."),
			Size:       info.Size(),
			ModifiedAt: info.ModTime().Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ModifiedAt != out[j].ModifiedAt {
			return out[i].ModifiedAt > out[j].ModifiedAt
		}
		return out[i].Path < out[j].Path
	})
	return out, nil
}

// safeDataPath resolves rel inside dataDir and rejects anything that escapes it.
func safeDataPath(dataDir, rel string) (string, error) {
	if strings.Contains(rel, "\x00") {
		return "", errors.New("invalid path")
	}
	rel = filepath.Clean(filepath.FromSlash(strings.TrimPrefix(rel, "/")))
	if rel == "." || filepath.IsAbs(rel) {
		return "", errors.New("invalid path")
	}
	base, err := filepath.Abs(dataDir)
	if err != nil {
		return "", err
	}
	full, err := filepath.Abs(filepath.Join(base, rel))
	if err != nil {
		return "", err
	}
	within, err := filepath.Rel(base, full)
	if err != nil {
		return "", err
	}
	if within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", errors.New("access denied")
	}
	return full, nil
}
