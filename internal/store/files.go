package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"tmall-review-crawler/internal/config"
)

func DataDir() string {
	dataDir := strings.TrimSpace(config.AppConfig.DataDir)
	if dataDir == "" {
		dataDir = "data"
	}
	return dataDir
}

func PlatformDir() string {
	return filepath.Join(DataDir(), platformName())
}

func ItemDir(itemID string) string {
	return filepath.Join(PlatformDir(), "items", itemID)
}

// AppendUniqueJSONL appends items whose key is not yet listed in the index
// file and records the new keys. Items with an empty key are dropped.
func AppendUniqueJSONL[T any](dir, dataFilename, indexFilename string, items []T, keyFn func(T) string) (int, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return 0, err
	}

	indexPath := filepath.Join(dir, indexFilename)
	seen, err := loadIndex(indexPath)
	if err != nil {
		return 0, err
	}

	fresh := make([]T, 0, len(items))
	newKeys := make([]string, 0, len(items))
	for _, item := range items {
		k := strings.TrimSpace(keyFn(item))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		fresh = append(fresh, item)
		newKeys = append(newKeys, k)
	}
	if len(fresh) == 0 {
		return 0, nil
	}

	f, err := os.OpenFile(filepath.Join(dir, dataFilename), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	for _, item := range fresh {
		if err := enc.Encode(item); err != nil {
			return 0, err
		}
	}

	if err := appendIndex(indexPath, newKeys); err != nil {
		return 0, err
	}
	return len(fresh), nil
}

func writeJSONFile(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0644)
}

func loadIndex(path string) (map[string]struct{}, error) {
	out := map[string]struct{}{}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		k := strings.TrimSpace(scanner.Text())
		if k == "" {
			continue
		}
		out[k] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func appendIndex(path string, keys []string) error {
	if len(keys) == 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, k := range keys {
		if _, err := w.WriteString(k + "\n"); err != nil {
			return err
		}
	}
	return w.Flush()
}
