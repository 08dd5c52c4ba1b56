package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Document is one loaded knowledge file, reduced to plain text.
type Document struct {
	Path string
	Text string
}

var supportedExtensions = map[string]bool{
	".txt":  true,
	".md":   true,
	".json": true,
}

// LoadFile reads a single knowledge file and returns its plain-text content.
// Unsupported extensions return ("", nil) so directory walks can skip them.
func LoadFile(path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if !supportedExtensions[ext] {
		return "", nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("loader: reading %s: %w", path, err)
	}

	if ext == ".json" {
		return parseJSON(raw, path)
	}
	return string(raw), nil
}

// LoadDirectory walks dir recursively and loads every supported file.
// A file that fails to load or parses to nothing is skipped, not fatal;
// the caller decides whether zero documents is a problem.
func LoadDirectory(dir string) ([]Document, error) {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("loader: not a directory: %s", dir)
	}

	var paths []string
	err = filepath.Walk(dir, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		if !fi.IsDir() {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var docs []Document
	for _, path := range paths {
		text, err := LoadFile(path)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		docs = append(docs, Document{Path: path, Text: text})
	}
	return docs, nil
}

// parseJSON accepts two knowledge layouts: a list of strings, joined as
// paragraphs, or a list of objects whose values are concatenated per entry.
func parseJSON(raw []byte, path string) (string, error) {
	var asStrings []string
	if err := json.Unmarshal(raw, &asStrings); err == nil {
		var kept []string
		for _, s := range asStrings {
			if strings.TrimSpace(s) != "" {
				kept = append(kept, s)
			}
		}
		if len(kept) == 0 {
			return "", fmt.Errorf("loader: %s: empty string list", path)
		}
		return strings.Join(kept, "\n\n"), nil
	}

	var asObjects []map[string]interface{}
	if err := json.Unmarshal(raw, &asObjects); err == nil {
		var segments []string
		for _, obj := range asObjects {
			keys := make([]string, 0, len(obj))
			for k := range obj {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			var values []string
			for _, k := range keys {
				if v := strings.TrimSpace(fmt.Sprintf("%v", obj[k])); v != "" {
					values = append(values, v)
				}
			}
			if len(values) > 0 {
				segments = append(segments, strings.Join(values, "\n"))
			}
		}
		if len(segments) == 0 {
			return "", fmt.Errorf("loader: %s: no usable entries", path)
		}
		return strings.Join(segments, "\n\n"), nil
	}

	return "", fmt.Errorf("loader: %s: expected a JSON list of strings or objects", path)
}
