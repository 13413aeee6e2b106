// Package zip bundles unlocked artifacts for bulk download.
package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
	"path"
	"strings"
)

type Entry struct {
	Filename string
	Data     []byte
}

// Archive writes all entries into one zip. Duplicate filenames are suffixed
// so every entry survives.
func Archive(entries []Entry) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	seen := make(map[string]int, len(entries))

	for _, entry := range entries {
		name := path.Base(strings.TrimSpace(entry.Filename))
		if name == "" || name == "." || name == "/" {
			name = "image.jpg"
		}
		if n := seen[name]; n > 0 {
			ext := path.Ext(name)
			name = fmt.Sprintf("%s-%d%s", strings.TrimSuffix(name, ext), n+1, ext)
		}
		seen[path.Base(strings.TrimSpace(entry.Filename))]++

		w, err := zw.Create(name)
		if err != nil {
			return nil, fmt.Errorf("zip: create %s: %w", name, err)
		}
		if _, err := w.Write(entry.Data); err != nil {
			return nil, fmt.Errorf("zip: write %s: %w", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip: close: %w", err)
	}
	return buf.Bytes(), nil
}
