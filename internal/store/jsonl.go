package store

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// JSONLWriter appends JSON-encoded records to a file, flushing after every
// record (spec §4.10 "Append-only files must flush after each record").
// Safe for concurrent use by a single writer per file — the caller (e.g.
// one StreamManager per session) is responsible for not sharing a writer
// across sessions.
type JSONLWriter struct {
	mu   sync.Mutex
	path string
	file *os.File
}

// OpenJSONLWriter opens (creating if necessary) path for appending.
func OpenJSONLWriter(path string) (*JSONLWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	return &JSONLWriter{path: path, file: f}, nil
}

// Append writes one JSON record followed by a newline, then flushes to
// disk.
func (w *JSONLWriter) Append(record any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	if _, err := w.file.Write(data); err != nil {
		return err
	}
	return w.file.Sync()
}

// Close closes the underlying file.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}

// ReadJSONL reads every non-blank line of path and unmarshals each into a
// fresh value of type T, appending to the returned slice. Returns an
// empty, non-nil slice if the file does not exist.
func ReadJSONL[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []T{}, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []T
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 10*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var v T
		if err := json.Unmarshal(line, &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if out == nil {
		out = []T{}
	}
	return out, nil
}
