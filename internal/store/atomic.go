// Package store implements the persistence layer (spec component C10):
// atomic JSON files plus append-only JSON-Lines for sessions, automations,
// and executions (spec §4.10).
package store

import (
	"encoding/json"
	"os"
	"path/filepath"
)

// WriteJSONAtomic writes value as indented JSON to path by first writing
// to "<path>.tmp" and renaming over the final name, so a reader never
// observes a partially written file (spec §4.10 "Atomic write discipline").
func WriteJSONAtomic(path string, value any) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// ReadJSON reads and unmarshals path into dest. Returns os.ErrNotExist
// (wrapped) when the file is absent so callers can use os.IsNotExist.
func ReadJSON(path string, dest any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}
