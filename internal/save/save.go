// Package save persists an encoded world snapshot to disk atomically,
// so a crash or concurrent reader never observes a half-written save
// file (§6's save-file format is otherwise just the raw encoded bytes
// of a ServerToClient message with your_player = -1).
package save

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteAtomic writes data to path by writing a temporary file in the
// same directory and renaming it over path, relying on os.Rename's
// same-filesystem atomicity guarantee rather than any locking.
func WriteAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".save-*.tmp")
	if err != nil {
		return fmt.Errorf("save: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("save: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("save: renaming temp file into place: %w", err)
	}
	return nil
}

// Read loads a save file's raw bytes for replay or inspection. Decoding
// them as a proto.ServerToClient is the caller's responsibility, since
// this package has no dependency on the wire format itself.
func Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("save: reading save file: %w", err)
	}
	return data, nil
}
