package table

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/vmihailenco/msgpack/v5"
)

// EncodeArtifact serializes a table to its columnar on-disk form.
func EncodeArtifact(t *Table) ([]byte, error) {
	raw, err := msgpack.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode artifact: %w", err)
	}
	return raw, nil
}

// DecodeArtifact deserializes a columnar artifact. Persisted time cells
// are wall clocks flagged UTC; msgpack rehydrates them into the host
// zone, so every time column is restored to UTC to keep cached reads
// independent of the host timezone.
func DecodeArtifact(raw []byte) (*Table, error) {
	var t Table
	if err := msgpack.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("decode artifact: %w", err)
	}
	if len(t.Cols) == 0 {
		return nil, fmt.Errorf("decode artifact: no columns")
	}
	for ci := range t.Cols {
		if t.Cols[ci].Kind != KindTime {
			continue
		}
		times := t.Cols[ci].Times
		for i := range times {
			times[i] = times[i].UTC()
		}
	}
	return &t, nil
}

// WriteArtifact persists a table at path, creating parent directories as
// needed. The write goes through a temp file and a rename so readers
// never observe a torn artifact.
func WriteArtifact(path string, t *Table) error {
	raw, err := EncodeArtifact(t)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// ReadArtifact loads a table persisted by WriteArtifact.
func ReadArtifact(path string) (*Table, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return DecodeArtifact(raw)
}
