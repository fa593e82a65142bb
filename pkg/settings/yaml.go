package settings

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// YAML backup and restore. Every exposed field round-trips exactly, so a
// backup taken before an experiment restores the block bit for bit.

// SaveYAML writes v to path as YAML.
func SaveYAML[T Settings](path string, v T) error {
	out, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("settings: marshal %s: %w", v.Name(), err)
	}
	if err := os.WriteFile(path, out, 0644); err != nil {
		return fmt.Errorf("settings: save %s: %w", path, err)
	}
	return nil
}

// LoadYAML reads a block back from a backup file. Unknown keys fail the
// restore rather than silently dropping a field.
func LoadYAML[T Settings](path string) (T, error) {
	var v T
	raw, err := os.ReadFile(path)
	if err != nil {
		return v, fmt.Errorf("settings: read %s: %w", path, err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&v); err != nil {
		return v, fmt.Errorf("settings: %s is not a valid %s backup: %w", path, v.Name(), err)
	}
	return v, nil
}
