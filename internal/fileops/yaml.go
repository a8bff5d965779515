package fileops

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// ReadYAML parses a YAML file into a generic document. Returns nil for an
// empty file.
func (m *Manager) ReadYAML(rel string) (any, error) {
	data, err := m.Read(rel)
	if err != nil {
		return nil, err
	}
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse yaml %q: %w", rel, err)
	}
	return doc, nil
}

// WriteYAML serializes a document with two-space indentation and writes it
// through Write, so the mutation is snapshotted like any other.
func (m *Manager) WriteYAML(rel string, doc any) error {
	data, err := marshalYAML(doc)
	if err != nil {
		return fmt.Errorf("encode yaml %q: %w", rel, err)
	}
	return m.Write(rel, data)
}

// ValidateYAML reports whether content parses as YAML, without touching disk.
func ValidateYAML(content []byte) error {
	var doc any
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return fmt.Errorf("invalid yaml: %w", err)
	}
	return nil
}

func marshalYAML(doc any) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
