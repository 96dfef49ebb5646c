// Package manifest encodes and decodes the canonical slice document.
//
// Structured payloads are decoded strictly with yaml.v3, which also accepts
// JSON since every JSON document is valid YAML.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/h3ow3d/slicemgr/internal/naming"
	"github.com/h3ow3d/slicemgr/internal/types"
)

// Format selects the textual encoding of the canonical document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat returns the Format named by s (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatYAML, "yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("unsupported document format %q: use %q or %q", s, FormatJSON, FormatYAML)
}

// Ext returns the file extension used for documents in format f.
func (f Format) Ext() string {
	if f == FormatYAML {
		return ".yaml"
	}
	return ".json"
}

// Load reads a structured payload from path.
func Load(path string) (*types.SliceSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read payload %q: %w", path, err)
	}
	return LoadBytes(data, path)
}

// LoadBytes decodes a structured payload: one mapping document, unknown
// fields rejected. A blank name or topology is replaced by its default; VMs
// are taken verbatim. The source parameter is used only for error messages.
func LoadBytes(data []byte, source string) (*types.SliceSpec, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("payload %q is empty", source)
	}

	if err := checkShape(data); err != nil {
		return nil, fmt.Errorf("payload %q: %w", source, err)
	}

	var s types.SliceSpec
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("payload %q: parse error: %w", source, err)
	}

	s.Name = naming.Slice(s.Name)
	if strings.TrimSpace(s.Topology) == "" {
		s.Topology = types.DefaultTopology
	}
	if s.VMs == nil {
		s.VMs = []types.VMSpec{}
	}
	return &s, nil
}

// checkShape requires data to hold exactly one document whose root is a
// mapping. A null root or a trailing document is rejected.
func checkShape(data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	var root yaml.Node
	if err := dec.Decode(&root); err != nil {
		return fmt.Errorf("parse error: %w", err)
	}
	if len(root.Content) == 0 || root.Content[0].Kind != yaml.MappingNode {
		return errors.New("document root must be a mapping")
	}
	switch err := dec.Decode(new(yaml.Node)); {
	case err == nil:
		return errors.New("more than one document")
	case !errors.Is(err, io.EOF):
		return fmt.Errorf("parse error in trailing document: %w", err)
	}
	return nil
}

// Encode serializes spec in format f. Field order follows types.SliceSpec and
// VM order is preserved, so identical specs always encode to identical bytes.
func Encode(spec types.SliceSpec, f Format) ([]byte, error) {
	if spec.VMs == nil {
		spec.VMs = []types.VMSpec{}
	}

	switch f {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(spec); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, fmt.Errorf("encode yaml: %w", err)
		}
		return buf.Bytes(), nil
	case FormatJSON, "":
		out, err := json.MarshalIndent(spec, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("encode json: %w", err)
		}
		return append(out, '\n'), nil
	}
	return nil, fmt.Errorf("unsupported document format %q", f)
}
