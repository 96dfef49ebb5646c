package manifest

import (
	"bytes"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/h3ow3d/slicemgr/internal/types"
)

// Document is what gets handed to the deployment backend: either a
// materialized SliceSpec or an opaque uploaded blob passed through unchanged.
type Document struct {
	spec     *types.SliceSpec
	raw      []byte
	filename string
}

// Materialized wraps a normalized spec.
func Materialized(spec types.SliceSpec) Document {
	return Document{spec: &spec}
}

// Opaque wraps uploaded bytes. filename is only a hint for the scratch file
// extension and is never interpreted otherwise.
func Opaque(raw []byte, filename string) Document {
	return Document{raw: raw, filename: filename}
}

// Spec returns the materialized spec, if any.
func (d Document) Spec() (types.SliceSpec, bool) {
	if d.spec == nil {
		return types.SliceSpec{}, false
	}
	return *d.spec, true
}

// IsOpaque reports whether d carries uploaded bytes.
func (d Document) IsOpaque() bool { return d.spec == nil }

// Bytes returns the document body handed to the backend.
func (d Document) Bytes(f Format) ([]byte, error) {
	if d.spec == nil {
		return d.raw, nil
	}
	return Encode(*d.spec, f)
}

// Ext returns the scratch file extension for d.
func (d Document) Ext(f Format) string {
	if d.spec != nil {
		return f.Ext()
	}
	if ext := filepath.Ext(filepath.Base(d.filename)); len(ext) > 1 {
		return ext
	}
	return FormatJSON.Ext()
}

// SliceName returns the slice name the document refers to. For opaque
// documents the name is peeked without validating anything else; it is ""
// when the blob has no readable top-level name.
func (d Document) SliceName() string {
	if d.spec != nil {
		return d.spec.Name
	}
	var peek struct {
		Name string `yaml:"name"`
	}
	if err := yaml.NewDecoder(bytes.NewReader(d.raw)).Decode(&peek); err != nil {
		return ""
	}
	return strings.TrimSpace(peek.Name)
}
