// Package normalize turns a create request arriving on any input channel into
// the single document handed to the deployment backend.
//
// Channels are tried in strict priority order and never merged:
//
//  1. structured payload – decoded and trusted verbatim
//  2. uploaded document  – passed through as opaque bytes
//  3. discrete fields    – defaulted and resolved against the flavor catalog
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/h3ow3d/slicemgr/internal/flavor"
	"github.com/h3ow3d/slicemgr/internal/log"
	"github.com/h3ow3d/slicemgr/internal/manifest"
	"github.com/h3ow3d/slicemgr/internal/naming"
	"github.com/h3ow3d/slicemgr/internal/types"
)

// MaxVMs caps the VM count accepted on the discrete-fields channel.
const MaxVMs = 1024

// Discrete field keys.
const (
	FieldSliceName = "slice_name"
	FieldTopology  = "topology"
	FieldNumVMs    = "num_vms"
)

// Channel identifies which input channel a request uses.
type Channel string

const (
	ChannelPayload Channel = "payload"
	ChannelUpload  Channel = "upload"
	ChannelFields  Channel = "fields"
	ChannelNone    Channel = "none"
)

// Upload is a file supplied on the upload channel.
type Upload struct {
	Filename string
	Content  []byte
}

// RawCreateRequest carries whatever the caller supplied. A nil field means the
// channel was not used.
type RawCreateRequest struct {
	Payload []byte
	Upload  *Upload
	Fields  map[string]string
}

// Channel returns the channel Normalize will read from.
func (r RawCreateRequest) Channel() Channel {
	switch {
	case r.Payload != nil:
		return ChannelPayload
	case r.Upload != nil:
		return ChannelUpload
	case r.Fields != nil:
		return ChannelFields
	}
	return ChannelNone
}

// Normalize selects the highest-priority channel present in req and returns
// the document it yields.
func Normalize(req RawCreateRequest) (manifest.Document, error) {
	switch req.Channel() {
	case ChannelPayload:
		spec, err := manifest.LoadBytes(req.Payload, "request")
		if err != nil {
			return manifest.Document{}, &ValidationError{Reason: ReasonMalformedPayload, Err: err}
		}
		return manifest.Materialized(*spec), nil

	case ChannelUpload:
		if len(req.Upload.Content) == 0 {
			return manifest.Document{}, &ValidationError{
				Reason: ReasonMissingFile,
				Err:    errors.New("a file must be selected"),
			}
		}
		return manifest.Opaque(req.Upload.Content, req.Upload.Filename), nil

	case ChannelFields:
		return manifest.Materialized(FromFields(req.Fields)), nil
	}

	return manifest.Document{}, &ValidationError{Reason: ReasonEmptyRequest}
}

// FromFields builds a spec from discrete form fields. It never fails: blank
// values take their defaults and an unparsable VM count means no VMs.
func FromFields(fields map[string]string) types.SliceSpec {
	get := func(k string) string { return strings.TrimSpace(fields[k]) }

	spec := types.SliceSpec{
		Name:     naming.Slice(get(FieldSliceName)),
		Topology: get(FieldTopology),
	}
	if spec.Topology == "" {
		spec.Topology = types.DefaultTopology
	}

	n := ParseCount(get(FieldNumVMs))
	spec.VMs = make([]types.VMSpec, 0, n)
	for i := 1; i <= n; i++ {
		name := get(naming.VMFieldName(i))
		if name == "" {
			name = naming.VM(spec.Name, i)
		}
		key := types.FlavorKey(get(naming.FlavorFieldName(i)))
		if key == "" {
			key = flavor.Default
		}
		spec.VMs = append(spec.VMs, types.VMSpec{
			Name:      name,
			FlavorKey: key,
			Flavor:    flavor.Resolve(key),
		})
	}
	return spec
}

// ParseCount parses a VM count. Anything that is not a non-negative integer
// yields 0; values above MaxVMs are clamped with a warning.
func ParseCount(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return 0
	}
	if n > MaxVMs {
		log.Warn(fmt.Sprintf("num_vms %d exceeds the limit of %d; creating %d VMs", n, MaxVMs, MaxVMs))
		return MaxVMs
	}
	return n
}
