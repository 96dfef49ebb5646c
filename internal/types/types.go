// Package types defines the canonical slice model handed to the deployment
// backend.
package types

// FlavorKey names an entry in the flavor catalog (e.g. "f1").
type FlavorKey string

// Flavor is the resource tuple a VM is instantiated from.
type Flavor struct {
	Cores  int `json:"cores" yaml:"cores"`
	DiskGB int `json:"disk_gb" yaml:"disk_gb"`
	RAMGB  int `json:"ram_gb" yaml:"ram_gb"`
}

// IsZero reports whether f is the undefined flavor returned for unknown keys.
func (f Flavor) IsZero() bool { return f == Flavor{} }

// VMSpec describes one VM within a slice.
type VMSpec struct {
	Name      string    `json:"name" yaml:"name"`
	FlavorKey FlavorKey `json:"flavor_key" yaml:"flavor_key"`
	Flavor    Flavor    `json:"flavor" yaml:"flavor"`
}

// SliceSpec is the canonical document dispatched to the backend. Field order
// here is the field order of the encoded document; VM order is significant.
type SliceSpec struct {
	Name     string   `json:"name" yaml:"name"`
	Topology string   `json:"topology" yaml:"topology"`
	VMs      []VMSpec `json:"vms" yaml:"vms"`
}

// Topology names understood by the deployment backend.
const (
	TopologyRing = "Ring"
	TopologyStar = "Star"
	TopologyMesh = "Mesh"
	TopologyTree = "Tree"
)

// DefaultTopology is used when a request leaves the topology blank.
const DefaultTopology = TopologyRing

// Topologies lists the known topology names in display order.
var Topologies = []string{TopologyRing, TopologyStar, TopologyMesh, TopologyTree}

// KnownTopology reports whether t is one of Topologies.
func KnownTopology(t string) bool {
	for _, k := range Topologies {
		if k == t {
			return true
		}
	}
	return false
}
