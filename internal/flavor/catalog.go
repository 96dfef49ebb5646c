// Package flavor holds the compiled-in flavor catalog.
//
// The catalog is immutable: new flavors are added by extending the table
// below, never by changing how keys resolve.
package flavor

import (
	"sort"

	"github.com/h3ow3d/slicemgr/internal/types"
)

// Default is the flavor assigned to VMs that do not name one.
const Default types.FlavorKey = "f1"

var catalog = map[types.FlavorKey]types.Flavor{
	"f1": {Cores: 1, DiskGB: 10, RAMGB: 2},
	"f2": {Cores: 1, DiskGB: 10, RAMGB: 4},
	"f3": {Cores: 2, DiskGB: 10, RAMGB: 2},
	"f4": {Cores: 2, DiskGB: 10, RAMGB: 4},
	"f5": {Cores: 1, DiskGB: 10, RAMGB: 8},
	"f6": {Cores: 2, DiskGB: 10, RAMGB: 8},
}

// Resolve returns the flavor for key. Unknown keys yield the zero Flavor
// rather than an error so that unrecognised keys never block a slice.
func Resolve(key types.FlavorKey) types.Flavor {
	return catalog[key]
}

// Known reports whether key is present in the catalog.
func Known(key types.FlavorKey) bool {
	_, ok := catalog[key]
	return ok
}

// Keys returns every catalog key in sorted order.
func Keys() []types.FlavorKey {
	keys := make([]types.FlavorKey, 0, len(catalog))
	for k := range catalog {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}
