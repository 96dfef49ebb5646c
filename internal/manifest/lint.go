package manifest

import (
	"fmt"
	"strings"

	"github.com/h3ow3d/slicemgr/internal/flavor"
	"github.com/h3ow3d/slicemgr/internal/types"
)

// Lint reports findings in a decoded spec that the backend may reject. None
// of them block creation; callers decide whether to treat them as errors.
func Lint(s *types.SliceSpec) []string {
	var findings []string

	if !types.KnownTopology(s.Topology) {
		findings = append(findings, fmt.Sprintf("topology %q is not one of %s", s.Topology, strings.Join(types.Topologies, ", ")))
	}

	seen := make(map[string]int)
	for i, vm := range s.VMs {
		field := fmt.Sprintf("vms[%d]", i)
		if strings.TrimSpace(vm.Name) == "" {
			findings = append(findings, field+": name is empty")
		} else if prev, dup := seen[vm.Name]; dup {
			findings = append(findings, fmt.Sprintf("%s: name %q duplicates vms[%d]", field, vm.Name, prev))
		} else {
			seen[vm.Name] = i
		}

		if !flavor.Known(vm.FlavorKey) {
			findings = append(findings, fmt.Sprintf("%s: unknown flavor_key %q", field, vm.FlavorKey))
			continue
		}
		if want := flavor.Resolve(vm.FlavorKey); vm.Flavor != want {
			findings = append(findings, fmt.Sprintf("%s: flavor %+v differs from catalog %s %+v", field, vm.Flavor, vm.FlavorKey, want))
		}
	}
	return findings
}
