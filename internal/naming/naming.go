// Package naming provides the default names given to slices and their VMs
// when a request omits them. All functions are pure.
package naming

import (
	"fmt"
	"strings"
)

// DefaultSlice is the placeholder name for a slice submitted without one.
const DefaultSlice = "unnamed-slice"

// Slice returns name with surrounding whitespace removed, or DefaultSlice
// when nothing is left.
func Slice(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return DefaultSlice
}

// VM returns the default name of the VM at 1-based index i in slice.
func VM(slice string, i int) string {
	return fmt.Sprintf("%s-vm%d", slice, i)
}

// VMFieldName and FlavorFieldName return the discrete form field keys that
// carry the name and flavor of the VM at 1-based index i.
func VMFieldName(i int) string     { return fmt.Sprintf("vm_name_%d", i) }
func FlavorFieldName(i int) string { return fmt.Sprintf("vm_flavor_%d", i) }
