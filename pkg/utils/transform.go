package utils

import (
	"strings"
)

// Dedup removes repeated entries from an address list, ignoring trailing
// slashes. First-appearance order is preserved.
func Dedup(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, addr := range in {
		addr = strings.TrimRight(addr, "/")
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		out = append(out, addr)
	}
	return out
}
