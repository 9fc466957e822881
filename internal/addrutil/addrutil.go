package addrutil

import "net/netip"

// ValidIPv4 reports whether s is a literal IPv4 address. Both the gossip
// table and the user list interleave addresses with headers, separators,
// and empty cells, so every candidate field goes through this check.
func ValidIPv4(s string) bool {
	addr, err := netip.ParseAddr(s)
	return err == nil && addr.Is4()
}
