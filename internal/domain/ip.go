package domain

import "net/netip"

// PublicAddr parses s and reports whether it is a globally routable address.
// Loopback, private, link-local and unspecified addresses are not public, so
// lookups for them fall back to locating the server itself.
func PublicAddr(s string) (netip.Addr, bool) {
	addr, err := netip.ParseAddr(s)
	if err != nil {
		return netip.Addr{}, false
	}
	addr = addr.Unmap()
	if addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() ||
		addr.IsLinkLocalUnicast() || addr.IsMulticast() {
		return addr, false
	}
	return addr, true
}
