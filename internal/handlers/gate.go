package handlers

import (
	"net/http"
	"net/netip"

	"smart-gallery/internal/logging"
	"smart-gallery/internal/middleware"
)

// deletionGate decides whether a request may perform destructive
// operations. Deletion can be disabled globally, or restricted to a set
// of client addresses and CIDR ranges. An empty allow list with deletion
// enabled admits every client.
type deletionGate struct {
	enabled  bool
	prefixes []netip.Prefix
}

func newDeletionGate(enabled bool, allowed []string) *deletionGate {
	g := &deletionGate{enabled: enabled}
	for _, entry := range allowed {
		if prefix, err := netip.ParsePrefix(entry); err == nil {
			g.prefixes = append(g.prefixes, prefix)
			continue
		}
		if addr, err := netip.ParseAddr(entry); err == nil {
			g.prefixes = append(g.prefixes, netip.PrefixFrom(addr, addr.BitLen()))
			continue
		}
		logging.Warn("Ignoring unparseable deletion allow-list entry: %q", entry)
	}
	return g
}

func (g *deletionGate) allows(r *http.Request) bool {
	if !g.enabled {
		return false
	}
	if len(g.prefixes) == 0 {
		return true
	}

	addr, err := netip.ParseAddr(middleware.ClientIP(r))
	if err != nil {
		return false
	}
	addr = addr.Unmap()

	for _, prefix := range g.prefixes {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}

// requireDeletion writes the appropriate error when the gate rejects the
// request and reports whether the handler may proceed.
func (h *Handlers) requireDeletion(w http.ResponseWriter, r *http.Request) bool {
	if !h.deletionGate.enabled {
		writeJSONError(w, "Deletion is disabled", http.StatusForbidden)
		return false
	}
	if !h.deletionGate.allows(r) {
		logging.Warn("Deletion denied for client %s", middleware.ClientIP(r))
		writeJSONError(w, "Deletion not permitted from this address", http.StatusForbidden)
		return false
	}
	return true
}
