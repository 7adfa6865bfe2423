package path

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/gian-teixeira/tmp-remaprt/iface"
)

// MaxHopInterfaces bounds the number of interfaces a single hop may carry
// — the widest load balancer observed in practice (see SPEC_FULL.md §4.a).
const MaxHopInterfaces = 32

// Hop is an ordered set of interfaces observed at one TTL, sorted by IP
// ascending.
type Hop struct {
	TTL        int
	Timestamp  time.Time
	Interfaces []*iface.Interface
}

// NewStarHop returns the non-responsive hop for ttl.
func NewStarHop(ttl int) *Hop {
	return &Hop{TTL: ttl, Interfaces: []*iface.Interface{iface.NewStar(ttl)}}
}

// ParseHop decodes a `;`-separated list of interface fields.
func ParseHop(s string, ts time.Time, ttl int) (*Hop, error) {
	parts := strings.Split(s, ";")
	ifaces := make([]*iface.Interface, 0, len(parts))
	for _, p := range parts {
		ifc, err := iface.Parse(p, ts, ttl)
		if err != nil {
			continue
		}
		ifaces = append(ifaces, ifc)
	}
	if len(ifaces) == 0 {
		return nil, fmt.Errorf("%w: hop %q has no parseable interfaces", ErrInvalidPath, s)
	}
	if len(ifaces) > MaxHopInterfaces {
		return nil, fmt.Errorf("%w: hop %q exceeds %d interfaces", ErrInvalidPath, s, MaxHopInterfaces)
	}
	sort.Slice(ifaces, func(i, j int) bool { return ifaces[i].IP < ifaces[j].IP })
	return &Hop{TTL: ttl, Timestamp: ts, Interfaces: ifaces}, nil
}

// String renders the hop back to its wire/text representation.
func (h *Hop) String() string {
	strs := make([]string, len(h.Interfaces))
	for i, ifc := range h.Interfaces {
		strs[i] = ifc.String()
	}
	return strings.Join(strs, ";")
}

// IsStar reports whether h's sole interface is the star sentinel.
func (h *Hop) IsStar() bool {
	return len(h.Interfaces) == 1 && h.Interfaces[0].IsStar()
}

// Contains reports whether any interface in h carries ip.
func (h *Hop) Contains(ip uint32) bool {
	for _, ifc := range h.Interfaces {
		if ifc.IP == ip {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of h.
func (h *Hop) Clone() *Hop {
	c := &Hop{TTL: h.TTL, Timestamp: h.Timestamp, Interfaces: make([]*iface.Interface, len(h.Interfaces))}
	for i, ifc := range h.Interfaces {
		c.Interfaces[i] = ifc.Clone()
	}
	return c
}

// pivotDestinationFirst moves the interface carrying dst to position 0 and
// re-sorts the remainder ascending by IP. Asymmetric load balancers can put
// extra interfaces on the destination hop; pinning the destination first
// keeps path_diff_join able to align two paths on reachability.
func (h *Hop) pivotDestinationFirst(dst uint32) {
	di := -1
	for i, ifc := range h.Interfaces {
		if ifc.IP == dst {
			di = i
			break
		}
	}
	if di < 0 {
		panic(fmt.Errorf("%w: pivotDestinationFirst: dst not present in hop", ErrProgrammingViolation))
	}
	h.Interfaces[0], h.Interfaces[di] = h.Interfaces[di], h.Interfaces[0]
	rest := h.Interfaces[1:]
	sort.Slice(rest, func(i, j int) bool { return rest[i].IP < rest[j].IP })
}

// Equal reports hop equality under flags: IgnoreBalancers compares only
// the first interface's IP, otherwise the full ordered IP sequence must
// match.
func Equal(h1, h2 *Hop, flags DiffFlags) bool {
	if flags&IgnoreBalancers != 0 {
		return h1.Interfaces[0].IP == h2.Interfaces[0].IP
	}
	if len(h1.Interfaces) != len(h2.Interfaces) {
		return false
	}
	for i := range h1.Interfaces {
		if h1.Interfaces[i].IP != h2.Interfaces[i].IP {
			return false
		}
	}
	return true
}
