// Package probedb implements the probe cache the search driver consults
// before asking the hop builder for a fresh measurement.
//
// Grounded on SPEC_FULL.md §4.d / spec.md §4.d (`probedb` in
// original_source/src/probedb.c).
package probedb

import (
	"fmt"
	"sort"

	"github.com/gian-teixeira/tmp-remaprt/iface"
	"github.com/gian-teixeira/tmp-remaprt/path"
)

// DB owns the hops and interfaces discovered while remapping a single
// path. It is accessed only from the search driver's goroutine; no
// internal locking.
type DB struct {
	hops   map[int]*path.Hop
	ifaces map[ifaceKey]*iface.Interface
}

type ifaceKey struct {
	ttl       int
	firstFlow int
}

// New returns an empty probe cache.
func New() *DB {
	return &DB{
		hops:   make(map[int]*path.Hop),
		ifaces: make(map[ifaceKey]*iface.Interface),
	}
}

// FindHop returns the cached hop for ttl, or nil.
func (db *DB) FindHop(ttl int) *path.Hop {
	return db.hops[ttl]
}

// AddHop inserts hop into the cache, indexing each of its interfaces by
// (ttl, first flow-id). Inserting a second hop for a TTL already present
// is a programming error: callers must always check FindHop first.
func (db *DB) AddHop(hop *path.Hop) {
	if _, exists := db.hops[hop.TTL]; exists {
		panic(fmt.Errorf("%w: probedb: AddHop: ttl %d already cached", path.ErrProgrammingViolation, hop.TTL))
	}
	db.hops[hop.TTL] = hop
	for _, ifc := range hop.Interfaces {
		key := ifaceKey{ttl: hop.TTL, firstFlow: ifc.FirstFlowID()}
		db.ifaces[key] = ifc
	}
}

// FindIface returns the interface cached for (ttl, flowID), or nil.
func (db *DB) FindIface(ttl, flowID int) *iface.Interface {
	return db.ifaces[ifaceKey{ttl: ttl, firstFlow: flowID}]
}

// TTLs returns the cached TTLs in ascending order.
func (db *DB) TTLs() []int {
	ttls := make([]int, 0, len(db.hops))
	for ttl := range db.hops {
		ttls = append(ttls, ttl)
	}
	sort.Ints(ttls)
	return ttls
}

// DumpRows returns the cache contents as a table, ttl descending then
// flow-id descending, for debug output via DumpTable.
func (db *DB) DumpRows() [][]string {
	keys := make([]ifaceKey, 0, len(db.ifaces))
	for k := range db.ifaces {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].ttl != keys[j].ttl {
			return keys[i].ttl > keys[j].ttl
		}
		return keys[i].firstFlow > keys[j].firstFlow
	})

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		ifc := db.ifaces[k]
		rows = append(rows, []string{
			fmt.Sprintf("%d", k.ttl),
			fmt.Sprintf("%d", k.firstFlow),
			iface.Uint32ToIP(ifc.IP).String(),
			fmt.Sprintf("%.2f", ifc.RTTAvg),
		})
	}
	return rows
}
