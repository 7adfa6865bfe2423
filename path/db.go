package path

// DefaultDiffFlags is the equality test the alias database uses to decide
// whether a newly observed path is "the same" as one already on file.
const DefaultDiffFlags = FixStars | FillMissing

// DB groups observed paths to a destination into aliases: distinct paths
// under DefaultDiffFlags equality. It is not safe for concurrent use.
type DB struct {
	maxAliases int
	byDst      map[uint32][]*Path
}

// NewDB returns a path database capping the number of aliases retained per
// destination at maxAliases. Once the cap is hit, the least recently
// matched alias is evicted to make room for a new one.
func NewDB(maxAliases int) *DB {
	return &DB{maxAliases: maxAliases, byDst: make(map[uint32][]*Path)}
}

// Alias records p against its destination's alias set, returning the index
// of the alias it matches (or now anchors). If p matches an existing
// alias, that alias's representative path is kept (p does not replace it)
// and bumped to the front of the LRU order; the comparison itself may fill
// star hops or a missing tail of either path from the other, as Diff does
// under DefaultDiffFlags. Otherwise p itself becomes a new alias,
// evicting the least recently used one if the destination is already at
// capacity.
func (db *DB) Alias(p *Path) int {
	aliases := db.byDst[p.Dst]

	for i, a := range aliases {
		if a.Diff(p, DefaultDiffFlags) == 0 {
			p.Alias = a.Alias
			db.touch(p.Dst, i)
			return a.Alias
		}
	}

	next := 0
	if len(aliases) > 0 {
		next = aliases[0].Alias + 1
	}
	p.Alias = next

	if db.maxAliases > 0 && len(aliases) >= db.maxAliases {
		aliases = aliases[:len(aliases)-1]
	}
	db.byDst[p.Dst] = append([]*Path{p}, aliases...)
	return next
}

// NAliases returns the number of distinct aliases on file for dst.
func (db *DB) NAliases(dst uint32) int {
	return len(db.byDst[dst])
}

// touch moves the alias at index i in dst's list to the front, marking it
// most recently used.
func (db *DB) touch(dst uint32, i int) {
	aliases := db.byDst[dst]
	if i == 0 {
		return
	}
	a := aliases[i]
	copy(aliases[1:i+1], aliases[:i])
	aliases[0] = a
	db.byDst[dst] = aliases
}
