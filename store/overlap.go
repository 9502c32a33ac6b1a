package store

import (
	"github.com/google/btree"

	"github.com/solettaproject/soletta-sub010/ferr"
)

// bitInterval is one entry's occupied bit range within its map, half-open
// [Start, End). Ordered by Start so an ascending scan of the tree visits
// entries in address order — the google/btree.BTreeG this backs is
// grounded on the teacher's go.mod carrying google/btree with no existing
// consumer; the overlap check spec §4.4 requires ("no two entries occupy
// overlapping ranges") is exactly the sorted-range problem it exists for.
type bitInterval struct {
	start, end int
	name       string
}

func lessInterval(a, b bitInterval) bool {
	return a.start < b.start
}

// overlapTree checks, as each entry is registered, whether its bit range
// collides with any already-registered entry in the same map.
type overlapTree struct {
	t *btree.BTreeG[bitInterval]
}

func newOverlapTree() *overlapTree {
	return &overlapTree{t: btree.NewG(32, lessInterval)}
}

// insert adds iv, failing if it overlaps an entry already present. On
// failure iv is not inserted, so the tree always reflects only
// non-overlapping entries.
func (o *overlapTree) insert(iv bitInterval) error {
	var collision bitInterval
	found := false

	// the nearest entry starting at or before iv.start might still end
	// after iv.start, i.e. overlap.
	o.t.DescendLessOrEqual(iv, func(other bitInterval) bool {
		if other.end > iv.start {
			collision, found = other, true
		}
		return false // only the closest predecessor matters
	})
	if !found {
		// the nearest entry starting at or after iv.start might start
		// before iv.end, i.e. overlap from the other side.
		o.t.AscendGreaterOrEqual(iv, func(other bitInterval) bool {
			if other.start < iv.end {
				collision, found = other, true
			}
			return false
		})
	}
	if found {
		return ferr.Newf(ferr.InvalidArgument, "entry %q overlaps entry %q in [%d,%d) vs [%d,%d)",
			iv.name, collision.name, iv.start, iv.end, collision.start, collision.end)
	}

	o.t.ReplaceOrInsert(iv)
	return nil
}
