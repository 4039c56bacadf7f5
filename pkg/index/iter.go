package index

import (
	"container/heap"
	"sort"

	"github.com/strata-vcs/strata/pkg/object"
)

func sortIDs(ids []object.ID) {
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
}

// Before reports whether position a sorts before b in the canonical
// iteration order: descending generation, then ascending id. The order is
// total, so iteration is deterministic even between commits with no
// ancestry relation.
func (ix *Index) Before(a, b Position) bool {
	ga, gb := ix.GenerationAt(a), ix.GenerationAt(b)
	if ga == gb {
		return ix.IDAt(a) < ix.IDAt(b)
	}
	return ga > gb
}

// AncestorWalker lazily yields the ancestor closure of its seeds (seeds
// included) in canonical order. Because every parent has a strictly lower
// generation than its child, emission never visits a commit before all of
// its indexed descendants among the seeds' closure.
type AncestorWalker struct {
	ix      *Index
	h       walkMaxHeap
	seen    map[Position]bool
	depths  map[Position]uint64
	maxHops uint64
	limited bool
}

// WalkAncestors starts an unbounded ancestor walk from the seeds.
func (ix *Index) WalkAncestors(seeds []Position) *AncestorWalker {
	return ix.walkAncestors(seeds, 0, false)
}

// WalkAncestorsDepth bounds the walk at maxHops parent edges from the
// nearest seed; maxHops of zero yields the seeds only.
func (ix *Index) WalkAncestorsDepth(seeds []Position, maxHops uint64) *AncestorWalker {
	return ix.walkAncestors(seeds, maxHops, true)
}

func (ix *Index) walkAncestors(seeds []Position, maxHops uint64, limited bool) *AncestorWalker {
	w := &AncestorWalker{
		ix:      ix,
		seen:    make(map[Position]bool),
		maxHops: maxHops,
		limited: limited,
	}
	if limited {
		w.depths = make(map[Position]uint64)
	}
	for _, pos := range seeds {
		if !w.seen[pos] {
			w.seen[pos] = true
			if limited {
				w.depths[pos] = 0
			}
			heap.Push(&w.h, ix.walkItemAt(pos))
		}
	}
	return w
}

// Next yields the next position in canonical order.
func (w *AncestorWalker) Next() (Position, bool) {
	if w.h.Len() == 0 {
		return 0, false
	}
	item := heap.Pop(&w.h).(walkItem)
	var depth uint64
	if w.limited {
		depth = w.depths[item.pos]
		if depth >= w.maxHops {
			// Parents would exceed the hop budget; emit without expanding.
			return item.pos, true
		}
	}
	for _, p := range w.ix.ParentsAt(item.pos) {
		if w.limited {
			// A later, shorter path can only arrive before p pops, since
			// pops happen in non-increasing generation order.
			if d, ok := w.depths[p]; !ok || depth+1 < d {
				w.depths[p] = depth + 1
			}
		}
		if !w.seen[p] {
			w.seen[p] = true
			heap.Push(&w.h, w.ix.walkItemAt(p))
		}
	}
	return item.pos, true
}

// DescendantPositions returns the descendant closure of the seeds (seeds
// included) as a position set, following child edges.
func (ix *Index) DescendantPositions(seeds []Position) map[Position]bool {
	set := make(map[Position]bool)
	var stack []Position
	for _, pos := range seeds {
		if !set[pos] {
			set[pos] = true
			stack = append(stack, pos)
		}
	}
	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, c := range ix.ChildrenAt(pos) {
			if !set[c] {
				set[c] = true
				stack = append(stack, c)
			}
		}
	}
	return set
}

// Roots returns the subset of ids that are not descendants of any other
// member: the mirror image of Heads.
func (ix *Index) Roots(ids []object.ID) ([]object.ID, error) {
	members := make(map[Position]bool, len(ids))
	for _, id := range ids {
		pos, ok := ix.PositionOf(id)
		if !ok {
			return nil, &object.NotFoundError{Kind: object.KindCommit, ID: id}
		}
		members[pos] = true
	}

	seen := make(map[Position]bool)
	var stack []Position
	for pos := range members {
		for _, c := range ix.ChildrenAt(pos) {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}
	reached := make(map[Position]bool)
	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if members[pos] {
			reached[pos] = true
		}
		for _, c := range ix.ChildrenAt(pos) {
			if !seen[c] {
				seen[c] = true
				stack = append(stack, c)
			}
		}
	}

	var out []object.ID
	for pos := range members {
		if !reached[pos] {
			out = append(out, ix.IDAt(pos))
		}
	}
	sortIDs(out)
	return out, nil
}
