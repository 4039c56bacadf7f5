package index

import (
	"container/heap"

	"github.com/strata-vcs/strata/pkg/object"
)

type walkItem struct {
	pos        Position
	id         object.ID
	generation uint64
}

// walkMaxHeap orders commits by descending generation, breaking ties by
// ascending id. This is the canonical iteration order everywhere: a commit
// always surfaces before any of its ancestors.
type walkMaxHeap []walkItem

func (h walkMaxHeap) Len() int { return len(h) }

func (h walkMaxHeap) Less(i, j int) bool {
	if h[i].generation == h[j].generation {
		return h[i].id < h[j].id
	}
	return h[i].generation > h[j].generation
}

func (h walkMaxHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *walkMaxHeap) Push(x any) { *h = append(*h, x.(walkItem)) }

func (h *walkMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

func (ix *Index) walkItemAt(pos Position) walkItem {
	return walkItem{pos: pos, id: ix.IDAt(pos), generation: ix.GenerationAt(pos)}
}

// IsAncestor reports whether a is reachable from b along parent edges,
// inclusive of a == b. The walk is pruned by generation numbers: an
// ancestor can never have a greater generation than its descendant.
func (ix *Index) IsAncestor(a, b object.ID) (bool, error) {
	apos, ok := ix.PositionOf(a)
	if !ok {
		return false, &object.NotFoundError{Kind: object.KindCommit, ID: a}
	}
	bpos, ok := ix.PositionOf(b)
	if !ok {
		return false, &object.NotFoundError{Kind: object.KindCommit, ID: b}
	}
	if apos == bpos {
		return true, nil
	}
	agen := ix.GenerationAt(apos)
	if ix.GenerationAt(bpos) <= agen {
		return false, nil
	}

	h := &walkMaxHeap{ix.walkItemAt(bpos)}
	heap.Init(h)
	seen := map[Position]bool{bpos: true}
	for h.Len() > 0 {
		item := heap.Pop(h).(walkItem)
		if item.pos == apos {
			return true, nil
		}
		if item.generation <= agen {
			// Everything left in the heap is at or below a's generation.
			continue
		}
		for _, p := range ix.ParentsAt(item.pos) {
			if !seen[p] && ix.GenerationAt(p) >= agen {
				seen[p] = true
				heap.Push(h, ix.walkItemAt(p))
			}
		}
	}
	return false, nil
}

// ancestorPositions returns the ancestor-closed position set of the given
// ids (the ids themselves included).
func (ix *Index) ancestorPositions(ids []object.ID) (map[Position]bool, error) {
	set := make(map[Position]bool)
	var stack []Position
	for _, id := range ids {
		pos, ok := ix.PositionOf(id)
		if !ok {
			return nil, &object.NotFoundError{Kind: object.KindCommit, ID: id}
		}
		if !set[pos] {
			set[pos] = true
			stack = append(stack, pos)
		}
	}
	for len(stack) > 0 {
		pos := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, p := range ix.ParentsAt(pos) {
			if !set[p] {
				set[p] = true
				stack = append(stack, p)
			}
		}
	}
	return set, nil
}

// CommonAncestors computes every minimal common ancestor of the two sets:
// the commits that are ancestors of both sides and not ancestors of any
// other such commit. With merges there can be several; none are dropped.
func (ix *Index) CommonAncestors(setA, setB []object.ID) ([]object.ID, error) {
	ancA, err := ix.ancestorPositions(setA)
	if err != nil {
		return nil, err
	}
	ancB, err := ix.ancestorPositions(setB)
	if err != nil {
		return nil, err
	}
	small, large := ancA, ancB
	if len(ancB) < len(ancA) {
		small, large = ancB, ancA
	}

	// The intersection of two ancestor-closed sets is ancestor-closed, so
	// its minimal members are exactly those with no child inside it.
	common := make(map[Position]bool)
	for pos := range small {
		if large[pos] {
			common[pos] = true
		}
	}
	var out []object.ID
	for pos := range common {
		isHead := true
		for _, c := range ix.ChildrenAt(pos) {
			if common[c] {
				isHead = false
				break
			}
		}
		if isHead {
			out = append(out, ix.IDAt(pos))
		}
	}
	sortIDs(out)
	return out, nil
}

// Heads returns the subset of ids that are not ancestors of any other
// member, removing redundant ancestors from a frontier set.
func (ix *Index) Heads(ids []object.ID) ([]object.ID, error) {
	members := make(map[Position]bool, len(ids))
	minGen := uint64(0)
	first := true
	for _, id := range ids {
		pos, ok := ix.PositionOf(id)
		if !ok {
			return nil, &object.NotFoundError{Kind: object.KindCommit, ID: id}
		}
		members[pos] = true
		if g := ix.GenerationAt(pos); first || g < minGen {
			minGen = g
			first = false
		}
	}

	// Walk ancestors starting from the parents of every member, pruned at
	// the lowest member generation. Any member reached is redundant.
	h := &walkMaxHeap{}
	seen := make(map[Position]bool)
	for pos := range members {
		for _, p := range ix.ParentsAt(pos) {
			if !seen[p] {
				seen[p] = true
				heap.Push(h, ix.walkItemAt(p))
			}
		}
	}
	reached := make(map[Position]bool)
	for h.Len() > 0 {
		item := heap.Pop(h).(walkItem)
		if members[item.pos] {
			reached[item.pos] = true
		}
		if item.generation <= minGen {
			continue
		}
		for _, p := range ix.ParentsAt(item.pos) {
			if !seen[p] && ix.GenerationAt(p) >= minGen {
				seen[p] = true
				heap.Push(h, ix.walkItemAt(p))
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
