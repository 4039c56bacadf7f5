// Package index maintains a derived, rebuildable structure over the commit
// DAG answering ancestry and ordering queries fast. It is never a source of
// truth: everything in it can be reconstructed from the object store.
package index

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/strata-vcs/strata/pkg/object"
)

// ErrParentNotIndexed is returned by Add when a commit arrives before one
// of its parents. Callers add commits in topological order, parents first.
var ErrParentNotIndexed = errors.New("parent commit not indexed")

// Position identifies a commit inside one index instance. Positions are
// assigned densely in insertion order and are not stable across rebuilds.
type Position uint32

type entry struct {
	id         object.ID
	change     object.ChangeID
	generation uint64
	parents    []Position
	children   []Position
}

// CommitReader supplies decoded commits for recursive indexing and
// rebuilds, typically backed by the object store.
type CommitReader interface {
	Commit(ctx context.Context, id object.ID) (*object.Commit, error)
}

// Index is safe for concurrent readers; Add and Rebuild must be serialized
// by the caller (the repository's single-writer discipline).
type Index struct {
	mu      sync.RWMutex
	entries []entry
	byID    map[object.ID]Position
}

// New returns an empty index.
func New() *Index {
	return &Index{byID: make(map[object.ID]Position)}
}

// NumCommits returns how many commits the index covers.
func (ix *Index) NumCommits() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Has reports whether the commit is indexed.
func (ix *Index) Has(id object.ID) bool {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	_, ok := ix.byID[id]
	return ok
}

// PositionOf resolves an id to its position.
func (ix *Index) PositionOf(id object.ID) (Position, bool) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pos, ok := ix.byID[id]
	return pos, ok
}

// IDAt returns the commit id at a position.
func (ix *Index) IDAt(pos Position) object.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.entries[pos].id
}

// ChangeAt returns the change id recorded for a position.
func (ix *Index) ChangeAt(pos Position) object.ChangeID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.entries[pos].change
}

// GenerationAt returns the generation number at a position.
func (ix *Index) GenerationAt(pos Position) uint64 {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.entries[pos].generation
}

// ParentsAt returns the parent positions of a commit.
func (ix *Index) ParentsAt(pos Position) []Position {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Position, len(ix.entries[pos].parents))
	copy(out, ix.entries[pos].parents)
	return out
}

// ChildrenAt returns the child positions of a commit.
func (ix *Index) ChildrenAt(pos Position) []Position {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	out := make([]Position, len(ix.entries[pos].children))
	copy(out, ix.entries[pos].children)
	return out
}

// Generation returns the generation number of a commit: 0 for DAG roots,
// 1 + max parent generation otherwise.
func (ix *Index) Generation(id object.ID) (uint64, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pos, ok := ix.byID[id]
	if !ok {
		return 0, &object.NotFoundError{Kind: object.KindCommit, ID: id}
	}
	return ix.entries[pos].generation, nil
}

// Parents returns the parent ids of a commit.
func (ix *Index) Parents(id object.ID) ([]object.ID, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	pos, ok := ix.byID[id]
	if !ok {
		return nil, &object.NotFoundError{Kind: object.KindCommit, ID: id}
	}
	out := make([]object.ID, 0, len(ix.entries[pos].parents))
	for _, p := range ix.entries[pos].parents {
		out = append(out, ix.entries[p].id)
	}
	return out, nil
}

// Add indexes one commit. Parents must already be indexed; re-adding an
// indexed commit is a no-op.
func (ix *Index) Add(id object.ID, c *object.Commit) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	if _, ok := ix.byID[id]; ok {
		return nil
	}
	e := entry{id: id, change: c.Change}
	for _, pid := range c.Parents {
		ppos, ok := ix.byID[pid]
		if !ok {
			return fmt.Errorf("add %s: parent %s: %w", id.Short(12), pid.Short(12), ErrParentNotIndexed)
		}
		e.parents = append(e.parents, ppos)
		if g := ix.entries[ppos].generation + 1; g > e.generation {
			e.generation = g
		}
	}
	pos := Position(len(ix.entries))
	ix.entries = append(ix.entries, e)
	ix.byID[id] = pos
	for _, ppos := range e.parents {
		ix.entries[ppos].children = append(ix.entries[ppos].children, pos)
	}
	return nil
}

// AddRecursive indexes every unindexed commit reachable from the given
// heads, reading commits from the store. This is the incremental path run
// after each transaction: only genuinely new commits are visited.
func (ix *Index) AddRecursive(ctx context.Context, r CommitReader, heads []object.ID) error {
	type frame struct {
		id       object.ID
		commit   *object.Commit
		expanded bool
	}
	var stack []frame
	for _, h := range heads {
		if !ix.Has(h) {
			stack = append(stack, frame{id: h})
		}
	}
	// Iterative DFS. A commit may appear on the stack more than once when
	// several children push it before it is indexed; the topmost instance
	// indexes it and the rest pop as no-ops.
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		top := &stack[len(stack)-1]
		if ix.Has(top.id) {
			stack = stack[:len(stack)-1]
			continue
		}
		if top.commit == nil {
			c, err := r.Commit(ctx, top.id)
			if err != nil {
				return fmt.Errorf("index %s: %w", top.id.Short(12), err)
			}
			top.commit = c
		}
		if !top.expanded {
			top.expanded = true
			pushed := false
			for _, p := range top.commit.Parents {
				if !ix.Has(p) {
					stack = append(stack, frame{id: p})
					pushed = true
				}
			}
			if pushed {
				continue
			}
		}
		if err := ix.Add(top.id, top.commit); err != nil {
			return err
		}
		stack = stack[:len(stack)-1]
	}
	return nil
}

// Rebuild discards the index and reconstructs it from the store. Recovery
// path only; the common path is AddRecursive.
func (ix *Index) Rebuild(ctx context.Context, r CommitReader, heads []object.ID) error {
	ix.mu.Lock()
	ix.entries = nil
	ix.byID = make(map[object.ID]Position)
	ix.mu.Unlock()
	return ix.AddRecursive(ctx, r, heads)
}

// ResolveIDPrefix returns every indexed commit id with the given hex
// prefix, sorted.
func (ix *Index) ResolveIDPrefix(prefix string) []object.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []object.ID
	for id := range ix.byID {
		if len(prefix) <= len(id) && string(id[:len(prefix)]) == prefix {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ResolveChangePrefix returns the ids of indexed commits whose change id
// starts with the given prefix, sorted.
func (ix *Index) ResolveChangePrefix(prefix string) []object.ID {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	var out []object.ID
	for _, e := range ix.entries {
		if len(prefix) <= len(e.change) && string(e.change[:len(prefix)]) == prefix {
			out = append(out, e.id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
