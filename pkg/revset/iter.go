package revset

import (
	"context"

	"github.com/strata-vcs/strata/pkg/index"
)

type emptyIter struct{}

func (emptyIter) next() (index.Position, bool, error) { return 0, false, nil }

type posSliceIter struct {
	ctx   context.Context
	items []index.Position
	i     int
}

func (it *posSliceIter) next() (index.Position, bool, error) {
	if err := it.ctx.Err(); err != nil {
		return 0, false, err
	}
	if it.i >= len(it.items) {
		return 0, false, nil
	}
	pos := it.items[it.i]
	it.i++
	return pos, true, nil
}

type walkIter struct {
	ctx context.Context
	w   *index.AncestorWalker
}

func (it *walkIter) next() (index.Position, bool, error) {
	if err := it.ctx.Err(); err != nil {
		return 0, false, err
	}
	pos, ok := it.w.Next()
	return pos, ok, nil
}

// cursor buffers one element of lookahead for the ordered-merge combinators.
type cursor struct {
	it  iterator
	pos index.Position
	ok  bool
	err error
}

func newCursor(it iterator) *cursor {
	c := &cursor{it: it}
	c.advance()
	return c
}

func (c *cursor) advance() {
	if c.err != nil {
		return
	}
	c.pos, c.ok, c.err = c.it.next()
}

// unionIter merges two canonical-order sequences, deduplicating.
type unionIter struct {
	ctx  context.Context
	ix   *index.Index
	a, b *cursor
}

func (it *unionIter) next() (index.Position, bool, error) {
	if err := it.ctx.Err(); err != nil {
		return 0, false, err
	}
	a, b := it.a, it.b
	if a.err != nil {
		return 0, false, a.err
	}
	if b.err != nil {
		return 0, false, b.err
	}
	switch {
	case !a.ok && !b.ok:
		return 0, false, nil
	case !a.ok:
		pos := b.pos
		b.advance()
		return pos, true, b.err
	case !b.ok:
		pos := a.pos
		a.advance()
		return pos, true, a.err
	case a.pos == b.pos:
		pos := a.pos
		a.advance()
		b.advance()
		return pos, true, firstErr(a.err, b.err)
	case it.ix.Before(a.pos, b.pos):
		pos := a.pos
		a.advance()
		return pos, true, a.err
	default:
		pos := b.pos
		b.advance()
		return pos, true, b.err
	}
}

// intersectIter emits elements present in both sequences. Exhaustion of
// either side ends the whole intersection immediately.
type intersectIter struct {
	ctx  context.Context
	ix   *index.Index
	a, b *cursor
}

func (it *intersectIter) next() (index.Position, bool, error) {
	a, b := it.a, it.b
	for {
		if err := it.ctx.Err(); err != nil {
			return 0, false, err
		}
		if a.err != nil {
			return 0, false, a.err
		}
		if b.err != nil {
			return 0, false, b.err
		}
		if !a.ok || !b.ok {
			return 0, false, nil
		}
		switch {
		case a.pos == b.pos:
			pos := a.pos
			a.advance()
			b.advance()
			return pos, true, nil
		case it.ix.Before(a.pos, b.pos):
			// a's head can never appear later in b: both sides descend in
			// the same total order.
			a.advance()
		default:
			b.advance()
		}
	}
}

// diffIter emits elements of a absent from b.
type diffIter struct {
	ctx  context.Context
	ix   *index.Index
	a, b *cursor
}

func (it *diffIter) next() (index.Position, bool, error) {
	a, b := it.a, it.b
	for {
		if err := it.ctx.Err(); err != nil {
			return 0, false, err
		}
		if a.err != nil {
			return 0, false, a.err
		}
		if b.err != nil {
			return 0, false, b.err
		}
		if !a.ok {
			return 0, false, nil
		}
		if !b.ok {
			pos := a.pos
			a.advance()
			return pos, true, nil
		}
		switch {
		case a.pos == b.pos:
			a.advance()
			b.advance()
		case it.ix.Before(a.pos, b.pos):
			pos := a.pos
			a.advance()
			return pos, true, nil
		default:
			b.advance()
		}
	}
}

func firstErr(a, b error) error {
	if a != nil {
		return a
	}
	return b
}
