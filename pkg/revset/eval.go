// Package revset implements the query language over the commit DAG: a
// textual expression parses to an AST, symbols resolve through a
// SymbolResolver, and evaluation against the commit index yields a lazy,
// deduplicated sequence of commit ids in canonical order (descending
// generation, ascending id — a commit always before its ancestors).
package revset

import (
	"context"
	"fmt"
	"sort"

	"github.com/strata-vcs/strata/pkg/index"
	"github.com/strata-vcs/strata/pkg/object"
)

// SymbolResolver maps a textual name to zero, one, or many commit ids.
// Short hash prefixes legitimately resolve to many; the engine reports that
// as ambiguity rather than picking one.
type SymbolResolver interface {
	ResolveSymbol(name string) ([]object.ID, error)
}

// Env is everything evaluation needs: the index for graph queries, the
// resolver for names, and the visible heads that bound all(), complement
// and ranges.
type Env struct {
	Index        *index.Index
	Resolver     SymbolResolver
	VisibleHeads []object.ID
}

// Result is a single-use lazy sequence of commit ids. The context given to
// Eval is checked between elements, so huge evaluations cancel promptly.
type Result struct {
	ix *index.Index
	it iterator
}

// Next yields the next commit id. ok is false once the set is exhausted.
func (r *Result) Next() (object.ID, bool, error) {
	pos, ok, err := r.it.next()
	if err != nil || !ok {
		return "", false, err
	}
	return r.ix.IDAt(pos), true, nil
}

// IDs drains the sequence.
func (r *Result) IDs() ([]object.ID, error) {
	var out []object.ID
	for {
		id, ok, err := r.Next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, id)
	}
}

// EvalString parses (expanding aliases) and evaluates a query.
func EvalString(ctx context.Context, src string, aliases map[string]string, env *Env) (*Result, error) {
	expr, err := Parse(src, aliases)
	if err != nil {
		return nil, err
	}
	return Eval(ctx, expr, env)
}

// Eval evaluates a parsed expression. Symbols resolve eagerly, so a
// resolution failure aborts here with no partial result; the returned
// sequence itself can only fail on cancellation.
func Eval(ctx context.Context, expr Expr, env *Env) (*Result, error) {
	ev := &evaluator{ctx: ctx, env: env}
	it, err := ev.eval(expr)
	if err != nil {
		return nil, err
	}
	return &Result{ix: env.Index, it: it}, nil
}

type evaluator struct {
	ctx context.Context
	env *Env
}

type iterator interface {
	next() (index.Position, bool, error)
}

func (ev *evaluator) eval(expr Expr) (iterator, error) {
	switch e := expr.(type) {
	case *symbolExpr:
		return ev.evalSymbol(e.name)
	case *intExpr:
		// A bare number is a symbol (e.g. an all-digit hash prefix).
		return ev.evalSymbol(e.text)
	case *notExpr:
		x, err := ev.eval(e.x)
		if err != nil {
			return nil, err
		}
		return &diffIter{ctx: ev.ctx, ix: ev.env.Index, a: newCursor(ev.allIter()), b: newCursor(x)}, nil
	case *binaryExpr:
		l, err := ev.eval(e.l)
		if err != nil {
			return nil, err
		}
		r, err := ev.eval(e.r)
		if err != nil {
			return nil, err
		}
		switch e.op {
		case tokPipe:
			return &unionIter{ctx: ev.ctx, ix: ev.env.Index, a: newCursor(l), b: newCursor(r)}, nil
		case tokAmp:
			return &intersectIter{ctx: ev.ctx, ix: ev.env.Index, a: newCursor(l), b: newCursor(r)}, nil
		case tokMinus:
			return &diffIter{ctx: ev.ctx, ix: ev.env.Index, a: newCursor(l), b: newCursor(r)}, nil
		}
		return nil, &EvalError{Msg: fmt.Sprintf("unhandled operator %v", e.op)}
	case *rangeExpr:
		return ev.evalRange(e.lo, e.hi)
	case *funcExpr:
		return ev.evalFunc(e)
	default:
		return nil, &EvalError{Msg: fmt.Sprintf("unhandled expression %T", expr)}
	}
}

func (ev *evaluator) evalFunc(e *funcExpr) (iterator, error) {
	switch e.name {
	case "all":
		return ev.allIter(), nil
	case "none":
		return emptyIter{}, nil
	case "range":
		return ev.evalRange(e.args[0], e.args[1])
	}

	seeds, err := ev.materialize(e.args[0])
	if err != nil {
		return nil, err
	}
	ix := ev.env.Index
	switch e.name {
	case "ancestors":
		if len(e.args) == 2 {
			depth := e.args[1].(*intExpr).value
			return &walkIter{ctx: ev.ctx, w: ix.WalkAncestorsDepth(seeds, depth)}, nil
		}
		return &walkIter{ctx: ev.ctx, w: ix.WalkAncestors(seeds)}, nil
	case "descendants":
		set := ix.DescendantPositions(seeds)
		positions := make([]index.Position, 0, len(set))
		for pos := range set {
			positions = append(positions, pos)
		}
		return ev.sliceIter(positions), nil
	case "parents":
		var out []index.Position
		for _, pos := range seeds {
			out = append(out, ix.ParentsAt(pos)...)
		}
		return ev.sliceIter(out), nil
	case "children":
		var out []index.Position
		for _, pos := range seeds {
			out = append(out, ix.ChildrenAt(pos)...)
		}
		return ev.sliceIter(out), nil
	case "heads":
		ids, err := ix.Heads(ev.positionsToIDs(seeds))
		if err != nil {
			return nil, &EvalError{Msg: "heads()", Err: err}
		}
		return ev.idSliceIter(ids)
	case "roots":
		ids, err := ix.Roots(ev.positionsToIDs(seeds))
		if err != nil {
			return nil, &EvalError{Msg: "roots()", Err: err}
		}
		return ev.idSliceIter(ids)
	}
	return nil, &EvalError{Msg: fmt.Sprintf("unhandled function %q", e.name)}
}

// evalRange builds lo..hi: ancestors of hi minus ancestors of lo. Both
// sides are ancestor-closed walks in canonical order, so the difference
// stays lazy.
func (ev *evaluator) evalRange(lo, hi Expr) (iterator, error) {
	loSeeds, err := ev.materialize(lo)
	if err != nil {
		return nil, err
	}
	hiSeeds, err := ev.materialize(hi)
	if err != nil {
		return nil, err
	}
	ix := ev.env.Index
	return &diffIter{
		ctx: ev.ctx,
		ix:  ix,
		a:   newCursor(&walkIter{ctx: ev.ctx, w: ix.WalkAncestors(hiSeeds)}),
		b:   newCursor(&walkIter{ctx: ev.ctx, w: ix.WalkAncestors(loSeeds)}),
	}, nil
}

// allIter is the ancestor closure of the visible heads.
func (ev *evaluator) allIter() iterator {
	ix := ev.env.Index
	seeds := make([]index.Position, 0, len(ev.env.VisibleHeads))
	for _, id := range ev.env.VisibleHeads {
		if pos, ok := ix.PositionOf(id); ok {
			seeds = append(seeds, pos)
		}
	}
	return &walkIter{ctx: ev.ctx, w: ix.WalkAncestors(seeds)}
}

func (ev *evaluator) evalSymbol(name string) (iterator, error) {
	ids, err := ev.env.Resolver.ResolveSymbol(name)
	if err != nil {
		return nil, err
	}
	switch len(ids) {
	case 0:
		return nil, &UnresolvedError{Symbol: name}
	case 1:
		pos, ok := ev.env.Index.PositionOf(ids[0])
		if !ok {
			return nil, &EvalError{
				Msg: fmt.Sprintf("symbol %q resolves to unindexed commit %s", name, ids[0].Short(12)),
			}
		}
		return ev.sliceIter([]index.Position{pos}), nil
	default:
		sorted := make([]object.ID, len(ids))
		copy(sorted, ids)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
		return nil, &AmbiguousError{Symbol: name, Candidates: sorted}
	}
}

func (ev *evaluator) materialize(expr Expr) ([]index.Position, error) {
	it, err := ev.eval(expr)
	if err != nil {
		return nil, err
	}
	var out []index.Position
	for {
		pos, ok, err := it.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, pos)
	}
}

func (ev *evaluator) positionsToIDs(positions []index.Position) []object.ID {
	out := make([]object.ID, 0, len(positions))
	for _, pos := range positions {
		out = append(out, ev.env.Index.IDAt(pos))
	}
	return out
}

// sliceIter sorts into canonical order, dedups, and iterates.
func (ev *evaluator) sliceIter(positions []index.Position) iterator {
	ix := ev.env.Index
	sort.Slice(positions, func(i, j int) bool { return ix.Before(positions[i], positions[j]) })
	deduped := positions[:0]
	var prev index.Position
	for i, pos := range positions {
		if i > 0 && pos == prev {
			continue
		}
		deduped = append(deduped, pos)
		prev = pos
	}
	return &posSliceIter{ctx: ev.ctx, items: deduped}
}

func (ev *evaluator) idSliceIter(ids []object.ID) (iterator, error) {
	positions := make([]index.Position, 0, len(ids))
	for _, id := range ids {
		pos, ok := ev.env.Index.PositionOf(id)
		if !ok {
			return nil, &EvalError{Msg: fmt.Sprintf("unindexed commit %s", id.Short(12))}
		}
		positions = append(positions, pos)
	}
	return ev.sliceIter(positions), nil
}
