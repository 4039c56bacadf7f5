package op

import (
	"context"
	"fmt"
	"sort"

	"github.com/strata-vcs/strata/pkg/backend"
	"github.com/strata-vcs/strata/pkg/object"
)

// InvariantViolationError reports a transaction whose candidate view
// references a commit the store does not contain. The transaction aborts
// instead of persisting a view that cannot be read back.
type InvariantViolationError struct {
	Commit object.ID
	Where  string
}

func (e *InvariantViolationError) Error() string {
	return fmt.Sprintf("view %s references commit %s which is not in the store",
		e.Where, e.Commit.Short(12))
}

// Log reads and appends operations through a backend. A Log itself is
// stateless; all truth lives in the backend's op heads and objects.
type Log struct {
	store backend.Backend
}

// NewLog returns a Log over the given backend.
func NewLog(store backend.Backend) *Log {
	return &Log{store: store}
}

// Init writes the initial empty-view operation and makes it the sole head.
// The repository's first operation has no parents.
func (l *Log) Init(ctx context.Context, description string) (object.ID, error) {
	heads, err := l.store.OpHeads(ctx)
	if err != nil {
		return "", err
	}
	if len(heads) != 0 {
		return "", fmt.Errorf("init operation log: already initialized with %d head(s)", len(heads))
	}
	viewID, err := l.store.WriteObject(ctx, object.KindView, MarshalView(NewView()))
	if err != nil {
		return "", fmt.Errorf("init operation log: %w", err)
	}
	opID, err := l.store.WriteObject(ctx, object.KindOperation, MarshalOperation(&Operation{
		View:        viewID,
		When:        nowUnix(),
		Description: description,
		Username:    currentUsername(),
		Hostname:    currentHostname(),
	}))
	if err != nil {
		return "", fmt.Errorf("init operation log: %w", err)
	}
	if err := l.store.UpdateOpHeads(ctx, []object.ID{opID}, nil); err != nil {
		return "", fmt.Errorf("init operation log: %w", err)
	}
	return opID, nil
}

// Heads returns the current head operation ids. More than one means
// concurrent writers diverged; readers reconcile, they do not fail.
func (l *Log) Heads(ctx context.Context) ([]object.ID, error) {
	return l.store.OpHeads(ctx)
}

// ReadOperation decodes one operation.
func (l *Log) ReadOperation(ctx context.Context, id object.ID) (*Operation, error) {
	payload, err := l.store.ReadObject(ctx, object.KindOperation, id)
	if err != nil {
		return nil, err
	}
	o, err := UnmarshalOperation(payload)
	if err != nil {
		return nil, &object.CorruptError{Kind: object.KindOperation, ID: id, Reason: err.Error()}
	}
	return o, nil
}

// ReadView decodes one view.
func (l *Log) ReadView(ctx context.Context, id object.ID) (*View, error) {
	payload, err := l.store.ReadObject(ctx, object.KindView, id)
	if err != nil {
		return nil, err
	}
	v, err := UnmarshalView(payload)
	if err != nil {
		return nil, &object.CorruptError{Kind: object.KindView, ID: id, Reason: err.Error()}
	}
	return v, nil
}

// ViewOf reads the view an operation produced.
func (l *Log) ViewOf(ctx context.Context, opID object.ID) (*View, error) {
	o, err := l.ReadOperation(ctx, opID)
	if err != nil {
		return nil, err
	}
	return l.ReadView(ctx, o.View)
}

// CurrentView returns the logical current view plus the head operation ids
// it was derived from. With divergent heads the views are reconciled here,
// lazily; nothing is written. The next committed transaction will record
// all current heads as its parents, collapsing the fork.
func (l *Log) CurrentView(ctx context.Context) (*View, []object.ID, error) {
	heads, err := l.store.OpHeads(ctx)
	if err != nil {
		return nil, nil, err
	}
	if len(heads) == 0 {
		return nil, nil, fmt.Errorf("operation log is empty (repository not initialized)")
	}
	sort.Slice(heads, func(i, j int) bool { return heads[i] < heads[j] })

	view, err := l.ViewOf(ctx, heads[0])
	if err != nil {
		return nil, nil, err
	}
	for _, h := range heads[1:] {
		other, err := l.ViewOf(ctx, h)
		if err != nil {
			return nil, nil, err
		}
		view = ReconcileViews(view, other)
	}
	return view, heads, nil
}

// HistoryEntry pairs an operation with its id for presentation.
type HistoryEntry struct {
	ID object.ID
	Op *Operation
}

// History lists operations reachable from the current heads, newest first
// (by timestamp, then id). limit <= 0 means unbounded.
func (l *Log) History(ctx context.Context, limit int) ([]HistoryEntry, error) {
	heads, err := l.store.OpHeads(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[object.ID]bool)
	var all []HistoryEntry
	stack := append([]object.ID(nil), heads...)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		seen[id] = true
		o, err := l.ReadOperation(ctx, id)
		if err != nil {
			return nil, err
		}
		all = append(all, HistoryEntry{ID: id, Op: o})
		stack = append(stack, o.Parents...)
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Op.When == all[j].Op.When {
			return all[i].ID > all[j].ID
		}
		return all[i].Op.When > all[j].Op.When
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// Restore records a new operation whose view equals the view of target.
// The operation history is append-only: restoring never rewrites or drops
// the operations being undone, so a restore can itself be undone.
func (l *Log) Restore(ctx context.Context, target object.ID) (object.ID, error) {
	targetOp, err := l.ReadOperation(ctx, target)
	if err != nil {
		return "", fmt.Errorf("restore operation: %w", err)
	}
	_, heads, err := l.CurrentView(ctx)
	if err != nil {
		return "", err
	}
	opID, err := l.store.WriteObject(ctx, object.KindOperation, MarshalOperation(&Operation{
		Parents:     heads,
		View:        targetOp.View,
		When:        nowUnix(),
		Description: fmt.Sprintf("restore to operation %s", target.Short(12)),
		Username:    currentUsername(),
		Hostname:    currentHostname(),
	}))
	if err != nil {
		return "", fmt.Errorf("restore operation: %w", err)
	}
	if err := l.store.UpdateOpHeads(ctx, []object.ID{opID}, heads); err != nil {
		return "", fmt.Errorf("restore operation: %w", err)
	}
	return opID, nil
}

// Undo reverts the effects of target: the new current view is the one that
// was current just before target ran (its parent's view, or the reconciled
// view of several parents). Like Restore, it only ever appends.
func (l *Log) Undo(ctx context.Context, target object.ID) (object.ID, error) {
	targetOp, err := l.ReadOperation(ctx, target)
	if err != nil {
		return "", fmt.Errorf("undo operation: %w", err)
	}
	if len(targetOp.Parents) == 0 {
		return "", fmt.Errorf("undo operation %s: cannot undo the initial operation", target.Short(12))
	}
	before, err := l.ViewOf(ctx, targetOp.Parents[0])
	if err != nil {
		return "", fmt.Errorf("undo operation: %w", err)
	}
	for _, p := range targetOp.Parents[1:] {
		other, err := l.ViewOf(ctx, p)
		if err != nil {
			return "", fmt.Errorf("undo operation: %w", err)
		}
		before = ReconcileViews(before, other)
	}
	viewID, err := l.store.WriteObject(ctx, object.KindView, MarshalView(before))
	if err != nil {
		return "", fmt.Errorf("undo operation: %w", err)
	}
	_, heads, err := l.CurrentView(ctx)
	if err != nil {
		return "", err
	}
	opID, err := l.store.WriteObject(ctx, object.KindOperation, MarshalOperation(&Operation{
		Parents:     heads,
		View:        viewID,
		When:        nowUnix(),
		Description: fmt.Sprintf("undo operation %s", target.Short(12)),
		Username:    currentUsername(),
		Hostname:    currentHostname(),
	}))
	if err != nil {
		return "", fmt.Errorf("undo operation: %w", err)
	}
	if err := l.store.UpdateOpHeads(ctx, []object.ID{opID}, heads); err != nil {
		return "", fmt.Errorf("undo operation: %w", err)
	}
	return opID, nil
}
