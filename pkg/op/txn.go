package op

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/user"
	"time"

	"github.com/strata-vcs/strata/pkg/object"
)

// ErrTransactionClosed is returned when a committed or aborted transaction
// is used again.
var ErrTransactionClosed = errors.New("transaction already committed or aborted")

type txState int

const (
	txPending txState = iota
	txCommitted
	txAborted
)

// Transaction accumulates view mutations against a base read from the
// current operation heads. Commit appends exactly one new operation whose
// parents are those heads. If another writer committed in the meantime the
// log simply grows a second head sharing the same parent; writers never
// block on or invalidate each other.
type Transaction struct {
	log        *Log
	baseHeads  []object.ID
	view       *View
	newCommits []object.ID
	state      txState
}

// NewTransaction reads the current (reconciled) view as the base of a new
// transaction.
func (l *Log) NewTransaction(ctx context.Context) (*Transaction, error) {
	view, heads, err := l.CurrentView(ctx)
	if err != nil {
		return nil, err
	}
	return &Transaction{log: l, baseHeads: heads, view: view.Clone()}, nil
}

// View exposes the candidate view for inspection.
func (tx *Transaction) View() *View { return tx.view }

// BaseHeads returns the operation heads the transaction started from.
func (tx *Transaction) BaseHeads() []object.ID {
	return append([]object.ID(nil), tx.baseHeads...)
}

// RecordCommit marks a commit written during this transaction so the
// commit-existence invariant check can skip a store round-trip for it.
func (tx *Transaction) RecordCommit(id object.ID) {
	tx.newCommits = append(tx.newCommits, id)
}

// AddHead makes id a visible head, removing any of its ancestors by id
// match only (graph-aware pruning is the caller's job via the index).
func (tx *Transaction) AddHead(id object.ID) {
	if !tx.view.HasHead(id) {
		tx.view.Heads = append(tx.view.Heads, id)
	}
}

// RemoveHead drops id from the visible heads.
func (tx *Transaction) RemoveHead(id object.ID) {
	out := tx.view.Heads[:0]
	for _, h := range tx.view.Heads {
		if h != id {
			out = append(out, h)
		}
	}
	tx.view.Heads = out
}

// SetHeads replaces the visible heads wholesale.
func (tx *Transaction) SetHeads(ids []object.ID) {
	tx.view.Heads = append([]object.ID(nil), ids...)
}

// SetRef points a named ref at a commit, clearing any recorded divergence.
func (tx *Transaction) SetRef(name string, id object.ID) {
	tx.view.Refs[name] = id
	delete(tx.view.Conflicts, name)
}

// RemoveRef deletes a named ref (and any recorded divergence).
func (tx *Transaction) RemoveRef(name string) {
	delete(tx.view.Refs, name)
	delete(tx.view.Conflicts, name)
}

// SetWorkingCopy records the checked-out commit.
func (tx *Transaction) SetWorkingCopy(id object.ID) {
	tx.view.WorkingCopy = id
	delete(tx.view.Conflicts, "@")
}

// Abort discards the transaction. Nothing was written.
func (tx *Transaction) Abort() {
	if tx.state == txPending {
		tx.state = txAborted
	}
}

// Commit validates the candidate view, persists it, and appends the new
// operation. On success the transaction's heads replace its base heads; a
// concurrent writer that already did so leaves both operations as heads.
func (tx *Transaction) Commit(ctx context.Context, description string) (object.ID, error) {
	if tx.state != txPending {
		return "", ErrTransactionClosed
	}
	if err := tx.checkViewInvariant(ctx); err != nil {
		tx.state = txAborted
		return "", err
	}

	viewID, err := tx.log.store.WriteObject(ctx, object.KindView, MarshalView(tx.view))
	if err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	opID, err := tx.log.store.WriteObject(ctx, object.KindOperation, MarshalOperation(&Operation{
		Parents:     tx.baseHeads,
		View:        viewID,
		When:        nowUnix(),
		Description: description,
		Username:    currentUsername(),
		Hostname:    currentHostname(),
	}))
	if err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	if err := tx.log.store.UpdateOpHeads(ctx, []object.ID{opID}, tx.baseHeads); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	tx.state = txCommitted
	return opID, nil
}

// checkViewInvariant verifies that the candidate view serializes and reads
// back: every referenced commit must exist in the store and every ref name
// must be representable. Commits recorded via RecordCommit were written
// through this transaction and are trusted.
func (tx *Transaction) checkViewInvariant(ctx context.Context) error {
	for name := range tx.view.Refs {
		if !ValidRefName(name) {
			return fmt.Errorf("invalid ref name %q", name)
		}
	}
	for name := range tx.view.Conflicts {
		// "@" records a diverged working copy, not a ref.
		if name != "@" && !ValidRefName(name) {
			return fmt.Errorf("invalid ref name %q", name)
		}
	}
	fresh := make(map[object.ID]bool, len(tx.newCommits))
	for _, id := range tx.newCommits {
		fresh[id] = true
	}
	check := func(id object.ID, where string) error {
		if id == "" || fresh[id] {
			return nil
		}
		ok, err := tx.log.store.HasObject(ctx, object.KindCommit, id)
		if err != nil {
			return err
		}
		if !ok {
			return &InvariantViolationError{Commit: id, Where: where}
		}
		return nil
	}
	for _, h := range tx.view.Heads {
		if err := check(h, "heads"); err != nil {
			return err
		}
	}
	for name, id := range tx.view.Refs {
		if err := check(id, "ref "+name); err != nil {
			return err
		}
	}
	for name, ids := range tx.view.Conflicts {
		for _, id := range ids {
			if err := check(id, "conflicted ref "+name); err != nil {
				return err
			}
		}
	}
	return check(tx.view.WorkingCopy, "working copy")
}

func nowUnix() int64 { return time.Now().Unix() }

func currentUsername() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}

func currentHostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
