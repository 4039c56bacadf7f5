package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/strata-vcs/strata/pkg/object"
)

// CommitBuilder assembles a new commit. Each build mints a fresh ChangeID;
// rewrites go through RewriteCommit, which preserves it.
type CommitBuilder struct {
	repo        *Repo
	parents     []object.ID
	tree        object.ID
	description string
}

// NewCommitBuilder starts a commit with the given parents and tree.
func (r *Repo) NewCommitBuilder(parents []object.ID, tree object.ID) *CommitBuilder {
	return &CommitBuilder{
		repo:    r,
		parents: append([]object.ID(nil), parents...),
		tree:    tree,
	}
}

// SetDescription sets the commit message.
func (b *CommitBuilder) SetDescription(description string) *CommitBuilder {
	b.description = description
	return b
}

func (r *Repo) signatureNow() object.Signature {
	now := time.Now()
	return object.Signature{
		Name:  r.Settings.User.Name,
		Email: r.Settings.User.Email,
		When:  now.Unix(),
		TZ:    now.Format("-0700"),
	}
}

// Write stores the commit and returns its id alongside the decoded form.
// The commit gets a new ChangeID: it is a new logical change.
func (b *CommitBuilder) Write(ctx context.Context) (object.ID, *object.Commit, error) {
	sig := b.repo.signatureNow()
	c := &object.Commit{
		Parents:     b.parents,
		Tree:        b.tree,
		Change:      object.NewChangeID(),
		Author:      sig,
		Committer:   sig,
		Description: b.description,
	}
	id, err := b.repo.Store.WriteObject(ctx, object.KindCommit, object.MarshalCommit(c))
	if err != nil {
		return "", nil, fmt.Errorf("write commit: %w", err)
	}
	return id, c, nil
}

// RewriteCommit produces a successor of orig: mutate edits a copy, the
// ChangeID is kept so the old and new commit remain the same logical change,
// and the committer is stamped with the current identity and time. The
// author is preserved unless mutate changes it.
func (r *Repo) RewriteCommit(ctx context.Context, orig object.ID, mutate func(*object.Commit)) (object.ID, *object.Commit, error) {
	old, err := r.Commit(ctx, orig)
	if err != nil {
		return "", nil, fmt.Errorf("rewrite commit: %w", err)
	}
	c := &object.Commit{
		Parents:     append([]object.ID(nil), old.Parents...),
		Tree:        old.Tree,
		Change:      old.Change,
		Author:      old.Author,
		Committer:   r.signatureNow(),
		Description: old.Description,
	}
	if mutate != nil {
		mutate(c)
	}
	if c.Change != old.Change {
		return "", nil, fmt.Errorf("rewrite commit %s: change id must be preserved", orig.Short(12))
	}
	id, err := r.Store.WriteObject(ctx, object.KindCommit, object.MarshalCommit(c))
	if err != nil {
		return "", nil, fmt.Errorf("rewrite commit: %w", err)
	}
	return id, c, nil
}
