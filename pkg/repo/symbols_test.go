package repo

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/strata-vcs/strata/pkg/object"
	"github.com/strata-vcs/strata/pkg/revset"
)

func evalIDs(t *testing.T, r *Repo, src string) []object.ID {
	t.Helper()
	res, err := r.Evaluate(context.Background(), src)
	if err != nil {
		t.Fatalf("Evaluate(%q): %v", src, err)
	}
	ids, err := res.IDs()
	if err != nil {
		t.Fatalf("IDs(%q): %v", src, err)
	}
	return ids
}

func TestEvaluateRefsAndAncestors(t *testing.T) {
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "first", "main")
	c2 := newCommit(t, r, "second", "main", c1)

	got := evalIDs(t, r, "main")
	if len(got) != 1 || got[0] != c2 {
		t.Errorf("main = %v, want [%s]", got, c2)
	}

	got = evalIDs(t, r, "ancestors(main)")
	if len(got) != 2 || got[0] != c2 || got[1] != c1 {
		t.Errorf("ancestors(main) = %v, want [%s %s]", got, c2, c1)
	}

	got = evalIDs(t, r, "all() & ~main")
	if len(got) != 1 || got[0] != c1 {
		t.Errorf("all() & ~main = %v, want [%s]", got, c1)
	}
}

func TestEvaluateWorkingCopySymbol(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "first", "")

	tx, err := r.NewTransaction(ctx)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Tx.SetWorkingCopy(c1)
	if _, err := tx.Commit(ctx, "check out"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got := evalIDs(t, r, "@")
	if len(got) != 1 || got[0] != c1 {
		t.Errorf("@ = %v, want [%s]", got, c1)
	}
}

func TestEvaluateHexPrefix(t *testing.T) {
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "first", "")

	got := evalIDs(t, r, c1.Short(12))
	if len(got) != 1 || got[0] != c1 {
		t.Errorf("prefix = %v, want [%s]", got, c1)
	}
}

func TestEvaluateChangeIDPrefix(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "first", "")
	commit, err := r.Commit(ctx, c1)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got := evalIDs(t, r, string(commit.Change))
	if len(got) != 1 || got[0] != c1 {
		t.Errorf("change id = %v, want [%s]", got, c1)
	}
}

func TestEvaluateUnknownSymbol(t *testing.T) {
	r := initTestRepo(t, BackendFile)
	newCommit(t, r, "first", "main")

	res, err := r.Evaluate(context.Background(), "nonsuch")
	if err == nil {
		_, err = res.IDs()
	}
	var unresolved *revset.UnresolvedError
	if !errors.As(err, &unresolved) {
		t.Fatalf("error = %v, want UnresolvedError", err)
	}
}

func TestEvaluateConflictedRefFails(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "left", "")
	c2 := newCommit(t, r, "right", "", c1)

	// Two op-log writers move the same ref to different targets.
	txA, err := r.Log.NewTransaction(ctx)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	txB, err := r.Log.NewTransaction(ctx)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	txA.SetRef("main", c1)
	txB.SetRef("main", c2)
	if _, err := txA.Commit(ctx, "move left"); err != nil {
		t.Fatalf("Commit A: %v", err)
	}
	if _, err := txB.Commit(ctx, "move right"); err != nil {
		t.Fatalf("Commit B: %v", err)
	}

	res, err := r.Evaluate(ctx, "main")
	if err == nil {
		_, err = res.IDs()
	}
	if err == nil || !strings.Contains(err.Error(), "conflicted") {
		t.Fatalf("error = %v, want conflicted-ref error", err)
	}
}

func TestEvaluateUsesSettingsAliases(t *testing.T) {
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "first", "main")
	c2 := newCommit(t, r, "second", "main", c1)

	r.Settings.Revset.Aliases["trunk"] = "ancestors(main)"
	got := evalIDs(t, r, "trunk")
	if len(got) != 2 || got[0] != c2 || got[1] != c1 {
		t.Errorf("trunk = %v, want [%s %s]", got, c2, c1)
	}
}

func TestEvaluateAcrossRewrites(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)
	orig := newCommit(t, r, "original", "main")
	origCommit, err := r.Commit(ctx, orig)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	amended, _, err := r.RewriteCommit(ctx, orig, func(c *object.Commit) {
		c.Description = "amended"
	})
	if err != nil {
		t.Fatalf("RewriteCommit: %v", err)
	}
	tx, err := r.NewTransaction(ctx)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Tx.RecordCommit(amended)
	tx.Tx.RemoveHead(orig)
	tx.Tx.AddHead(amended)
	tx.Tx.SetRef("main", amended)
	if _, err := tx.Commit(ctx, "amend"); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// The change id now names two commits: resolution reports both rather
	// than silently picking one.
	res, err := r.Evaluate(ctx, string(origCommit.Change))
	if err == nil {
		_, err = res.IDs()
	}
	var ambiguous *revset.AmbiguousError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("error = %v, want AmbiguousError", err)
	}
	if len(ambiguous.Candidates) != 2 {
		t.Errorf("candidates = %v", ambiguous.Candidates)
	}
}
