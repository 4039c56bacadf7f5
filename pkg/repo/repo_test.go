package repo

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/strata-vcs/strata/pkg/object"
)

func initTestRepo(t *testing.T, backendKind string) *Repo {
	t.Helper()
	r, err := Init(context.Background(), t.TempDir(), backendKind)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { r.Close() })
	return r
}

// newCommit writes an empty-tree commit, makes it a head, and points ref at
// it when ref is non-empty.
func newCommit(t *testing.T, r *Repo, desc, ref string, parents ...object.ID) object.ID {
	t.Helper()
	ctx := context.Background()
	tree, err := r.BuildTree(ctx, nil)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	id, _, err := r.NewCommitBuilder(parents, tree).SetDescription(desc).Write(ctx)
	if err != nil {
		t.Fatalf("Write commit: %v", err)
	}

	tx, err := r.NewTransaction(ctx)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	tx.Tx.RecordCommit(id)
	for _, p := range parents {
		tx.Tx.RemoveHead(p)
	}
	tx.Tx.AddHead(id)
	if ref != "" {
		tx.Tx.SetRef(ref, id)
	}
	if _, err := tx.Commit(ctx, "commit: "+desc); err != nil {
		t.Fatalf("Commit txn: %v", err)
	}
	return id
}

func TestInitAndReopen(t *testing.T) {
	for _, kind := range []string{BackendFile, BackendSQLite} {
		t.Run(kind, func(t *testing.T) {
			ctx := context.Background()
			dir := t.TempDir()
			r, err := Init(ctx, dir, kind)
			if err != nil {
				t.Fatalf("Init: %v", err)
			}
			c1 := newCommit(t, r, "first", "main")
			if err := r.Close(); err != nil {
				t.Fatalf("Close: %v", err)
			}

			r2, err := Open(ctx, dir)
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			defer r2.Close()
			view, err := r2.CurrentView(ctx)
			if err != nil {
				t.Fatalf("CurrentView: %v", err)
			}
			if view.Refs["main"] != c1 {
				t.Errorf("main = %s, want %s", view.Refs["main"], c1)
			}
			if !r2.Index.Has(c1) {
				t.Error("reopened index does not cover existing commit")
			}
		})
	}
}

func TestInitTwiceFails(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Init(ctx, dir, BackendFile)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	defer r.Close()
	if _, err := Init(ctx, dir, BackendFile); err == nil {
		t.Fatal("second Init succeeded")
	}
}

func TestOpenFindsRepoFromSubdirectory(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	r, err := Init(ctx, dir, BackendFile)
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	r.Close()

	sub := filepath.Join(dir, "a", "b")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	r2, err := Open(ctx, sub)
	if err != nil {
		t.Fatalf("Open from subdirectory: %v", err)
	}
	defer r2.Close()
	if r2.RootDir != dir {
		t.Errorf("RootDir = %s, want %s", r2.RootDir, dir)
	}
}

func TestOpenOutsideRepoFails(t *testing.T) {
	if _, err := Open(context.Background(), t.TempDir()); err == nil {
		t.Fatal("Open outside a repository succeeded")
	}
}

func TestCommitBuilderMintsFreshChangeIDs(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)
	tree, err := r.BuildTree(ctx, nil)
	if err != nil {
		t.Fatalf("BuildTree: %v", err)
	}
	_, c1, err := r.NewCommitBuilder(nil, tree).SetDescription("one").Write(ctx)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	_, c2, err := r.NewCommitBuilder(nil, tree).SetDescription("two").Write(ctx)
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if c1.Change == c2.Change {
		t.Error("two new commits share a change id")
	}
	if !object.ValidChangeID(string(c1.Change)) {
		t.Errorf("invalid change id %q", c1.Change)
	}
	if c1.Author.Name != r.Settings.User.Name || c1.Author.Email != r.Settings.User.Email {
		t.Errorf("author = %+v, want settings identity", c1.Author)
	}
}

func TestRewriteCommitPreservesChangeID(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)
	orig := newCommit(t, r, "original", "main")
	origCommit, err := r.Commit(ctx, orig)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}

	newID, rewritten, err := r.RewriteCommit(ctx, orig, func(c *object.Commit) {
		c.Description = "amended"
	})
	if err != nil {
		t.Fatalf("RewriteCommit: %v", err)
	}
	if newID == orig {
		t.Error("rewrite produced the identical commit id")
	}
	if rewritten.Change != origCommit.Change {
		t.Errorf("change id = %s, want %s", rewritten.Change, origCommit.Change)
	}
	if rewritten.Description != "amended" {
		t.Errorf("description = %q", rewritten.Description)
	}

	if _, _, err := r.RewriteCommit(ctx, orig, func(c *object.Commit) {
		c.Change = object.NewChangeID()
	}); err == nil {
		t.Error("rewrite that swapped the change id succeeded")
	}
}

func TestTransactionWriterLock(t *testing.T) {
	ctx := context.Background()
	r := initTestRepo(t, BackendFile)

	tx, err := r.NewTransaction(ctx)
	if err != nil {
		t.Fatalf("NewTransaction: %v", err)
	}
	started := make(chan struct{})
	acquired := make(chan struct{})
	go func() {
		close(started)
		tx2, err := r.NewTransaction(ctx)
		if err == nil {
			tx2.Abort()
		}
		close(acquired)
	}()
	<-started
	select {
	case <-acquired:
		t.Fatal("second writer acquired the lock while the first held it")
	default:
	}
	tx.Abort()
	<-acquired
}

func TestCommitUpdatesIndex(t *testing.T) {
	r := initTestRepo(t, BackendFile)
	c1 := newCommit(t, r, "first", "")
	c2 := newCommit(t, r, "second", "", c1)
	if !r.Index.Has(c1) || !r.Index.Has(c2) {
		t.Fatal("committed transaction did not refresh the index")
	}
	ok, err := r.Index.IsAncestor(c1, c2)
	if err != nil {
		t.Fatalf("IsAncestor: %v", err)
	}
	if !ok {
		t.Error("parent not recorded as ancestor")
	}
}
