// Package repo ties the pieces together: a backend, the commit index, the
// operation log and user settings, opened from a .strata directory. There
// is no global repository state; every caller holds an explicit *Repo.
package repo

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/strata-vcs/strata/pkg/backend"
	"github.com/strata-vcs/strata/pkg/backend/filestore"
	"github.com/strata-vcs/strata/pkg/backend/sqlitestore"
	"github.com/strata-vcs/strata/pkg/index"
	"github.com/strata-vcs/strata/pkg/object"
	"github.com/strata-vcs/strata/pkg/op"
)

const (
	strataDirName = ".strata"

	// BackendFile stores objects as zstd-compressed files under a fan-out
	// directory tree.
	BackendFile = "file"
	// BackendSQLite stores objects in a single SQLite database.
	BackendSQLite = "sqlite"
)

// Repo is an opened repository.
type Repo struct {
	RootDir   string // working directory root
	StrataDir string // .strata/ directory
	Store     backend.Backend
	Index     *index.Index
	Log       *op.Log
	Settings  Settings

	// writeMu serializes writers within this process. Cross-process writers
	// need no lock: the op log absorbs concurrent commits as divergence.
	writeMu sync.Mutex
}

func (r *Repo) configPath() string { return filepath.Join(r.StrataDir, "config.toml") }
func (r *Repo) indexPath() string  { return filepath.Join(r.StrataDir, "index.bin") }

func openBackend(strataDir, kind string) (backend.Backend, error) {
	switch kind {
	case BackendFile:
		return filestore.New(filepath.Join(strataDir, "store")), nil
	case BackendSQLite:
		return sqlitestore.Open(filepath.Join(strataDir, "store.db"))
	default:
		return nil, fmt.Errorf("unknown backend kind %q", kind)
	}
}

// Init creates a new repository at path using the given backend kind and
// records the initial empty-view operation.
func Init(ctx context.Context, path, backendKind string) (*Repo, error) {
	strataDir := filepath.Join(path, strataDirName)
	if _, err := os.Stat(strataDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", strataDir)
	}
	if err := os.MkdirAll(strataDir, 0o755); err != nil {
		return nil, fmt.Errorf("init: mkdir %s: %w", strataDir, err)
	}
	if err := os.WriteFile(filepath.Join(strataDir, "backend"), []byte(backendKind+"\n"), 0o644); err != nil {
		return nil, fmt.Errorf("init: write backend marker: %w", err)
	}

	store, err := openBackend(strataDir, backendKind)
	if err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	r := &Repo{
		RootDir:   path,
		StrataDir: strataDir,
		Store:     store,
		Index:     index.New(),
		Log:       op.NewLog(store),
		Settings:  defaultSettings(),
	}
	if err := SaveSettings(r.configPath(), r.Settings); err != nil {
		store.Close()
		return nil, fmt.Errorf("init: %w", err)
	}
	if _, err := r.Log.Init(ctx, "initialize repository"); err != nil {
		store.Close()
		return nil, fmt.Errorf("init: %w", err)
	}
	return r, nil
}

// Open searches upward from path for a .strata directory and opens the
// repository found there.
func Open(ctx context.Context, path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}
	cur := abs
	for {
		strataDir := filepath.Join(cur, strataDirName)
		if info, err := os.Stat(strataDir); err == nil && info.IsDir() {
			return openAt(ctx, cur, strataDir)
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a strata repository (or any parent up to /)")
		}
		cur = parent
	}
}

func openAt(ctx context.Context, rootDir, strataDir string) (*Repo, error) {
	marker, err := os.ReadFile(filepath.Join(strataDir, "backend"))
	if err != nil {
		return nil, fmt.Errorf("open: read backend marker: %w", err)
	}
	kind := string(marker)
	for len(kind) > 0 && (kind[len(kind)-1] == '\n' || kind[len(kind)-1] == '\r') {
		kind = kind[:len(kind)-1]
	}
	store, err := openBackend(strataDir, kind)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	r := &Repo{
		RootDir:   rootDir,
		StrataDir: strataDir,
		Store:     store,
		Index:     index.New(),
		Log:       op.NewLog(store),
	}
	r.Settings, err = LoadSettings(r.configPath())
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open: %w", err)
	}
	if err := r.Index.LoadFile(r.indexPath()); err != nil {
		// A corrupt index cache is recoverable: rebuild from the store.
		r.Index = index.New()
	}
	if err := r.RefreshIndex(ctx); err != nil {
		store.Close()
		return nil, fmt.Errorf("open: %w", err)
	}
	return r, nil
}

// Close persists the index cache and releases the backend.
func (r *Repo) Close() error {
	saveErr := r.Index.SaveFile(r.indexPath())
	closeErr := r.Store.Close()
	if saveErr != nil {
		return saveErr
	}
	return closeErr
}

// Commit reads and decodes one commit. Repo implements index.CommitReader.
func (r *Repo) Commit(ctx context.Context, id object.ID) (*object.Commit, error) {
	payload, err := r.Store.ReadObject(ctx, object.KindCommit, id)
	if err != nil {
		return nil, err
	}
	c, err := object.UnmarshalCommit(payload)
	if err != nil {
		return nil, &object.CorruptError{Kind: object.KindCommit, ID: id, Reason: err.Error()}
	}
	return c, nil
}

// CurrentView returns the reconciled current view.
func (r *Repo) CurrentView(ctx context.Context) (*op.View, error) {
	view, _, err := r.Log.CurrentView(ctx)
	return view, err
}

// RefreshIndex extends the index to cover every commit reachable from the
// current view. Already-indexed commits are skipped.
func (r *Repo) RefreshIndex(ctx context.Context) error {
	view, _, err := r.Log.CurrentView(ctx)
	if err != nil {
		return err
	}
	return r.Index.AddRecursive(ctx, r, visibleIDs(view))
}

// Transaction wraps an op.Transaction with the repo writer lock and index
// upkeep after commit.
type Transaction struct {
	repo *Repo
	Tx   *op.Transaction
	done bool
}

// NewTransaction takes the writer lock and starts a transaction from the
// current view. The caller must end it with Commit or Abort.
func (r *Repo) NewTransaction(ctx context.Context) (*Transaction, error) {
	r.writeMu.Lock()
	tx, err := r.Log.NewTransaction(ctx)
	if err != nil {
		r.writeMu.Unlock()
		return nil, err
	}
	return &Transaction{repo: r, Tx: tx}, nil
}

// Commit commits the underlying transaction, refreshes the index over the
// new view and releases the writer lock.
func (t *Transaction) Commit(ctx context.Context, description string) (object.ID, error) {
	if t.done {
		return "", op.ErrTransactionClosed
	}
	t.done = true
	defer t.repo.writeMu.Unlock()
	opID, err := t.Tx.Commit(ctx, description)
	if err != nil {
		return "", err
	}
	if err := t.repo.RefreshIndex(ctx); err != nil {
		return opID, fmt.Errorf("refresh index: %w", err)
	}
	return opID, nil
}

// Abort discards the transaction and releases the writer lock.
func (t *Transaction) Abort() {
	if t.done {
		return
	}
	t.done = true
	t.Tx.Abort()
	t.repo.writeMu.Unlock()
}
