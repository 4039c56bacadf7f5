package repo

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/strata-vcs/strata/pkg/object"
)

// FileEntry is the flattened form of one tree leaf. For file-like kinds the
// content travels in Data; for conflicts the signed terms travel as-is, so
// an unresolved merge survives materialization without being baked into a
// marker blob.
type FileEntry struct {
	Path     string
	Kind     object.EntryKind
	Data     []byte
	Conflict []object.ConflictTerm
}

// MaterializeTree flattens the tree rooted at id into path-sorted leaf
// entries, reading file content for every file, executable and symlink.
func (r *Repo) MaterializeTree(ctx context.Context, id object.ID) ([]FileEntry, error) {
	var out []FileEntry
	if err := r.materializeDir(ctx, id, "", &out); err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Path < out[j].Path })
	return out, nil
}

func (r *Repo) materializeDir(ctx context.Context, id object.ID, prefix string, out *[]FileEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload, err := r.Store.ReadObject(ctx, object.KindTree, id)
	if err != nil {
		return err
	}
	tree, err := object.UnmarshalTree(payload)
	if err != nil {
		return &object.CorruptError{Kind: object.KindTree, ID: id, Reason: err.Error()}
	}
	for _, e := range tree.Entries {
		path := e.Name
		if prefix != "" {
			path = prefix + "/" + e.Name
		}
		switch e.Kind {
		case object.EntryTree:
			if err := r.materializeDir(ctx, e.Target, path, out); err != nil {
				return err
			}
		case object.EntryConflict:
			*out = append(*out, FileEntry{
				Path:     path,
				Kind:     e.Kind,
				Conflict: append([]object.ConflictTerm(nil), e.Conflict...),
			})
		default:
			blob, err := r.Store.ReadObject(ctx, object.KindFile, e.Target)
			if err != nil {
				return err
			}
			f, err := object.UnmarshalFile(blob)
			if err != nil {
				return &object.CorruptError{Kind: object.KindFile, ID: e.Target, Reason: err.Error()}
			}
			*out = append(*out, FileEntry{Path: path, Kind: e.Kind, Data: f.Data})
		}
	}
	return nil
}

// BuildTree writes the file objects and nested trees for the given entries
// and returns the root tree id. Paths use "/" separators; an empty entry
// list builds the empty tree.
func (r *Repo) BuildTree(ctx context.Context, entries []FileEntry) (object.ID, error) {
	byPath := make(map[string]FileEntry, len(entries))
	for _, e := range entries {
		if !validTreePath(e.Path) {
			return "", fmt.Errorf("build tree: invalid path %q", e.Path)
		}
		if e.Kind == object.EntryTree {
			return "", fmt.Errorf("build tree: %q: tree entries are derived, give leaves only", e.Path)
		}
		if _, dup := byPath[e.Path]; dup {
			return "", fmt.Errorf("build tree: duplicate path %q", e.Path)
		}
		byPath[e.Path] = e
	}
	return r.buildTreeDir(ctx, byPath, "")
}

// validTreePath accepts "/"-separated relative paths whose components are
// non-empty, are not "." or "..", and contain no control characters. The
// tree serialization is line-oriented, and filenames arrive here from the
// filesystem, where a newline is legal.
func validTreePath(path string) bool {
	if path == "" {
		return false
	}
	for _, comp := range strings.Split(path, "/") {
		if comp == "" || comp == "." || comp == ".." {
			return false
		}
		for i := 0; i < len(comp); i++ {
			if comp[i] < 0x20 || comp[i] == 0x7f {
				return false
			}
		}
	}
	return true
}

func (r *Repo) buildTreeDir(ctx context.Context, byPath map[string]FileEntry, prefix string) (object.ID, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	leaves := make(map[string]FileEntry)
	subdirs := make(map[string]bool)
	for p, e := range byPath {
		rel := p
		if prefix != "" {
			if !strings.HasPrefix(p, prefix+"/") {
				continue
			}
			rel = p[len(prefix)+1:]
		}
		if slash := strings.IndexByte(rel, '/'); slash < 0 {
			leaves[rel] = e
		} else {
			subdirs[rel[:slash]] = true
		}
	}

	names := make([]string, 0, len(leaves)+len(subdirs))
	for name := range leaves {
		if subdirs[name] {
			return "", fmt.Errorf("build tree: %q is both a leaf and a directory", name)
		}
		names = append(names, name)
	}
	for name := range subdirs {
		names = append(names, name)
	}
	sort.Strings(names)

	tree := &object.Tree{}
	for _, name := range names {
		if e, isLeaf := leaves[name]; isLeaf {
			entry := object.TreeEntry{Name: name, Kind: e.Kind}
			if e.Kind == object.EntryConflict {
				entry.Conflict = append([]object.ConflictTerm(nil), e.Conflict...)
			} else {
				blobID, err := r.Store.WriteObject(ctx, object.KindFile, object.MarshalFile(&object.File{Data: e.Data}))
				if err != nil {
					return "", fmt.Errorf("build tree: write %s: %w", e.Path, err)
				}
				entry.Target = blobID
			}
			tree.Entries = append(tree.Entries, entry)
			continue
		}
		childPrefix := name
		if prefix != "" {
			childPrefix = prefix + "/" + name
		}
		childID, err := r.buildTreeDir(ctx, byPath, childPrefix)
		if err != nil {
			return "", err
		}
		tree.Entries = append(tree.Entries, object.TreeEntry{Name: name, Kind: object.EntryTree, Target: childID})
	}

	id, err := r.Store.WriteObject(ctx, object.KindTree, object.MarshalTree(tree))
	if err != nil {
		return "", fmt.Errorf("build tree: %w", err)
	}
	return id, nil
}
