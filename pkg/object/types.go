package object

// File holds raw blob content. Executable/symlink-ness lives on the tree
// entry pointing at the file, not on the file itself, so identical content
// dedups across modes.
type File struct {
	Data []byte
}

// EntryKind classifies a tree entry.
type EntryKind string

const (
	EntryFile     EntryKind = "file"
	EntryExec     EntryKind = "exec"
	EntrySymlink  EntryKind = "symlink"
	EntryTree     EntryKind = "tree"
	EntryConflict EntryKind = "conflict"
)

// ConflictTerm is one signed contribution to an unresolved multi-way merge.
// Positive terms are "sides", negative terms are the bases subtracted from
// them. Keeping the terms (rather than a flattened marker blob) preserves
// mergeability of the conflict itself.
type ConflictTerm struct {
	Negative bool
	Target   ID
}

// TreeEntry is one name in a tree. For EntryConflict, Target is empty and
// Conflict carries the ordered term list; for every other kind Target points
// at a file or subtree.
type TreeEntry struct {
	Name     string
	Kind     EntryKind
	Target   ID
	Conflict []ConflictTerm
}

// Tree is an ordered mapping from path-component name to entry, sorted by
// Name. Order is part of the canonical serialization.
type Tree struct {
	Entries []TreeEntry
}

// Lookup returns the entry with the given name, if present.
func (t *Tree) Lookup(name string) (TreeEntry, bool) {
	for _, e := range t.Entries {
		if e.Name == name {
			return e, true
		}
		if e.Name > name {
			break
		}
	}
	return TreeEntry{}, false
}

// Signature records who and when for an author or committer.
type Signature struct {
	Name  string
	Email string
	When  int64  // unix seconds
	TZ    string // e.g. "+0200"
}

// Commit is an immutable record in the commit DAG. Zero parents only for
// the repository root; more than one parent makes it a merge.
type Commit struct {
	Parents     []ID
	Tree        ID
	Change      ChangeID
	Author      Signature
	Committer   Signature
	Description string
}

// IsRoot reports whether the commit is a DAG root.
func (c *Commit) IsRoot() bool { return len(c.Parents) == 0 }
