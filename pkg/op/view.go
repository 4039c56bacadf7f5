// Package op implements the operation log: an append-only DAG of
// operations, each snapshotting the repository's mutable state as an
// immutable View. Transactions commit new operations; concurrent writers
// fork the DAG and their views are reconciled lazily on the next read.
package op

import (
	"bytes"
	"fmt"
	"sort"
	"strings"

	"github.com/strata-vcs/strata/pkg/object"
)

// View is one snapshot of mutable repository state: the visible commit
// heads, named refs, diverged refs awaiting resolution, and the checked-out
// commit. Views are never mutated in place; every change produces a new one.
type View struct {
	Heads       []object.ID
	Refs        map[string]object.ID
	Conflicts   map[string][]object.ID
	WorkingCopy object.ID
}

// NewView returns an empty view.
func NewView() *View {
	return &View{
		Refs:      make(map[string]object.ID),
		Conflicts: make(map[string][]object.ID),
	}
}

// Clone deep-copies the view.
func (v *View) Clone() *View {
	out := &View{
		Heads:       append([]object.ID(nil), v.Heads...),
		Refs:        make(map[string]object.ID, len(v.Refs)),
		Conflicts:   make(map[string][]object.ID, len(v.Conflicts)),
		WorkingCopy: v.WorkingCopy,
	}
	for name, id := range v.Refs {
		out.Refs[name] = id
	}
	for name, ids := range v.Conflicts {
		out.Conflicts[name] = append([]object.ID(nil), ids...)
	}
	return out
}

// ValidRefName reports whether name may be recorded in a view. The
// serialization is line-oriented, so control characters are out; "@" is
// reserved for the working copy.
func ValidRefName(name string) bool {
	if name == "" || name == "@" {
		return false
	}
	for i := 0; i < len(name); i++ {
		if name[i] < 0x20 || name[i] == 0x7f {
			return false
		}
	}
	return true
}

// HasHead reports whether id is one of the visible heads.
func (v *View) HasHead(id object.ID) bool {
	for _, h := range v.Heads {
		if h == id {
			return true
		}
	}
	return false
}

func (v *View) normalize() {
	v.Heads = dedupSorted(v.Heads)
	for name, ids := range v.Conflicts {
		v.Conflicts[name] = dedupSorted(ids)
	}
}

func dedupSorted(ids []object.ID) []object.ID {
	if len(ids) == 0 {
		return nil
	}
	out := append([]object.ID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	n := 1
	for i := 1; i < len(out); i++ {
		if out[i] != out[i-1] {
			out[n] = out[i]
			n++
		}
	}
	return out[:n]
}

// MarshalView serializes a view deterministically:
//
//	head H               (sorted)
//	ref H name           (sorted by name)
//	conflict H1,H2 name  (sorted by name; candidates sorted)
//	workingcopy H        (omitted when unset)
func MarshalView(v *View) []byte {
	c := v.Clone()
	c.normalize()

	var buf bytes.Buffer
	for _, h := range c.Heads {
		fmt.Fprintf(&buf, "head %s\n", string(h))
	}
	refNames := make([]string, 0, len(c.Refs))
	for name := range c.Refs {
		refNames = append(refNames, name)
	}
	sort.Strings(refNames)
	for _, name := range refNames {
		fmt.Fprintf(&buf, "ref %s %s\n", string(c.Refs[name]), name)
	}
	conflictNames := make([]string, 0, len(c.Conflicts))
	for name := range c.Conflicts {
		conflictNames = append(conflictNames, name)
	}
	sort.Strings(conflictNames)
	for _, name := range conflictNames {
		parts := make([]string, 0, len(c.Conflicts[name]))
		for _, id := range c.Conflicts[name] {
			parts = append(parts, string(id))
		}
		fmt.Fprintf(&buf, "conflict %s %s\n", strings.Join(parts, ","), name)
	}
	if c.WorkingCopy != "" {
		fmt.Fprintf(&buf, "workingcopy %s\n", string(c.WorkingCopy))
	}
	return buf.Bytes()
}

// UnmarshalView parses a view from its serialized form.
func UnmarshalView(data []byte) (*View, error) {
	v := NewView()
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return v, nil
	}
	for _, line := range strings.Split(text, "\n") {
		key, rest, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal view: malformed line %q", line)
		}
		switch key {
		case "head":
			v.Heads = append(v.Heads, object.ID(rest))
		case "ref":
			id, name, ok := strings.Cut(rest, " ")
			if !ok {
				return nil, fmt.Errorf("unmarshal view: malformed ref line %q", line)
			}
			v.Refs[name] = object.ID(id)
		case "conflict":
			idsText, name, ok := strings.Cut(rest, " ")
			if !ok {
				return nil, fmt.Errorf("unmarshal view: malformed conflict line %q", line)
			}
			var ids []object.ID
			for _, raw := range strings.Split(idsText, ",") {
				ids = append(ids, object.ID(raw))
			}
			v.Conflicts[name] = ids
		case "workingcopy":
			v.WorkingCopy = object.ID(rest)
		default:
			return nil, fmt.Errorf("unmarshal view: unknown key %q", key)
		}
	}
	return v, nil
}

// ReconcileViews merges the views of two divergent operation heads into one
// logical current state. It is a pure function: non-conflicting refs union,
// refs that diverged become flagged conflicts for the user to resolve, and
// commit heads union. Neither input is modified.
func ReconcileViews(a, b *View) *View {
	out := NewView()
	out.Heads = dedupSorted(append(append([]object.ID(nil), a.Heads...), b.Heads...))

	// Carry existing conflicts from both sides.
	for name, ids := range a.Conflicts {
		out.Conflicts[name] = append(out.Conflicts[name], ids...)
	}
	for name, ids := range b.Conflicts {
		out.Conflicts[name] = append(out.Conflicts[name], ids...)
	}

	for name, id := range a.Refs {
		other, ok := b.Refs[name]
		switch {
		case !ok, other == id:
			out.Refs[name] = id
		default:
			out.Conflicts[name] = append(out.Conflicts[name], id, other)
		}
	}
	for name, id := range b.Refs {
		if _, ok := a.Refs[name]; !ok {
			out.Refs[name] = id
		}
	}
	// A ref that is conflicted on either side stays conflicted.
	for name := range out.Conflicts {
		delete(out.Refs, name)
	}

	switch {
	case a.WorkingCopy == b.WorkingCopy:
		out.WorkingCopy = a.WorkingCopy
	case a.WorkingCopy == "":
		out.WorkingCopy = b.WorkingCopy
	case b.WorkingCopy == "":
		out.WorkingCopy = a.WorkingCopy
	default:
		// Divergent checkouts: keep the lower id for determinism and flag
		// the divergence under the reserved "@" name.
		out.WorkingCopy = a.WorkingCopy
		if b.WorkingCopy < a.WorkingCopy {
			out.WorkingCopy = b.WorkingCopy
		}
		out.Conflicts["@"] = append(out.Conflicts["@"], a.WorkingCopy, b.WorkingCopy)
	}

	out.normalize()
	return out
}
