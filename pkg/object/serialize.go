package object

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// File
// ---------------------------------------------------------------------------

// MarshalFile serializes a File to raw bytes (identity).
func MarshalFile(f *File) []byte {
	out := make([]byte, len(f.Data))
	copy(out, f.Data)
	return out
}

// UnmarshalFile deserializes raw bytes into a File.
func UnmarshalFile(data []byte) (*File, error) {
	out := make([]byte, len(data))
	copy(out, data)
	return &File{Data: out}, nil
}

// ---------------------------------------------------------------------------
// Tree
// ---------------------------------------------------------------------------

// MarshalTree serializes a Tree. Entries are sorted by Name for
// deterministic output. Each entry is one line:
//
//	kind target terms name
//
// where target is "-" for conflict entries, terms is "-" for everything
// else and a comma-separated signed id list (+H or -H) for conflicts. The
// name comes last so it may contain spaces.
func MarshalTree(t *Tree) []byte {
	sorted := make([]TreeEntry, len(t.Entries))
	copy(sorted, t.Entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var buf bytes.Buffer
	for _, e := range sorted {
		target := "-"
		if e.Target != "" {
			target = string(e.Target)
		}
		terms := "-"
		if e.Kind == EntryConflict {
			parts := make([]string, 0, len(e.Conflict))
			for _, term := range e.Conflict {
				sign := "+"
				if term.Negative {
					sign = "-"
				}
				parts = append(parts, sign+string(term.Target))
			}
			terms = strings.Join(parts, ",")
		}
		fmt.Fprintf(&buf, "%s %s %s %s\n", e.Kind, target, terms, e.Name)
	}
	return buf.Bytes()
}

// UnmarshalTree parses a Tree from its serialized form.
func UnmarshalTree(data []byte) (*Tree, error) {
	t := &Tree{}
	text := strings.TrimRight(string(data), "\n")
	if text == "" {
		return t, nil
	}
	for _, line := range strings.Split(text, "\n") {
		parts := strings.SplitN(line, " ", 4)
		if len(parts) != 4 {
			return nil, fmt.Errorf("unmarshal tree: malformed entry %q", line)
		}
		kind, err := parseEntryKind(parts[0])
		if err != nil {
			return nil, fmt.Errorf("unmarshal tree: %w", err)
		}
		e := TreeEntry{Name: parts[3], Kind: kind}
		if parts[1] != "-" {
			e.Target = ID(parts[1])
		}
		if kind == EntryConflict {
			if parts[2] == "" || parts[2] == "-" {
				return nil, fmt.Errorf("unmarshal tree: conflict entry %q has no terms", e.Name)
			}
			for _, raw := range strings.Split(parts[2], ",") {
				if len(raw) < 2 || (raw[0] != '+' && raw[0] != '-') {
					return nil, fmt.Errorf("unmarshal tree: malformed conflict term %q", raw)
				}
				e.Conflict = append(e.Conflict, ConflictTerm{
					Negative: raw[0] == '-',
					Target:   ID(raw[1:]),
				})
			}
		} else if parts[2] != "-" {
			return nil, fmt.Errorf("unmarshal tree: unexpected terms on %s entry %q", kind, e.Name)
		}
		t.Entries = append(t.Entries, e)
	}
	return t, nil
}

func parseEntryKind(s string) (EntryKind, error) {
	switch EntryKind(s) {
	case EntryFile, EntryExec, EntrySymlink, EntryTree, EntryConflict:
		return EntryKind(s), nil
	default:
		return "", fmt.Errorf("unknown entry kind %q", s)
	}
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// MarshalCommit serializes a Commit:
//
//	tree H
//	parent H             (zero or more)
//	change C
//	author Name <email>
//	author-date T TZ
//	committer Name <email>
//	committer-date T TZ
//
//	description
func MarshalCommit(c *Commit) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "tree %s\n", string(c.Tree))
	for _, p := range c.Parents {
		fmt.Fprintf(&buf, "parent %s\n", string(p))
	}
	fmt.Fprintf(&buf, "change %s\n", string(c.Change))
	fmt.Fprintf(&buf, "author %s <%s>\n", c.Author.Name, c.Author.Email)
	fmt.Fprintf(&buf, "author-date %d %s\n", c.Author.When, c.Author.TZ)
	fmt.Fprintf(&buf, "committer %s <%s>\n", c.Committer.Name, c.Committer.Email)
	fmt.Fprintf(&buf, "committer-date %d %s\n", c.Committer.When, c.Committer.TZ)
	buf.WriteByte('\n')
	buf.WriteString(c.Description)
	return buf.Bytes()
}

// UnmarshalCommit parses a Commit from its serialized form.
func UnmarshalCommit(data []byte) (*Commit, error) {
	idx := bytes.Index(data, []byte("\n\n"))
	if idx < 0 {
		return nil, fmt.Errorf("unmarshal commit: missing header/description separator")
	}
	header := string(data[:idx])
	description := string(data[idx+2:])

	c := &Commit{Description: description}
	for _, line := range strings.Split(header, "\n") {
		key, val, ok := strings.Cut(line, " ")
		if !ok {
			return nil, fmt.Errorf("unmarshal commit: malformed header line %q", line)
		}
		switch key {
		case "tree":
			c.Tree = ID(val)
		case "parent":
			c.Parents = append(c.Parents, ID(val))
		case "change":
			c.Change = ChangeID(val)
		case "author":
			if err := parseIdent(val, &c.Author); err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
		case "author-date":
			if err := parseDate(val, &c.Author); err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
		case "committer":
			if err := parseIdent(val, &c.Committer); err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
		case "committer-date":
			if err := parseDate(val, &c.Committer); err != nil {
				return nil, fmt.Errorf("unmarshal commit: %w", err)
			}
		default:
			return nil, fmt.Errorf("unmarshal commit: unknown header key %q", key)
		}
	}
	if c.Tree == "" {
		return nil, fmt.Errorf("unmarshal commit: missing tree")
	}
	return c, nil
}

// parseIdent splits "Name <email>"; the name may contain spaces so the
// email is located from the right.
func parseIdent(val string, sig *Signature) error {
	open := strings.LastIndex(val, "<")
	if open < 0 || !strings.HasSuffix(val, ">") {
		return fmt.Errorf("malformed identity %q", val)
	}
	sig.Name = strings.TrimSpace(val[:open])
	sig.Email = val[open+1 : len(val)-1]
	return nil
}

func parseDate(val string, sig *Signature) error {
	ts, tz, ok := strings.Cut(val, " ")
	if !ok {
		return fmt.Errorf("malformed date %q", val)
	}
	when, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return fmt.Errorf("bad timestamp %q: %w", ts, err)
	}
	sig.When = when
	sig.TZ = tz
	return nil
}
