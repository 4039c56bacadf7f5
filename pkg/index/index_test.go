package index

import (
	"context"
	"errors"
	"testing"

	"github.com/strata-vcs/strata/pkg/object"
)

// graph is an in-memory commit store for index tests. Commits are built
// from a name -> parent-names adjacency and addressed by real content ids.
type graph struct {
	ids     map[string]object.ID
	names   map[object.ID]string
	commits map[object.ID]*object.Commit
}

func (g *graph) Commit(ctx context.Context, id object.ID) (*object.Commit, error) {
	c, ok := g.commits[id]
	if !ok {
		return nil, &object.NotFoundError{Kind: object.KindCommit, ID: id}
	}
	return c, nil
}

func (g *graph) id(t *testing.T, name string) object.ID {
	t.Helper()
	id, ok := g.ids[name]
	if !ok {
		t.Fatalf("unknown commit name %q", name)
	}
	return id
}

func (g *graph) idList(t *testing.T, names ...string) []object.ID {
	t.Helper()
	out := make([]object.ID, 0, len(names))
	for _, n := range names {
		out = append(out, g.id(t, n))
	}
	return out
}

func (g *graph) nameList(ids []object.ID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.names[id])
	}
	return out
}

// buildGraph creates commits for the given name -> parents map.
func buildGraph(t *testing.T, parents map[string][]string) *graph {
	t.Helper()
	g := &graph{
		ids:     make(map[string]object.ID),
		names:   make(map[object.ID]string),
		commits: make(map[object.ID]*object.Commit),
	}
	var build func(name string)
	build = func(name string) {
		if _, ok := g.ids[name]; ok {
			return
		}
		c := &object.Commit{
			Tree:        object.HashPayload(object.KindTree, nil),
			Change:      object.NewChangeID(),
			Description: name,
		}
		for _, p := range parents[name] {
			build(p)
			c.Parents = append(c.Parents, g.ids[p])
		}
		id := object.HashPayload(object.KindCommit, object.MarshalCommit(c))
		g.ids[name] = id
		g.names[id] = name
		g.commits[id] = c
	}
	for name := range parents {
		build(name)
	}
	return g
}

func indexGraph(t *testing.T, g *graph, heads ...string) *Index {
	t.Helper()
	ix := New()
	if err := ix.AddRecursive(context.Background(), g, g.idList(t, heads...)); err != nil {
		t.Fatalf("AddRecursive: %v", err)
	}
	return ix
}

// Linear chain plus a fork:
//
//	      D
//	     /
//	A--B--C
func forkGraph(t *testing.T) *graph {
	return buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"B"},
		"D": {"B"},
	})
}

func TestGenerationMonotonicity(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"A"},
		"M": {"B", "C"},
		"E": {"M"},
	})
	ix := indexGraph(t, g, "E")

	for name, ps := range map[string][]string{"B": {"A"}, "C": {"A"}, "M": {"B", "C"}, "E": {"M"}} {
		child, err := ix.Generation(g.id(t, name))
		if err != nil {
			t.Fatalf("Generation(%s): %v", name, err)
		}
		for _, p := range ps {
			parent, err := ix.Generation(g.id(t, p))
			if err != nil {
				t.Fatalf("Generation(%s): %v", p, err)
			}
			if parent >= child {
				t.Errorf("generation(%s)=%d not below generation(%s)=%d", p, parent, name, child)
			}
		}
	}
	if gen, _ := ix.Generation(g.id(t, "A")); gen != 0 {
		t.Errorf("root generation = %d, want 0", gen)
	}
	if gen, _ := ix.Generation(g.id(t, "M")); gen != 2 {
		t.Errorf("merge generation = %d, want 2 (1 + max parent)", gen)
	}
}

func TestAddRequiresParentsFirst(t *testing.T) {
	g := forkGraph(t)
	ix := New()
	err := ix.Add(g.id(t, "B"), g.commits[g.id(t, "B")])
	if !errors.Is(err, ErrParentNotIndexed) {
		t.Fatalf("want ErrParentNotIndexed, got %v", err)
	}
}

func TestAddIdempotent(t *testing.T) {
	g := forkGraph(t)
	ix := indexGraph(t, g, "C", "D")
	n := ix.NumCommits()
	if err := ix.Add(g.id(t, "B"), g.commits[g.id(t, "B")]); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	if ix.NumCommits() != n {
		t.Errorf("re-add grew the index: %d -> %d", n, ix.NumCommits())
	}
}

func TestAddRecursiveHeadIsAncestorOfOtherHead(t *testing.T) {
	g := forkGraph(t)
	// B is itself a head and also an ancestor of C.
	ix := New()
	if err := ix.AddRecursive(context.Background(), g, g.idList(t, "B", "C")); err != nil {
		t.Fatalf("AddRecursive: %v", err)
	}
	if ix.NumCommits() != 3 {
		t.Errorf("indexed %d commits, want 3", ix.NumCommits())
	}
}

func TestAddRecursiveIncremental(t *testing.T) {
	g := forkGraph(t)
	ix := indexGraph(t, g, "C")
	if ix.Has(g.id(t, "D")) {
		t.Fatal("D should not be indexed yet")
	}
	if err := ix.AddRecursive(context.Background(), g, g.idList(t, "D")); err != nil {
		t.Fatalf("incremental AddRecursive: %v", err)
	}
	if !ix.Has(g.id(t, "D")) || ix.NumCommits() != 4 {
		t.Errorf("incremental add incomplete: %d commits", ix.NumCommits())
	}
}

func TestAddRecursiveCancellation(t *testing.T) {
	g := forkGraph(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ix := New()
	if err := ix.AddRecursive(ctx, g, g.idList(t, "C")); !errors.Is(err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", err)
	}
}

func TestResolveIDPrefix(t *testing.T) {
	g := forkGraph(t)
	ix := indexGraph(t, g, "C", "D")

	full := g.id(t, "C")
	got := ix.ResolveIDPrefix(string(full[:12]))
	if len(got) != 1 || got[0] != full {
		t.Errorf("ResolveIDPrefix: got %v, want [%s]", got, full.Short(12))
	}
	if got := ix.ResolveIDPrefix(""); len(got) != 4 {
		t.Errorf("empty prefix should match everything, got %d", len(got))
	}
}

func TestResolveChangePrefix(t *testing.T) {
	g := forkGraph(t)
	ix := indexGraph(t, g, "C", "D")

	change := g.commits[g.id(t, "D")].Change
	got := ix.ResolveChangePrefix(string(change))
	if len(got) != 1 || got[0] != g.id(t, "D") {
		t.Errorf("ResolveChangePrefix: got %v", g.nameList(got))
	}
}
