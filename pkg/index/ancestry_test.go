package index

import (
	"sort"
	"testing"

	"github.com/strata-vcs/strata/pkg/object"
)

func names(g *graph, ids []object.ID) []string {
	out := g.nameList(ids)
	sort.Strings(out)
	return out
}

func equalNames(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestIsAncestor(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"B"},
		"D": {"B"},
		"M": {"C", "D"},
	})
	ix := indexGraph(t, g, "M")

	cases := []struct {
		a, b string
		want bool
	}{
		{"A", "A", true}, // inclusive of a == b
		{"A", "M", true},
		{"B", "C", true},
		{"B", "D", true},
		{"C", "M", true},
		{"D", "M", true},
		{"C", "D", false}, // siblings
		{"D", "C", false},
		{"M", "A", false}, // descendant is not ancestor
		{"C", "B", false},
	}
	for _, tc := range cases {
		got, err := ix.IsAncestor(g.id(t, tc.a), g.id(t, tc.b))
		if err != nil {
			t.Fatalf("IsAncestor(%s,%s): %v", tc.a, tc.b, err)
		}
		if got != tc.want {
			t.Errorf("IsAncestor(%s,%s) = %v, want %v", tc.a, tc.b, got, tc.want)
		}
	}
}

func TestIsAncestorUnknownCommit(t *testing.T) {
	g := forkGraph(t)
	ix := indexGraph(t, g, "C")
	if _, err := ix.IsAncestor(g.id(t, "A"), g.id(t, "D")); !object.IsNotFound(err) {
		t.Errorf("want NotFoundError for unindexed commit, got %v", err)
	}
}

// Ancestry consistency: IsAncestor must agree with a plain parent-edge walk.
func TestIsAncestorMatchesNaiveWalk(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"A":  nil,
		"B":  {"A"},
		"C":  {"A"},
		"M1": {"B", "C"},
		"D":  {"C"},
		"M2": {"M1", "D"},
		"E":  {"M2"},
	})
	ix := indexGraph(t, g, "E")

	reachable := func(from, to object.ID) bool {
		seen := map[object.ID]bool{}
		stack := []object.ID{from}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if cur == to {
				return true
			}
			if seen[cur] {
				continue
			}
			seen[cur] = true
			stack = append(stack, g.commits[cur].Parents...)
		}
		return false
	}

	for an, aid := range g.ids {
		for bn, bid := range g.ids {
			want := reachable(bid, aid)
			got, err := ix.IsAncestor(aid, bid)
			if err != nil {
				t.Fatalf("IsAncestor(%s,%s): %v", an, bn, err)
			}
			if got != want {
				t.Errorf("IsAncestor(%s,%s) = %v, naive walk says %v", an, bn, got, want)
			}
		}
	}
}

func TestCommonAncestorsSimpleFork(t *testing.T) {
	// C1 and C2 both fork from C0.
	g := buildGraph(t, map[string][]string{
		"C0": nil,
		"C1": {"C0"},
		"C2": {"C0"},
	})
	ix := indexGraph(t, g, "C1", "C2")

	got, err := ix.CommonAncestors(g.idList(t, "C1"), g.idList(t, "C2"))
	if err != nil {
		t.Fatalf("CommonAncestors: %v", err)
	}
	if !equalNames(names(g, got), []string{"C0"}) {
		t.Errorf("CommonAncestors = %v, want [C0]", g.nameList(got))
	}
}

func TestCommonAncestorsCrissCross(t *testing.T) {
	// Criss-cross merge: both B and C are minimal common ancestors of X, Y.
	//
	//	A -- B -- X
	//	  \    \ /
	//	   C -- + -- Y   (X = merge(B, C), Y = merge(C, B))
	g := buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"A"},
		"X": {"B", "C"},
		"Y": {"C", "B"},
	})
	ix := indexGraph(t, g, "X", "Y")

	got, err := ix.CommonAncestors(g.idList(t, "X"), g.idList(t, "Y"))
	if err != nil {
		t.Fatalf("CommonAncestors: %v", err)
	}
	if !equalNames(names(g, got), []string{"B", "C"}) {
		t.Errorf("CommonAncestors = %v, want both B and C", g.nameList(got))
	}
}

func TestCommonAncestorsOfSets(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"B"},
		"D": {"B"},
		"E": {"A"},
	})
	ix := indexGraph(t, g, "C", "D", "E")

	got, err := ix.CommonAncestors(g.idList(t, "C", "D"), g.idList(t, "E"))
	if err != nil {
		t.Fatalf("CommonAncestors: %v", err)
	}
	if !equalNames(names(g, got), []string{"A"}) {
		t.Errorf("CommonAncestors = %v, want [A]", g.nameList(got))
	}

	got, err = ix.CommonAncestors(g.idList(t, "C"), g.idList(t, "D"))
	if err != nil {
		t.Fatalf("CommonAncestors: %v", err)
	}
	if !equalNames(names(g, got), []string{"B"}) {
		t.Errorf("CommonAncestors = %v, want [B]", g.nameList(got))
	}
}

func TestHeads(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"C0": nil,
		"C1": {"C0"},
		"C2": {"C0"},
	})
	ix := indexGraph(t, g, "C1", "C2")

	got, err := ix.Heads(g.idList(t, "C0", "C1", "C2"))
	if err != nil {
		t.Fatalf("Heads: %v", err)
	}
	if !equalNames(names(g, got), []string{"C1", "C2"}) {
		t.Errorf("Heads = %v, want [C1 C2]", g.nameList(got))
	}

	// A lone commit is its own head.
	got, err = ix.Heads(g.idList(t, "C0"))
	if err != nil {
		t.Fatalf("Heads: %v", err)
	}
	if !equalNames(names(g, got), []string{"C0"}) {
		t.Errorf("Heads = %v, want [C0]", g.nameList(got))
	}
}

func TestHeadsDeepRedundancy(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"B"},
		"D": {"C"},
	})
	ix := indexGraph(t, g, "D")

	got, err := ix.Heads(g.idList(t, "A", "D"))
	if err != nil {
		t.Fatalf("Heads: %v", err)
	}
	if !equalNames(names(g, got), []string{"D"}) {
		t.Errorf("Heads = %v, want [D]", g.nameList(got))
	}
}

func TestRoots(t *testing.T) {
	g := buildGraph(t, map[string][]string{
		"A": nil,
		"B": {"A"},
		"C": {"B"},
		"D": {"B"},
	})
	ix := indexGraph(t, g, "C", "D")

	got, err := ix.Roots(g.idList(t, "B", "C", "D"))
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if !equalNames(names(g, got), []string{"B"}) {
		t.Errorf("Roots = %v, want [B]", g.nameList(got))
	}

	got, err = ix.Roots(g.idList(t, "C", "D"))
	if err != nil {
		t.Fatalf("Roots: %v", err)
	}
	if !equalNames(names(g, got), []string{"C", "D"}) {
		t.Errorf("Roots = %v, want [C D]", g.nameList(got))
	}
}
