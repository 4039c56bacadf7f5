package repo

import (
	"context"
	"fmt"
	"sort"

	"github.com/strata-vcs/strata/pkg/object"
	"github.com/strata-vcs/strata/pkg/op"
	"github.com/strata-vcs/strata/pkg/revset"
)

// symbolResolver resolves revset symbols against one view snapshot.
// Resolution order: "@", exact ref name, hex commit-id prefix, change-id
// prefix. A conflicted ref cannot be resolved until the user picks a side.
type symbolResolver struct {
	repo *Repo
	view *op.View
}

func (s *symbolResolver) ResolveSymbol(name string) ([]object.ID, error) {
	if name == "@" {
		if s.view.WorkingCopy == "" {
			return nil, nil
		}
		return []object.ID{s.view.WorkingCopy}, nil
	}
	if id, ok := s.view.Refs[name]; ok {
		return []object.ID{id}, nil
	}
	if candidates, ok := s.view.Conflicts[name]; ok {
		return nil, fmt.Errorf("ref %q is conflicted between %d targets; set it explicitly to resolve", name, len(candidates))
	}
	if object.IsHexPrefix(name) {
		if ids := s.repo.Index.ResolveIDPrefix(name); len(ids) > 0 {
			return ids, nil
		}
	}
	if ids := s.repo.Index.ResolveChangePrefix(name); len(ids) > 0 {
		// A change rewritten over time has several commits; the newest
		// visible one wins only if it is unique, otherwise report all.
		return ids, nil
	}
	return nil, nil
}

// Evaluate parses and evaluates a revset against the current view, with the
// settings' aliases in scope. The result streams commits newest-first.
func (r *Repo) Evaluate(ctx context.Context, src string) (*revset.Result, error) {
	view, _, err := r.Log.CurrentView(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Index.AddRecursive(ctx, r, visibleIDs(view)); err != nil {
		return nil, err
	}
	env := &revset.Env{
		Index:        r.Index,
		Resolver:     &symbolResolver{repo: r, view: view},
		VisibleHeads: append([]object.ID(nil), view.Heads...),
	}
	return revset.EvalString(ctx, src, r.Settings.Revset.Aliases, env)
}

func visibleIDs(view *op.View) []object.ID {
	var ids []object.ID
	ids = append(ids, view.Heads...)
	for _, id := range view.Refs {
		ids = append(ids, id)
	}
	for _, cs := range view.Conflicts {
		ids = append(ids, cs...)
	}
	if view.WorkingCopy != "" {
		ids = append(ids, view.WorkingCopy)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
