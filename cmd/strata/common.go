package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/strata-vcs/strata/pkg/object"
	"github.com/strata-vcs/strata/pkg/repo"
)

func openRepo(ctx context.Context) (*repo.Repo, error) {
	return repo.Open(ctx, ".")
}

// resolveSingle evaluates a revset that must name exactly one commit.
func resolveSingle(ctx context.Context, r *repo.Repo, src string) (object.ID, error) {
	res, err := r.Evaluate(ctx, src)
	if err != nil {
		return "", err
	}
	ids, err := res.IDs()
	if err != nil {
		return "", err
	}
	switch len(ids) {
	case 0:
		return "", fmt.Errorf("revset %q matched no commits", src)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("revset %q matched %d commits, need exactly one", src, len(ids))
	}
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
