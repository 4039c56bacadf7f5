package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/strata-vcs/strata/pkg/object"
	"github.com/strata-vcs/strata/pkg/repo"
)

func newUndoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "undo [operation]",
		Short: "Undo an operation",
		Long: `Revert the effects of an operation by appending a new operation whose view
is the one from just before it. Without arguments, undoes the latest
operation. The undone operation stays in the log, so an undo can itself be
undone.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			var target object.ID
			if len(args) == 1 {
				target, err = resolveOperation(ctx, r, args[0])
			} else {
				target, err = latestOperation(ctx, r)
			}
			if err != nil {
				return err
			}

			opID, err := r.Log.Undo(ctx, target)
			if err != nil {
				return err
			}
			if err := r.RefreshIndex(ctx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Undid operation %s (new operation %s)\n", target.Short(12), opID.Short(12))
			return nil
		},
	}
	return cmd
}

func latestOperation(ctx context.Context, r *repo.Repo) (object.ID, error) {
	heads, err := r.Log.Heads(ctx)
	if err != nil {
		return "", err
	}
	if len(heads) != 1 {
		return "", fmt.Errorf("operation log has %d heads; name the operation to undo", len(heads))
	}
	return heads[0], nil
}

func resolveOperation(ctx context.Context, r *repo.Repo, prefix string) (object.ID, error) {
	entries, err := r.Log.History(ctx, 0)
	if err != nil {
		return "", err
	}
	var matches []object.ID
	for _, e := range entries {
		if strings.HasPrefix(string(e.ID), prefix) {
			matches = append(matches, e.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no operation matches %q", prefix)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("operation prefix %q is ambiguous (%d matches)", prefix, len(matches))
	}
}
