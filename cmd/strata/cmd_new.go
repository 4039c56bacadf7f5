package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-vcs/strata/pkg/object"
)

func newNewCmd() *cobra.Command {
	var message string

	cmd := &cobra.Command{
		Use:   "new [parent revset...]",
		Short: "Create a new empty commit and check it out",
		Long: `Create a new commit with an empty tree. Parents default to the working
copy commit; with arguments, each revset names one parent.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			var parents []object.ID
			if len(args) == 0 {
				view, err := r.CurrentView(ctx)
				if err != nil {
					return err
				}
				if view.WorkingCopy != "" {
					parents = append(parents, view.WorkingCopy)
				}
			} else {
				for _, arg := range args {
					p, err := resolveSingle(ctx, r, arg)
					if err != nil {
						return err
					}
					parents = append(parents, p)
				}
			}

			tree, err := r.BuildTree(ctx, nil)
			if err != nil {
				return err
			}
			id, c, err := r.NewCommitBuilder(parents, tree).SetDescription(message).Write(ctx)
			if err != nil {
				return err
			}

			tx, err := r.NewTransaction(ctx)
			if err != nil {
				return err
			}
			tx.Tx.RecordCommit(id)
			for _, p := range parents {
				tx.Tx.RemoveHead(p)
			}
			tx.Tx.AddHead(id)
			tx.Tx.SetWorkingCopy(id)
			if _, err := tx.Commit(ctx, "new commit "+id.Short(12)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Working copy now at %s (change %s)\n", id.Short(12), c.Change)
			return nil
		},
	}
	cmd.Flags().StringVarP(&message, "message", "m", "", "description for the new commit")
	return cmd
}
