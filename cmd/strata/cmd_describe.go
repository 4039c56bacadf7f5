package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-vcs/strata/pkg/object"
)

func newDescribeCmd() *cobra.Command {
	var revision string
	var message string

	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Change the description of a commit",
		Long: `Rewrite a commit with a new description. The rewritten commit keeps its
change id; every ref and head pointing at the old commit moves to the new one.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			old, err := resolveSingle(ctx, r, revision)
			if err != nil {
				return err
			}
			newID, c, err := r.RewriteCommit(ctx, old, func(c *object.Commit) {
				c.Description = message
			})
			if err != nil {
				return err
			}
			if newID == old {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing changed.")
				return nil
			}

			tx, err := r.NewTransaction(ctx)
			if err != nil {
				return err
			}
			tx.Tx.RecordCommit(newID)
			view := tx.Tx.View()
			for name, target := range view.Refs {
				if target == old {
					tx.Tx.SetRef(name, newID)
				}
			}
			if view.HasHead(old) {
				tx.Tx.RemoveHead(old)
				tx.Tx.AddHead(newID)
			}
			if view.WorkingCopy == old {
				tx.Tx.SetWorkingCopy(newID)
			}
			if _, err := tx.Commit(ctx, "describe commit "+old.Short(12)); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Rewrote %s as %s (change %s)\n", old.Short(12), newID.Short(12), c.Change)
			return nil
		},
	}
	cmd.Flags().StringVarP(&revision, "revision", "r", "@", "commit to describe")
	cmd.Flags().StringVarP(&message, "message", "m", "", "new description")
	cmd.MarkFlagRequired("message")
	return cmd
}
