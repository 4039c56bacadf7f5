package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/strata-vcs/strata/pkg/repo"
)

func newInitCmd() *cobra.Command {
	var backendKind string

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a new repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) == 1 {
				path = args[0]
			}
			r, err := repo.Init(cmd.Context(), path, backendKind)
			if err != nil {
				return err
			}
			defer r.Close()
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized repository in %s (%s backend)\n", r.StrataDir, backendKind)
			return nil
		},
	}
	cmd.Flags().StringVar(&backendKind, "backend", repo.BackendFile, "object storage backend (file or sqlite)")
	return cmd
}
