package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newOplogCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "oplog",
		Short: "Show the operation log",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			heads, err := r.Log.Heads(ctx)
			if err != nil {
				return err
			}
			isHead := make(map[string]bool, len(heads))
			for _, h := range heads {
				isHead[string(h)] = true
			}

			entries, err := r.Log.History(ctx, limit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			blue := color.New(color.FgBlue)
			cyan := color.New(color.FgCyan)
			for _, e := range entries {
				blue.Fprintf(out, "%s", e.ID.Short(12))
				if isHead[string(e.ID)] {
					cyan.Fprint(out, " (current)")
				}
				who := e.Op.Username
				if e.Op.Hostname != "" {
					who += "@" + e.Op.Hostname
				}
				fmt.Fprintf(out, " %s %s\n", time.Unix(e.Op.When, 0).UTC().Format("2006-01-02 15:04:05"), who)
				fmt.Fprintf(out, "    %s\n", firstLine(e.Op.Description))
			}
			if len(heads) > 1 {
				fmt.Fprintf(out, "\n%d concurrent operations; the next commit will merge them.\n", len(heads))
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of operations")
	return cmd
}
