package main

import (
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newLogCmd() *cobra.Command {
	var revision string
	var limit int
	var oneline bool

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show commits matching a revset",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			r, err := openRepo(ctx)
			if err != nil {
				return err
			}
			defer r.Close()

			view, err := r.CurrentView(ctx)
			if err != nil {
				return err
			}
			refsByTarget := make(map[string][]string)
			for name, target := range view.Refs {
				refsByTarget[string(target)] = append(refsByTarget[string(target)], name)
			}

			res, err := r.Evaluate(ctx, revision)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			yellow := color.New(color.FgYellow)
			magenta := color.New(color.FgMagenta)
			cyan := color.New(color.FgCyan)
			green := color.New(color.FgGreen)

			shown := 0
			for {
				id, ok, err := res.Next()
				if err != nil {
					return err
				}
				if !ok {
					break
				}
				if limit > 0 && shown >= limit {
					break
				}
				shown++

				c, err := r.Commit(ctx, id)
				if err != nil {
					return err
				}
				marker := ""
				if id == view.WorkingCopy {
					marker = "@"
				}

				if oneline {
					yellow.Fprintf(out, "%s ", id.Short(12))
					magenta.Fprintf(out, "%s ", c.Change)
					if marker != "" {
						cyan.Fprintf(out, "%s ", marker)
					}
					fmt.Fprintln(out, firstLine(c.Description))
					continue
				}

				yellow.Fprintf(out, "commit %s", id.Short(12))
				magenta.Fprintf(out, " change %s", c.Change)
				if marker != "" {
					cyan.Fprintf(out, " %s", marker)
				}
				for _, name := range refsByTarget[string(id)] {
					green.Fprintf(out, " %s", name)
				}
				fmt.Fprintln(out)
				fmt.Fprintf(out, "Author: %s <%s>\n", c.Author.Name, c.Author.Email)
				fmt.Fprintf(out, "Date:   %s\n", time.Unix(c.Author.When, 0).UTC().Format("2006-01-02 15:04:05"))
				fmt.Fprintln(out)
				if c.Description != "" {
					fmt.Fprintf(out, "    %s\n", firstLine(c.Description))
				} else {
					fmt.Fprintln(out, "    (no description)")
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&revision, "revisions", "r", "all()", "revset to show")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of commits")
	cmd.Flags().BoolVar(&oneline, "oneline", false, "one commit per line")
	return cmd
}
