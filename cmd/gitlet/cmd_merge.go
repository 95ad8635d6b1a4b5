package main

import (
	"github.com/spf13/cobra"
)

func newMergeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "merge <ref>",
		Short: "Join another line of history into HEAD",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			out, err := r.Merge(args[0])
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
}
