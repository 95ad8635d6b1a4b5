package main

import (
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newDiffCmd(opts *rootOptions) *cobra.Command {
	var diffOpts repo.DiffOptions

	cmd := &cobra.Command{
		Use:   "diff [ref1 [ref2]]",
		Short: "Show changes between the working copy, the index and commits",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			var ref1, ref2 string
			if len(args) > 0 {
				ref1 = args[0]
			}
			if len(args) > 1 {
				ref2 = args[1]
			}
			out, err := r.Diff(ref1, ref2, diffOpts)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&diffOpts.Patch, "patch", "p", false, "show a unified diff")
	return cmd
}
