package main

import (
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newRmCmd(opts *rootOptions) *cobra.Command {
	var rmOpts repo.RemoveOptions

	cmd := &cobra.Command{
		Use:   "rm [-f] [-r] <path>",
		Short: "Remove files from the working copy and the index",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			p, err := opts.repoPath(r, args[0])
			if err != nil {
				return err
			}
			out, err := r.Remove(p, rmOpts)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&rmOpts.Force, "force", "f", false, "remove files with local changes")
	cmd.Flags().BoolVarP(&rmOpts.Recursive, "recursive", "r", false, "remove directories recursively")
	return cmd
}
