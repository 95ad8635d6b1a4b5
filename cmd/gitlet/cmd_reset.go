package main

import (
	"github.com/spf13/cobra"
)

func newResetCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "reset <path>",
		Short: "Unstage paths, restoring their HEAD versions in the index",
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
			out, err := r.Reset(p)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
}
