package main

import (
	"github.com/spf13/cobra"
)

func newAddCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "add <path>...",
		Short: "Stage file contents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			for _, arg := range args {
				p, err := opts.repoPath(r, arg)
				if err != nil {
					return err
				}
				out, err := r.Add(p)
				if err != nil {
					return err
				}
				printResult(cmd, out)
			}
			return nil
		},
	}
}
