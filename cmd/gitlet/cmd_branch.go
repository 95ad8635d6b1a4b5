package main

import (
	"github.com/spf13/cobra"
)

func newBranchCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "branch [name]",
		Short: "List branches, or create one at HEAD",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			out, err := r.Branch(name)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
}
