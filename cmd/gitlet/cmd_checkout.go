package main

import (
	"github.com/spf13/cobra"
)

func newCheckoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "checkout <ref>",
		Short: "Switch to a branch, or detach HEAD at a commit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			out, err := r.Checkout(args[0])
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
}
