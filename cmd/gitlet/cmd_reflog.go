package main

import (
	"github.com/spf13/cobra"
)

func newReflogCmd(opts *rootOptions) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "reflog [ref]",
		Short: "Show ref update history",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			ref := ""
			if len(args) == 1 {
				ref = args[0]
			}
			out, err := r.Reflog(ref, limit)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "max-count", "n", 50, "maximum entries to show (0 for all)")
	return cmd
}
