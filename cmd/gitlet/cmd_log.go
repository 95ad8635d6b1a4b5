package main

import (
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newLogCmd(opts *rootOptions) *cobra.Command {
	var logOpts repo.LogOptions

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show first-parent commit history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			out, err := r.Log(logOpts)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
	cmd.Flags().IntVarP(&logOpts.Limit, "max-count", "n", 0, "number of commits to show (0 for all)")
	return cmd
}
