package main

import (
	"github.com/spf13/cobra"
)

func newWriteTreeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "write-tree",
		Short: "Write the index as tree objects and print the root hash",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			out, err := r.WriteTree()
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
}

func newUpdateRefCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "update-ref <ref> <target>",
		Short: "Point a ref at the commit target resolves to",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			out, err := r.UpdateRef(args[0], args[1])
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}
}
