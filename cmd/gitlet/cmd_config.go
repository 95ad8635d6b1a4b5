package main

import (
	"fmt"

	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newConfigCmd(opts *rootOptions) *cobra.Command {
	var list bool

	cmd := &cobra.Command{
		Use:   "config [--list] | <key> [value]",
		Short: "Get or set repository configuration",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch {
			case list:
				for _, key := range repo.ConfigKeys() {
					v, err := r.ConfigValue(key)
					if err != nil {
						return err
					}
					if v != "" {
						fmt.Fprintf(out, "%s=%s\n", key, v)
					}
				}
				return nil
			case len(args) == 1:
				v, err := r.ConfigValue(args[0])
				if err != nil {
					return err
				}
				fmt.Fprintln(out, v)
				return nil
			case len(args) == 2:
				return r.SetConfigValue(args[0], args[1])
			default:
				return fmt.Errorf("config: need a key, or --list")
			}
		},
	}
	cmd.Flags().BoolVarP(&list, "list", "l", false, "list all set keys")
	return cmd
}
