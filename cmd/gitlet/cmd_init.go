package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newInitCmd(opts *rootOptions) *cobra.Command {
	var bare bool

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create an empty gitlet repository",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := opts.workDir()
			if err != nil {
				return err
			}
			if len(args) > 0 {
				if filepath.IsAbs(args[0]) {
					dir = args[0]
				} else {
					dir = filepath.Join(dir, args[0])
				}
			}

			// Ensure the target directory exists.
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create directory: %w", err)
			}

			r, err := repo.Init(osfs.New(dir), repo.InitOptions{Bare: bare}, repo.WithLogger(opts.logger(cmd)))
			if err != nil {
				return err
			}

			meta := filepath.Join(dir, repo.MetaDir)
			if r.IsBare() {
				meta = dir
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Initialized gitlet repository in %s\n", meta+string(filepath.Separator))
			return nil
		},
	}
	cmd.Flags().BoolVar(&bare, "bare", false, "create a repository without a working copy")
	return cmd
}
