package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

const version = "0.1.0-dev"

// rootOptions holds the global flags shared by every subcommand.
type rootOptions struct {
	dir     string
	verbose bool
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:           "gitlet",
		Short:         "A minimal content-addressed version control system",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.dir, "dir", "C", ".", "run as if started in this directory")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "log debug records to stderr")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newInitCmd(opts))
	root.AddCommand(newAddCmd(opts))
	root.AddCommand(newRmCmd(opts))
	root.AddCommand(newCommitCmd(opts))
	root.AddCommand(newBranchCmd(opts))
	root.AddCommand(newCheckoutCmd(opts))
	root.AddCommand(newDiffCmd(opts))
	root.AddCommand(newMergeCmd(opts))
	root.AddCommand(newStatusCmd(opts))
	root.AddCommand(newLogCmd(opts))
	root.AddCommand(newResetCmd(opts))
	root.AddCommand(newWriteTreeCmd(opts))
	root.AddCommand(newUpdateRefCmd(opts))
	root.AddCommand(newReflogCmd(opts))
	root.AddCommand(newConfigCmd(opts))
	root.AddCommand(newVerifyCommitCmd(opts))
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), "gitlet "+version)
		},
	}
}

func (o *rootOptions) logger(cmd *cobra.Command) *slog.Logger {
	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

// workDir returns the absolute directory selected with -C.
func (o *rootOptions) workDir() (string, error) {
	dir := o.dir
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	return abs, nil
}

// openRepo locates the repository enclosing the -C directory.
func (o *rootOptions) openRepo(cmd *cobra.Command) (*repo.Repo, error) {
	dir, err := o.workDir()
	if err != nil {
		return nil, err
	}
	root, err := repo.FindRoot(dir)
	if err != nil {
		return nil, err
	}
	return repo.Open(osfs.New(root), repo.WithLogger(o.logger(cmd)))
}

// repoPath turns a path argument relative to the -C directory into a
// repository-relative path.
func (o *rootOptions) repoPath(r *repo.Repo, arg string) (string, error) {
	if r.Root == nil {
		return arg, nil
	}
	dir, err := o.workDir()
	if err != nil {
		return "", err
	}
	base := r.Root.Root()
	target := arg
	if !filepath.IsAbs(target) {
		target = filepath.Join(dir, target)
	}
	rel, err := filepath.Rel(base, target)
	if err != nil {
		return "", fmt.Errorf("resolve path %q: %w", arg, err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside repository at %s", arg, base)
	}
	return filepath.ToSlash(rel), nil
}

// printResult writes a command's result string, newline-terminated.
func printResult(cmd *cobra.Command, out string) {
	if out == "" {
		return
	}
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	fmt.Fprint(cmd.OutOrStdout(), out)
}
