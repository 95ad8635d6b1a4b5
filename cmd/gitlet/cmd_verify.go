package main

import (
	"fmt"
	"os"

	"github.com/odvcencio/gitlet/pkg/object"
	"github.com/spf13/cobra"
	"golang.org/x/crypto/ssh"
)

func newVerifyCommitCmd(opts *rootOptions) *cobra.Command {
	var pubKeyPath string

	cmd := &cobra.Command{
		Use:   "verify-commit [ref]",
		Short: "Check the SSH signature of a commit",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}
			ref := "HEAD"
			if len(args) == 1 {
				ref = args[0]
			}
			h, err := r.ResolveRef(ref)
			if err != nil {
				return err
			}
			c, err := r.Store.ReadCommit(h)
			if err != nil {
				return err
			}
			if c.Signature == "" {
				return fmt.Errorf("verify-commit: %s is not signed", h.Short())
			}
			pub, err := verifySSHSignature(object.CommitSigningPayload(c), c.Signature)
			if err != nil {
				return fmt.Errorf("verify-commit %s: %w", h.Short(), err)
			}

			if pubKeyPath != "" {
				expanded, err := expandUserPath(pubKeyPath)
				if err != nil {
					return err
				}
				raw, err := os.ReadFile(expanded)
				if err != nil {
					return fmt.Errorf("read public key: %w", err)
				}
				want, _, _, _, err := ssh.ParseAuthorizedKey(raw)
				if err != nil {
					return fmt.Errorf("parse public key %q: %w", expanded, err)
				}
				if !sameKey(pub, want) {
					return fmt.Errorf("verify-commit %s: signed by %s, not %s", h.Short(), ssh.FingerprintSHA256(pub), ssh.FingerprintSHA256(want))
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Good signature on %s from %s %s\n", h.Short(), pub.Type(), ssh.FingerprintSHA256(pub))
			return nil
		},
	}
	cmd.Flags().StringVar(&pubKeyPath, "key", "", "require the signature to come from this public key (authorized_keys format)")
	return cmd
}
