package main

import (
	"fmt"
	"strings"

	"github.com/odvcencio/gitlet/pkg/repo"
	"github.com/spf13/cobra"
)

func newCommitCmd(opts *rootOptions) *cobra.Command {
	var message string
	var author string
	var sign bool
	var signKey string

	cmd := &cobra.Command{
		Use:   "commit -m <message>",
		Short: "Record changes to the repository",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := opts.openRepo(cmd)
			if err != nil {
				return err
			}

			commitOpts := repo.CommitOptions{Message: message, Author: author}
			if sign || strings.TrimSpace(signKey) != "" {
				keyPath := signKey
				if keyPath == "" {
					cfg, err := r.Config()
					if err != nil {
						return err
					}
					keyPath = cfg.User.SigningKey
				}
				signer, resolved, err := newSSHCommitSigner(keyPath)
				if err != nil {
					return fmt.Errorf("commit: %w", err)
				}
				opts.logger(cmd).Debug("signing commit", "key", resolved)
				commitOpts.Signer = signer
			}

			out, err := r.Commit(commitOpts)
			if err != nil {
				return err
			}
			printResult(cmd, out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&message, "message", "m", "", "commit message")
	cmd.Flags().StringVar(&author, "author", "", "override author (default: user.name <user.email>, then $USER)")
	cmd.Flags().BoolVar(&sign, "sign", false, "sign commit with an SSH private key")
	cmd.Flags().StringVar(&signKey, "sign-key", "", "SSH private key path used for signing (default: user.signingkey, then ~/.ssh/id_ed25519, id_ecdsa, id_rsa)")
	return cmd
}
