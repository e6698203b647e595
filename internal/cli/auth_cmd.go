// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// auth_cmd.go - Sign in and out.
//
// Commands:
//   signin              Store a bearer token for the server
//   signout             Forget the token and the active conversation
//
// Examples:
//   morpheus signin --token "$TOKEN"
//   printf %s "$TOKEN" | morpheus signin
//   morpheus signin                    Prompt without echo
//   morpheus signout

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jeranaias/morpheus-tui/internal/auth"
	"github.com/jeranaias/morpheus-tui/internal/config"
	"github.com/jeranaias/morpheus-tui/internal/session"
	"github.com/jeranaias/morpheus-tui/internal/storage"
)

func newSigninCommand(o *Options) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:     "signin",
		Aliases: []string{"login"},
		Short:   "Store a bearer token for the server",
		Args:    cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := o.LoadConfig()
			if err != nil {
				return err
			}
			if token == "" {
				if token, err = readToken(o); err != nil {
					return err
				}
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return usageErrorf("token is empty")
			}
			if err := auth.CheckExpiry(token, time.Now()); err != nil {
				return err
			}
			if err := auth.SaveToken(cfg.Auth.TokenFile, token); err != nil {
				return &configError{err: fmt.Errorf("saving token: %w", err)}
			}
			return o.emit("signin", map[string]string{"token_file": cfg.Auth.TokenFile}, func() {
				fmt.Fprintf(o.Stdout, "%s signed in (token saved to %s)\n", SuccessStyle.Render("[OK]"), cfg.Auth.TokenFile)
				if os.Getenv(auth.EnvToken) != "" {
					fmt.Fprintln(o.Stdout, WarningStyle.Render(auth.EnvToken+" is set and takes precedence over the saved token."))
				}
			})
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "bearer token (read from stdin when omitted)")
	return cmd
}

// readToken prompts without echo on a terminal, or reads all of stdin.
func readToken(o *Options) (string, error) {
	if f, ok := o.Stdin.(*os.File); ok && f == os.Stdin && IsTTY() {
		fmt.Fprint(o.Stderr, "Token: ")
		b, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(o.Stderr)
		if err != nil {
			return "", fmt.Errorf("failed to read token: %w", err)
		}
		return string(b), nil
	}
	b, err := io.ReadAll(o.Stdin)
	if err != nil {
		return "", fmt.Errorf("reading stdin: %w", err)
	}
	return string(b), nil
}

func newSignoutCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:     "signout",
		Aliases: []string{"logout"},
		Short:   "Forget the token and the active conversation",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := o.LoadConfig()
			if err != nil {
				return err
			}
			if err := signOut(cmd.Context(), cfg); err != nil {
				return err
			}
			return o.emit("signout", map[string]bool{"signed_out": true}, func() {
				fmt.Fprintf(o.Stdout, "%s signed out\n", SuccessStyle.Render("[OK]"))
			})
		},
	}
}

// signOut removes the token file and the persisted active conversation.
// A running full-screen client notices the token file going away.
func signOut(ctx context.Context, cfg *config.Config) error {
	if err := auth.RemoveToken(cfg.Auth.TokenFile); err != nil {
		return fmt.Errorf("removing token: %w", err)
	}
	kv, err := storage.OpenKV(cfg.Storage.StatePath)
	if err != nil {
		return &configError{err: err}
	}
	defer kv.Close()
	return session.NewKVStore(kv).Clear(ctx)
}
