// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// config.go - Inspect and edit ~/.morpheus/config.toml.
//
// Command: config [subcommand]
//
// Subcommands:
//   show (default)      Show the effective configuration
//   get <key>           Print one setting
//   set <key> <value>   Change one setting in the config file
//   keys                List every setting
//   path                Print the config file location
//
// Examples:
//   morpheus config set server.base_url https://morpheus.example.com
//   morpheus config get audio.auto_generate
//   morpheus config show --json

package cli

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jeranaias/morpheus-tui/internal/config"
)

func newConfigCommand(o *Options) *cobra.Command {
	show := newConfigShowCommand(o)
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and edit configuration",
		Args:  cobra.NoArgs,
		RunE:  show.RunE,
	}
	cmd.AddCommand(
		show,
		newConfigGetCommand(o),
		newConfigSetCommand(o),
		newConfigKeysCommand(o),
		newConfigPathCommand(o),
	)
	return cmd
}

func newConfigShowCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := o.LoadConfig()
			if err != nil {
				return err
			}
			path, _ := o.configFile()
			return o.emit("config show", cfg, func() {
				fmt.Fprintln(o.Stdout, TitleStyle.Render("morpheus configuration"))
				section := ""
				for _, key := range config.Keys() {
					if s := key[:strings.Index(key, ".")]; s != section {
						section = s
						fmt.Fprintln(o.Stdout, ValueStyle.Render("["+section+"]"))
					}
					v, _ := cfg.Get(key)
					fmt.Fprintf(o.Stdout, "  %s\n", RenderField(key[len(section)+1:]+":", fmt.Sprint(v)))
				}
				fmt.Fprintln(o.Stdout, RenderSeparator(41))
				fmt.Fprintf(o.Stdout, "Config file: %s\n", DimStyle.Render(path))
			})
		},
	}
}

func newConfigGetCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one setting",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := o.LoadConfig()
			if err != nil {
				return err
			}
			v, err := cfg.Get(args[0])
			if err != nil {
				return &UsageError{Message: err.Error()}
			}
			return o.emit("config get", map[string]any{"key": args[0], "value": v}, func() {
				fmt.Fprintln(o.Stdout, v)
			})
		},
	}
}

// newConfigSetCommand edits the file, not the effective config, so
// environment overrides are never written back.
func newConfigSetCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Change one setting in the config file",
		Args:  cobra.ExactArgs(2),
		RunE: func(_ *cobra.Command, args []string) error {
			path, err := o.configFile()
			if err != nil {
				return &configError{err: err}
			}
			cfg := config.Default()
			if err := config.LoadTOML(cfg, path); err != nil && !errors.Is(err, os.ErrNotExist) {
				return &configError{err: err}
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return &UsageError{Message: err.Error()}
			}
			cfg.SetDefaults()
			if err := cfg.Validate(); err != nil {
				return &configError{err: err}
			}
			if err := config.SaveTOML(cfg, path); err != nil {
				return &configError{err: err}
			}
			v, _ := cfg.Get(args[0])
			return o.emit("config set", map[string]any{"key": args[0], "value": v}, func() {
				fmt.Fprintf(o.Stdout, "%s %s = %v\n", SuccessStyle.Render("[OK]"), args[0], v)
			})
		},
	}
}

func newConfigKeysCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "List every setting",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			keys := config.Keys()
			sort.Strings(keys)
			return o.emit("config keys", keys, func() {
				for _, k := range keys {
					fmt.Fprintln(o.Stdout, k)
				}
			})
		},
	}
}

func newConfigPathCommand(o *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the config file location",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			path, err := o.configFile()
			if err != nil {
				return &configError{err: err}
			}
			_, statErr := os.Stat(path)
			data := map[string]any{"path": path, "exists": statErr == nil}
			return o.emit("config path", data, func() {
				fmt.Fprintln(o.Stdout, path)
			})
		},
	}
}
