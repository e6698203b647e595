// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config provides configuration loading and management for morpheus.
//
// # Configuration Precedence
//
// Configuration is loaded from (in order of precedence):
//   - Environment variables (MORPHEUS_*)
//   - ~/.morpheus/config.toml (MORPHEUS_HOME moves the directory)
//   - Built-in defaults
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := stream.NewClientWithConfig(&stream.ClientConfig{
//	    BaseURL:        cfg.Server.BaseURL,
//	    ConnectTimeout: cfg.ConnectTimeout(),
//	})
package config
