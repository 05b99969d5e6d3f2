// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package config loads g4chat's configuration.
//
// # Key Types
//
//   - Config: the whole configuration
//   - APIConfig: backend address, timeouts and client-side rate limiting
//   - ChatConfig: streaming and optimistic-update behavior
//   - StorageConfig: state file and transcript archive locations
//   - LogConfig: logger level and format
//
// # Configuration Precedence
//
// Later sources win:
//   - Built-in defaults
//   - $XDG_CONFIG_HOME/g4chat/config.toml
//   - .env in the working directory (never overriding the real environment)
//   - Environment variables (G4CHAT_*)
//
// # Usage
//
//	cfg, err := config.Load()
//	if err != nil {
//	    return err
//	}
//	client := api.NewClient(cfg.API.BaseURL, creds).WithTimeout(cfg.API.Timeout)
package config
