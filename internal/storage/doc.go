// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package storage keeps g4chat's client-local data.
//
// # Key Types
//
//   - State: the bearer credential and the session to project mapping, in a
//     JSON file written atomically with 0600 permissions
//   - Watcher: reloads a State when another process rewrites its file
//   - Archive: SQLite snapshot of the last reconciled sessions and transcripts
//   - ArchiveSync: keeps an Archive current by following store changes
//
// # Usage
//
//	st, err := storage.OpenState(path)
//	client := api.NewClient(baseURL, st)
//
//	arch, err := storage.OpenArchive(archivePath)
//	defer arch.Close()
//	sync := storage.NewArchiveSync(arch, chatStore, logger)
//	go sync.Run(ctx)
package storage
