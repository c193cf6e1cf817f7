// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package model contains the data structures for conversations, messages,
// and per-provider chat settings.
//
// Conversations are flat containers: messages carry ThreadID and
// ParentMessageID edges instead of nested structures, and the tree view is
// reconstructed on read (see the thread package). A message with an empty
// ThreadID belongs to the conversation's main thread; a non-empty ThreadID
// names a branch forked off a main-thread message.
package model
