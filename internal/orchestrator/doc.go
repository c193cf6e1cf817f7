// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package orchestrator turns user send actions into provider streams and
// persisted results.
//
// Each actively-replying thread is a slot running one state machine:
// Idle -> Streaming -> {Committed | Cancelled | Failed}. Fragments
// accumulate in memory for live display; only a naturally completed stream
// commits an assistant message to the store. Cancellation discards the
// accumulator; no partial assistant message is ever persisted.
//
// Dual-mode sends fan out: one user message on the main thread, two fresh
// branches, two concurrent streams with independent state machines. There
// is no joint commit; each branch commits or fails on its own.
package orchestrator
