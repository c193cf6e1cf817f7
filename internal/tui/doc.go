// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package tui is the terminal interface for loom.
//
// Two views: a conversation list and the chat view. The chat view renders
// the reconstructed message tree (main thread plus branches) in a viewport,
// with live streaming text appended from the orchestrator's slots.
// Streaming updates arrive as SlotUpdateMsg via Program.Send; rendering is
// throttled to a fixed tick so fast token streams never flood the event
// loop.
package tui
