// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package provider

import "fmt"

// =============================================================================
// REGISTRY
// =============================================================================

// Factory constructs a provider from its config.
type Factory func(cfg Config) (Provider, error)

// registry maps provider IDs to factories. Additions happen at init time
// only; reads are lock-free.
var registry = map[string]Factory{
	"ollama": func(cfg Config) (Provider, error) { return NewOllama(cfg) },
	"openai": func(cfg Config) (Provider, error) { return NewOpenAI(cfg) },
}

// New constructs a provider by registry ID. Unknown IDs fail with
// ErrUnknownProvider before any network activity.
func New(name string, cfg Config) (Provider, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
	return factory(cfg)
}

// Known returns the registered provider IDs.
func Known() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}

// IsKnown reports whether a provider ID is registered.
func IsKnown(name string) bool {
	_, ok := registry[name]
	return ok
}
