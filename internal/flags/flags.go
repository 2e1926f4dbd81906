// Package flags provides feature flag support for controlled feature rollout.
// Flags are read-only after initialization and provide safe defaults for unknown flags.
package flags

import (
	"maps"

	"github.com/zjrosen/agentdesk/internal/log"
)

// Flag name constants for type-safe flag access.
const (
	// FlagPasteDrop treats a paste made only of existing file paths as a file drop.
	FlagPasteDrop = "paste-drop"

	// FlagMarkdownTranscript renders agent turns through glamour instead of plain text.
	FlagMarkdownTranscript = "markdown-transcript"

	// FlagRecordCwds stores the working directory of each started session.
	FlagRecordCwds = "record-cwds"
)

// defaults are applied before the configured values.
var defaults = map[string]bool{
	FlagPasteDrop:          true,
	FlagMarkdownTranscript: true,
	FlagRecordCwds:         true,
}

// Registry holds feature flag state loaded from configuration.
// Flags are read-only after initialization.
type Registry struct {
	flags map[string]bool
}

// New creates a Registry from a config map layered over the built-in defaults.
func New(flags map[string]bool) *Registry {
	merged := make(map[string]bool, len(defaults)+len(flags))
	maps.Copy(merged, defaults)
	maps.Copy(merged, flags)
	r := &Registry{flags: merged}
	log.Debug(log.CatConfig, "Feature flags initialized", "count", len(merged), "flags", r.All())
	return r
}

// Enabled returns true if the named flag is enabled.
// Returns false for unknown flags (safe default).
// Returns false when called on nil registry (nil-safe).
func (r *Registry) Enabled(name string) bool {
	if r == nil || r.flags == nil {
		return false
	}
	value, exists := r.flags[name]
	if !exists {
		log.Debug(log.CatConfig, "Unknown flag accessed", "flag", name, "result", false)
		return false
	}
	return value
}

// All returns a copy of all flags (for debugging/logging).
// Returns an empty map if the registry is nil.
func (r *Registry) All() map[string]bool {
	if r == nil || r.flags == nil {
		return make(map[string]bool)
	}
	result := make(map[string]bool, len(r.flags))
	maps.Copy(result, r.flags)
	return result
}
