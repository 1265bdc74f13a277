package config

import "strings"

// CleanupPolicy controls which transient artifacts are removed from a task's
// working directory after it reaches a terminal state.
type CleanupPolicy string

const (
	CleanupAll      CleanupPolicy = "all"       // remove the whole per-task working directory
	CleanupVenvOnly CleanupPolicy = "venv-only" // remove only virtualenv/build scratch directories
	CleanupNone     CleanupPolicy = "none"      // keep everything (useful for debugging)
)

// NormalizeCleanupPolicy canonicalizes user input returning empty string if unknown.
func NormalizeCleanupPolicy(raw string) CleanupPolicy {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(CleanupAll):
		return CleanupAll
	case string(CleanupVenvOnly):
		return CleanupVenvOnly
	case string(CleanupNone):
		return CleanupNone
	default:
		return ""
	}
}

// RetryBackoffMode selects the delay growth curve for transient clone retries.
type RetryBackoffMode string

const (
	RetryBackoffFixed       RetryBackoffMode = "fixed"
	RetryBackoffLinear      RetryBackoffMode = "linear"
	RetryBackoffExponential RetryBackoffMode = "exponential"
)

// NormalizeRetryBackoff canonicalizes user input returning empty string if unknown.
func NormalizeRetryBackoff(raw string) RetryBackoffMode {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case string(RetryBackoffFixed):
		return RetryBackoffFixed
	case string(RetryBackoffLinear):
		return RetryBackoffLinear
	case string(RetryBackoffExponential):
		return RetryBackoffExponential
	default:
		return ""
	}
}

// PatchActionKind enumerates the registered per-project patch actions.
type PatchActionKind string

const (
	PatchStripExtension PatchActionKind = "strip-extension" // drop a build-tool extension reference from a config file
	PatchRemoveSubtree  PatchActionKind = "remove-subtree"  // delete a subtree that breaks or loops the build
)
