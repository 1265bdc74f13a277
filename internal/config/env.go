package config

import (
	"os"
	"strconv"
	"strings"
)

// Environment overrides. Each variable, when set, wins over the value loaded
// from the configuration file.
const (
	EnvProjects  = "CORPUSBUILDER_PROJECTS"   // comma-separated project names
	EnvVersion   = "CORPUSBUILDER_VERSION"    // requested version label
	EnvWorkers   = "CORPUSBUILDER_WORKERS"    // worker capacity
	EnvWorkDir   = "CORPUSBUILDER_WORK_DIR"   // per-task working copy root
	EnvOutputDir = "CORPUSBUILDER_OUTPUT_DIR" // aggregate tree root
	EnvPrune     = "CORPUSBUILDER_PRUNE"      // comma-separated relative paths
	EnvCleanup   = "CORPUSBUILDER_CLEANUP"    // all | venv-only | none
	EnvAPIRef    = "CORPUSBUILDER_API_REF"    // 1/true enables the reference build
	EnvFailFast  = "CORPUSBUILDER_FAIL_FAST"  // 1/true stops dequeuing after the first failure
)

// ApplyEnvOverrides applies environment variable overrides on top of the
// loaded configuration.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv(EnvProjects); v != "" {
		cfg.Projects = nil
		for _, name := range splitList(v) {
			cfg.Projects = append(cfg.Projects, ProjectConfig{Name: name})
		}
	}
	if v := os.Getenv(EnvVersion); v != "" {
		cfg.Version = v
	}
	if v := os.Getenv(EnvWorkers); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Workers = n
		}
	}
	if v := os.Getenv(EnvWorkDir); v != "" {
		cfg.WorkDir = v
	}
	if v := os.Getenv(EnvOutputDir); v != "" {
		cfg.OutputDir = v
	}
	if v := os.Getenv(EnvPrune); v != "" {
		cfg.Corpus.Prune = splitList(v)
	}
	if v := os.Getenv(EnvCleanup); v != "" {
		if policy := NormalizeCleanupPolicy(v); policy != "" {
			cfg.Corpus.Cleanup = policy
		}
	}
	if v := os.Getenv(EnvAPIRef); v != "" {
		cfg.Build.APIRef = parseBool(v)
	}
	if v := os.Getenv(EnvFailFast); v != "" {
		cfg.FailFast = parseBool(v)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseBool(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}
