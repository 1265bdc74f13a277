package config

import (
	"fmt"
	"time"
)

// Validate validates the complete configuration structure.
func Validate(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	return v.validate()
}

// configurationValidator coordinates validation across all configuration domains.
type configurationValidator struct {
	config *Config
}

func (cv *configurationValidator) validate() error {
	if err := cv.validateCore(); err != nil {
		return err
	}
	if err := cv.validateProjects(); err != nil {
		return err
	}
	if err := cv.validateBuild(); err != nil {
		return err
	}
	if err := cv.validateCorpus(); err != nil {
		return err
	}
	if err := cv.validatePatches(); err != nil {
		return err
	}
	if err := cv.validateDaemon(); err != nil {
		return err
	}
	return nil
}

func (cv *configurationValidator) validateCore() error {
	if cv.config.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", cv.config.Workers)
	}
	if cv.config.Version == "" {
		return fmt.Errorf("version cannot be empty")
	}
	if cv.config.WorkDir == "" {
		return fmt.Errorf("work_dir cannot be empty")
	}
	if cv.config.OutputDir == "" {
		return fmt.Errorf("output_dir cannot be empty")
	}
	return nil
}

func (cv *configurationValidator) validateProjects() error {
	seen := make(map[string]bool)
	for _, p := range cv.config.Projects {
		if p.Name == "" {
			return fmt.Errorf("project name cannot be empty")
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate project: %s", p.Name)
		}
		seen[p.Name] = true
		if p.URL == "" && cv.config.Source.BaseURL == "" {
			return fmt.Errorf("project %s has no url and source.base_url is unset", p.Name)
		}
	}
	return nil
}

func (cv *configurationValidator) validateBuild() error {
	b := cv.config.Build

	switch b.RetryBackoff {
	case RetryBackoffFixed, RetryBackoffLinear, RetryBackoffExponential:
	default:
		return fmt.Errorf("invalid retry_backoff: %s (allowed: fixed|linear|exponential)", b.RetryBackoff)
	}
	if b.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative: %d", b.MaxRetries)
	}

	initDur, err := time.ParseDuration(b.RetryInitialDelay)
	if err != nil {
		return fmt.Errorf("invalid retry_initial_delay: %s: %w", b.RetryInitialDelay, err)
	}
	maxDur, err := time.ParseDuration(b.RetryMaxDelay)
	if err != nil {
		return fmt.Errorf("invalid retry_max_delay: %s: %w", b.RetryMaxDelay, err)
	}
	if maxDur < initDur {
		return fmt.Errorf("retry_max_delay (%s) must be >= retry_initial_delay (%s)", b.RetryMaxDelay, b.RetryInitialDelay)
	}

	if len(b.DocsCommand) == 0 {
		return fmt.Errorf("build.docs_command cannot be empty")
	}
	if b.APIRef && len(b.ReferenceCommand) == 0 {
		return fmt.Errorf("build.reference_command cannot be empty when api_ref is enabled")
	}
	return nil
}

func (cv *configurationValidator) validateCorpus() error {
	switch cv.config.Corpus.Cleanup {
	case CleanupAll, CleanupVenvOnly, CleanupNone:
	default:
		return fmt.Errorf("invalid cleanup policy: %s (allowed: all|venv-only|none)", cv.config.Corpus.Cleanup)
	}
	return nil
}

func (cv *configurationValidator) validatePatches() error {
	for i, p := range cv.config.Patches {
		if p.Project == "" {
			return fmt.Errorf("patches[%d]: project cannot be empty", i)
		}
		switch p.Action {
		case PatchStripExtension:
			if p.File == "" || p.Value == "" {
				return fmt.Errorf("patch for %s: strip-extension requires file and value", p.Project)
			}
		case PatchRemoveSubtree:
			if p.Path == "" {
				return fmt.Errorf("patch for %s: remove-subtree requires path", p.Project)
			}
		default:
			return fmt.Errorf("patch for %s: unsupported action: %s", p.Project, p.Action)
		}
	}
	return nil
}

func (cv *configurationValidator) validateDaemon() error {
	d := cv.config.Daemon
	if d.RefreshInterval != "" {
		if _, err := time.ParseDuration(d.RefreshInterval); err != nil {
			return fmt.Errorf("invalid daemon.refresh_interval: %s: %w", d.RefreshInterval, err)
		}
	}
	return nil
}
