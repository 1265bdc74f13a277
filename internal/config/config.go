package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the full corpusbuilder configuration.
type Config struct {
	// Version is the requested version label applied to every project that is
	// not in the latest-override table. The literal "master" selects the
	// unversioned development branch and bypasses the branch prefix.
	Version string `yaml:"version"`

	// Workers bounds how many task pipelines run concurrently.
	Workers int `yaml:"workers,omitempty"`

	// WorkDir is the root of all per-task private working copies, log sinks
	// and the staging tree.
	WorkDir string `yaml:"work_dir,omitempty"`

	// OutputDir is the caller-visible aggregate tree root handed to the
	// downstream embedding pipeline.
	OutputDir string `yaml:"output_dir,omitempty"`

	// FailFast stops dequeuing tasks after the first failure; already running
	// tasks still drain to completion. Off by default: a failure forgoes
	// nothing, and the run exits non-zero either way.
	FailFast bool `yaml:"fail_fast,omitempty"`

	Source   SourceConfig    `yaml:"source,omitempty"`
	Projects []ProjectConfig `yaml:"projects,omitempty"`
	Corpus   CorpusConfig    `yaml:"corpus,omitempty"`
	Build    BuildConfig     `yaml:"build,omitempty"`
	Patches  []PatchConfig   `yaml:"patches,omitempty"`
	Fetchers FetchersConfig  `yaml:"fetchers,omitempty"`
	History  HistoryConfig   `yaml:"history,omitempty"`
	Events   EventsConfig    `yaml:"events,omitempty"`
	Daemon   DaemonConfig    `yaml:"daemon,omitempty"`
}

// SourceConfig locates the project repositories.
type SourceConfig struct {
	// BaseURL is prefixed to a project name when the project has no explicit URL.
	BaseURL string `yaml:"base_url,omitempty"`
}

// ProjectConfig declares one project of the corpus, in build submission order.
type ProjectConfig struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url,omitempty"`
	// LibraryOnly projects have no primary documentation build and go straight
	// to the reference build.
	LibraryOnly bool `yaml:"library_only,omitempty"`
}

// CorpusConfig shapes the aggregate output tree.
type CorpusConfig struct {
	// LatestOverrides lists projects whose output label is the literal
	// "latest" regardless of the requested version (release-independent
	// projects publish unversioned docs).
	LatestOverrides []string `yaml:"latest_overrides,omitempty"`
	// ReferenceSuffix distinguishes reference (api) output labels from the
	// primary docs label, e.g. "2025.1" vs "2025.1-api-ref".
	ReferenceSuffix string `yaml:"reference_suffix,omitempty"`
	// Prune lists relative paths removed from the staging tree after all
	// tasks join; "{version}" is substituted with the resolved version label.
	Prune []string `yaml:"prune,omitempty"`
	// Cleanup selects which transient per-task artifacts are reclaimed.
	Cleanup CleanupPolicy `yaml:"cleanup,omitempty"`
}

// BuildConfig holds build tool invocation and retry tuning knobs.
type BuildConfig struct {
	// APIRef globally enables the secondary reference-documentation build.
	APIRef bool `yaml:"api_ref,omitempty"`
	// DocsCommand is the primary build invocation; "{out}" is replaced with
	// the build output directory, relative paths resolve in the repo clone.
	DocsCommand []string `yaml:"docs_command,omitempty"`
	// ReferenceCommand builds the reference docs when ReferenceSource exists.
	ReferenceCommand []string `yaml:"reference_command,omitempty"`
	// ReferenceSource is the directory whose presence enables the reference build.
	ReferenceSource string `yaml:"reference_source,omitempty"`
	// MinTextBytes discards converted pages smaller than this many bytes.
	MinTextBytes int `yaml:"min_text_bytes,omitempty"`
	// RequiredKeywords marks a converted page as contentful; pages matching
	// none of them are treated as pure navigation and discarded.
	RequiredKeywords []string `yaml:"required_keywords,omitempty"`

	MaxRetries        int              `yaml:"max_retries,omitempty"`
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// PatchConfig registers a per-project patch action applied after clone.
type PatchConfig struct {
	Project string          `yaml:"project"`
	Action  PatchActionKind `yaml:"action"`
	// File and Value parameterize strip-extension (config file + extension name).
	File  string `yaml:"file,omitempty"`
	Value string `yaml:"value,omitempty"`
	// Path parameterizes remove-subtree.
	Path string `yaml:"path,omitempty"`
}

// FetchersConfig configures the secondary corpus fetchers.
type FetchersConfig struct {
	ProductDocs  ProductDocsConfig  `yaml:"product_docs,omitempty"`
	ReleaseNotes ReleaseNotesConfig `yaml:"release_notes,omitempty"`
	PlatformDocs PlatformDocsConfig `yaml:"platform_docs,omitempty"`
}

// ProductDocsConfig fetches AsciiDoc product documentation.
type ProductDocsConfig struct {
	URL            string            `yaml:"url,omitempty"`
	Ref            string            `yaml:"ref,omitempty"`
	Version        string            `yaml:"version,omitempty"`
	Dir            string            `yaml:"dir,omitempty"` // namespace under the aggregate root
	AttributesFile string            `yaml:"attributes_file,omitempty"`
	CAFile         string            `yaml:"ca_file,omitempty"`
	ExcludeTitles  []string          `yaml:"exclude_titles,omitempty"`
	RemapTitles    map[string]string `yaml:"remap_titles,omitempty"`
	// ConvertCommand turns one AsciiDoc document into plaintext; "{in}" and
	// "{out}" are replaced with the source file and the output file.
	ConvertCommand []string `yaml:"convert_command,omitempty"`
}

// ReleaseNotesConfig fetches versioned release-information documents.
type ReleaseNotesConfig struct {
	URL            string   `yaml:"url,omitempty"`
	Ref            string   `yaml:"ref,omitempty"`
	Version        string   `yaml:"version,omitempty"`
	Dir            string   `yaml:"dir,omitempty"`
	CAFile         string   `yaml:"ca_file,omitempty"`
	ConvertCommand []string `yaml:"convert_command,omitempty"`
}

// PlatformDocsConfig fetches a third-party versioned docs repository and
// resolves the "latest" alias to the greatest non-excluded version.
type PlatformDocsConfig struct {
	URL              string   `yaml:"url,omitempty"`
	Ref              string   `yaml:"ref,omitempty"`
	Dir              string   `yaml:"dir,omitempty"`
	CAFile           string   `yaml:"ca_file,omitempty"`
	ExcludedVersions []string `yaml:"excluded_versions,omitempty"`
	Concurrency      int      `yaml:"concurrency,omitempty"`
	// ConvertCommand converts one version subdirectory into plaintext; "{in}"
	// and "{out}" are replaced with the source and output directories.
	ConvertCommand []string `yaml:"convert_command,omitempty"`
}

// HistoryConfig controls the SQLite run ledger.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled,omitempty"`
	Path    string `yaml:"path,omitempty"`
}

// EventsConfig controls NATS lifecycle event publishing.
type EventsConfig struct {
	Enabled       bool   `yaml:"enabled,omitempty"`
	NATSURL       string `yaml:"nats_url,omitempty"`
	SubjectPrefix string `yaml:"subject_prefix,omitempty"`
}

// DaemonConfig controls daemon mode (scheduled refresh + config watch).
type DaemonConfig struct {
	Listen          string `yaml:"listen,omitempty"`           // metrics/health listen address
	RefreshInterval string `yaml:"refresh_interval,omitempty"` // e.g. "24h"
	RebuildOnChange bool   `yaml:"rebuild_on_change,omitempty"`
}

// Load loads configuration from the specified file, expanding environment
// variables in the YAML content and applying defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// Load .env file if present; existing process env wins.
	if err := godotenv.Load(); err == nil {
		fmt.Fprintln(os.Stderr, "Loaded environment variables from .env")
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	ApplyEnvOverrides(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Init creates a new configuration file with example content.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	example := Config{
		Version:   "2025.1",
		Workers:   defaultWorkers,
		WorkDir:   defaultWorkDir,
		OutputDir: defaultOutputDir,
	}
	ApplyDefaults(&example)
	// The defaults carry the full project list; an init file should show a
	// small editable subset instead.
	example.Projects = []ProjectConfig{
		{Name: "nova"},
		{Name: "neutron"},
		{Name: "os-brick", LibraryOnly: true},
	}

	data, err := yaml.Marshal(&example)
	if err != nil {
		return fmt.Errorf("failed to marshal example config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// ProjectURL resolves a project's clone URL, falling back to the source base URL.
func (c *Config) ProjectURL(p ProjectConfig) string {
	if p.URL != "" {
		return p.URL
	}
	return fmt.Sprintf("%s/%s", c.Source.BaseURL, p.Name)
}

// IsLatestOverride reports whether a project's output label is forced to "latest".
func (c *Config) IsLatestOverride(project string) bool {
	for _, p := range c.Corpus.LatestOverrides {
		if p == project {
			return true
		}
	}
	return false
}
