package config

// Default exclude list for the product-docs fetcher. Titles listed here are
// either superseded by another guide, empty stubs, or not applicable to the
// supported product version.
var defaultExcludeTitles = []string{
	"hardening_red_hat_openstack_services_on_openshift",
	"integrating_openstack_identity_with_external_user_management_services",
	"firewall_rules_for_red_hat_openstack_platform",
	"managing_overcloud_observability",
	"network_planning_(sandbox)",
	"managing_secrets_with_the_key_manager_service",
	"migrating_to_the_ovn_mechanism_driver",
	"deploying_red_hat_openstack_platform_at_scale",
	"deploying_distributed_compute_nodes_with_separate_heat_stacks",
	"installing_ember-csi_on_openshift_container_platform",
	"introduction_to_red_hat_openstack_platform",
	"red_hat_openstack_platform_benchmarking_service",
	"backing_up_and_restoring_the_undercloud_and_control_plane_nodes",
	"configuring_dns_as_a_service",
}

// Published guide titles that moved; keyed by the title derived from the
// source tree, value is the directory name used in the aggregate.
var defaultRemapTitles = map[string]string{
	"command_line_interface_(cli)_reference": "command_line_interface_reference",
}

const (
	defaultWorkers   = 4
	defaultWorkDir   = "./work"
	defaultOutputDir = "./corpus"
	defaultBaseURL   = "https://opendev.org/openstack"
)

// ApplyDefaults fills in zero-valued configuration fields, one domain at a time.
func ApplyDefaults(cfg *Config) {
	applyCoreDefaults(cfg)
	applyBuildDefaults(cfg)
	applyCorpusDefaults(cfg)
	applyPatchDefaults(cfg)
	applyFetcherDefaults(cfg)
	applyHistoryDefaults(cfg)
	applyEventsDefaults(cfg)
	applyDaemonDefaults(cfg)
}

func applyCoreDefaults(cfg *Config) {
	if cfg.Version == "" {
		cfg.Version = "master"
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.WorkDir == "" {
		cfg.WorkDir = defaultWorkDir
	}
	if cfg.OutputDir == "" {
		cfg.OutputDir = defaultOutputDir
	}
	if cfg.Source.BaseURL == "" {
		cfg.Source.BaseURL = defaultBaseURL
	}
}

func applyBuildDefaults(cfg *Config) {
	if len(cfg.Build.DocsCommand) == 0 {
		// The primary build emits plaintext directly; only the reference
		// build goes through HTML and the conversion step.
		cfg.Build.DocsCommand = []string{"sphinx-build", "-b", "text", "doc/source", "{out}"}
	}
	if len(cfg.Build.ReferenceCommand) == 0 {
		cfg.Build.ReferenceCommand = []string{"sphinx-build", "-b", "html", "api-ref/source", "{out}"}
	}
	if cfg.Build.ReferenceSource == "" {
		cfg.Build.ReferenceSource = "api-ref/source"
	}
	if cfg.Build.MinTextBytes <= 0 {
		cfg.Build.MinTextBytes = 100
	}
	if cfg.Build.RequiredKeywords == nil {
		// Pages describing API operations mention at least one HTTP verb;
		// index and navigation pages do not.
		cfg.Build.RequiredKeywords = []string{"GET", "POST", "PUT", "DELETE", "PATCH"}
	}

	if cfg.Build.MaxRetries < 0 {
		cfg.Build.MaxRetries = 0
	}
	if cfg.Build.MaxRetries == 0 {
		cfg.Build.MaxRetries = 2
	}
	if cfg.Build.RetryBackoff == "" {
		cfg.Build.RetryBackoff = RetryBackoffLinear
	} else {
		cfg.Build.RetryBackoff = NormalizeRetryBackoff(string(cfg.Build.RetryBackoff))
		if cfg.Build.RetryBackoff == "" {
			cfg.Build.RetryBackoff = RetryBackoffLinear
		}
	}
	if cfg.Build.RetryInitialDelay == "" {
		cfg.Build.RetryInitialDelay = "1s"
	}
	if cfg.Build.RetryMaxDelay == "" {
		cfg.Build.RetryMaxDelay = "30s"
	}
}

func applyCorpusDefaults(cfg *Config) {
	if cfg.Corpus.ReferenceSuffix == "" {
		cfg.Corpus.ReferenceSuffix = "-api-ref"
	}
	if cfg.Corpus.LatestOverrides == nil {
		// These projects publish their documentation unversioned upstream.
		cfg.Corpus.LatestOverrides = []string{"ironic", "ironic-python-agent"}
	}
	if cfg.Corpus.Cleanup == "" {
		cfg.Corpus.Cleanup = CleanupVenvOnly
	} else {
		norm := NormalizeCleanupPolicy(string(cfg.Corpus.Cleanup))
		if norm != "" {
			cfg.Corpus.Cleanup = norm
		}
	}
}

func applyPatchDefaults(cfg *Config) {
	if cfg.Patches != nil {
		return
	}
	cfg.Patches = []PatchConfig{
		// designate's conf.py pulls in an SVG converter extension that is not
		// installed in the build environment.
		{
			Project: "designate",
			Action:  PatchStripExtension,
			File:    "doc/source/conf.py",
			Value:   "sphinxcontrib.rsvgconverter",
		},
		// horizon's generated contributor API docs loop during the text build.
		{
			Project: "horizon",
			Action:  PatchRemoveSubtree,
			Path:    "doc/source/contributor/api",
		},
	}
}

func applyFetcherDefaults(cfg *Config) {
	pd := &cfg.Fetchers.ProductDocs
	if pd.Ref == "" {
		pd.Ref = "main"
	}
	if pd.Version == "" {
		pd.Version = "18.0"
	}
	if pd.Dir == "" {
		pd.Dir = "rhoso"
	}
	if pd.ExcludeTitles == nil {
		pd.ExcludeTitles = defaultExcludeTitles
	}
	if pd.RemapTitles == nil {
		pd.RemapTitles = defaultRemapTitles
	}
	if len(pd.ConvertCommand) == 0 {
		pd.ConvertCommand = []string{"asciidoctor", "--backend", "text", "--out-file", "{out}", "{in}"}
	}

	rn := &cfg.Fetchers.ReleaseNotes
	if rn.Ref == "" {
		rn.Ref = "main"
	}
	if rn.Version == "" {
		rn.Version = pd.Version
	}
	if rn.Dir == "" {
		rn.Dir = pd.Dir
	}
	if len(rn.ConvertCommand) == 0 {
		rn.ConvertCommand = pd.ConvertCommand
	}

	pf := &cfg.Fetchers.PlatformDocs
	if pf.Ref == "" {
		pf.Ref = "main"
	}
	if pf.Dir == "" {
		pf.Dir = "ocp"
	}
	if pf.Concurrency <= 0 {
		pf.Concurrency = 4
	}
	if len(pf.ConvertCommand) == 0 {
		pf.ConvertCommand = []string{"asciidoctor", "--backend", "text", "--destination-dir", "{out}", "{in}"}
	}
}

func applyHistoryDefaults(cfg *Config) {
	if cfg.History.Path == "" {
		cfg.History.Path = "./corpusbuilder-history.db"
	}
}

func applyEventsDefaults(cfg *Config) {
	if cfg.Events.NATSURL == "" {
		cfg.Events.NATSURL = "nats://localhost:4222"
	}
	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "corpusbuilder"
	}
}

func applyDaemonDefaults(cfg *Config) {
	if cfg.Daemon.Listen == "" {
		cfg.Daemon.Listen = ":8085"
	}
	if cfg.Daemon.RefreshInterval == "" {
		cfg.Daemon.RefreshInterval = "24h"
	}
}
