package catalog

import (
	"testing"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
)

func TestBranchRef(t *testing.T) {
	if got := BranchRef("master"); got != "master" {
		t.Fatalf("master must bypass the prefix, got %s", got)
	}
	if got := BranchRef("2025.1"); got != "stable/2025.1" {
		t.Fatalf("expected stable/2025.1, got %s", got)
	}
}

func TestResolveLabelOverrides(t *testing.T) {
	overrides := []string{"ironic", "ironic-python-agent"}

	for _, version := range []string{"2024.2", "2025.1", "master"} {
		if got := ResolveLabel("ironic", version, overrides); got != "latest" {
			t.Fatalf("override project must label latest for version %s, got %s", version, got)
		}
		if got := ResolveLabel("nova", version, overrides); got != version {
			t.Fatalf("non-override project must label %s, got %s", version, got)
		}
	}
}

func TestBuildPreservesConfigurationOrder(t *testing.T) {
	var cfg config.Config
	config.ApplyDefaults(&cfg)
	cfg.Version = "2025.1"
	cfg.Build.APIRef = true
	cfg.Projects = []config.ProjectConfig{
		{Name: "nova"},
		{Name: "ironic"},
		{Name: "os-brick", LibraryOnly: true},
	}

	tasks := Build(&cfg)
	if len(tasks) != 3 {
		t.Fatalf("expected 3 tasks, got %d", len(tasks))
	}

	for i, want := range []string{"nova", "ironic", "os-brick"} {
		if tasks[i].Index != i || tasks[i].Project != want {
			t.Fatalf("task %d: got index=%d project=%s, want %s", i, tasks[i].Index, tasks[i].Project, want)
		}
	}

	nova := tasks[0]
	if nova.Ref != "stable/2025.1" || nova.Label != "2025.1" {
		t.Fatalf("nova: ref=%s label=%s", nova.Ref, nova.Label)
	}
	if nova.ReferenceLabel != "2025.1-api-ref" {
		t.Fatalf("nova reference label: %s", nova.ReferenceLabel)
	}
	if nova.URL != "https://opendev.org/openstack/nova" {
		t.Fatalf("nova url: %s", nova.URL)
	}
	if !nova.APIRef {
		t.Fatal("nova should carry the reference build flag")
	}

	ironic := tasks[1]
	if ironic.Label != "latest" || ironic.ReferenceLabel != "latest-api-ref" {
		t.Fatalf("ironic labels: %s / %s", ironic.Label, ironic.ReferenceLabel)
	}
	if ironic.Ref != "stable/2025.1" {
		t.Fatalf("override only changes the label, not the ref: %s", ironic.Ref)
	}

	if !tasks[2].LibraryOnly {
		t.Fatal("os-brick should be library-only")
	}
}
