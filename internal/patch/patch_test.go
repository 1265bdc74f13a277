package patch

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
)

func TestStripExtensionRemovesOnlyMatchingLines(t *testing.T) {
	repo := t.TempDir()
	confDir := filepath.Join(repo, "doc", "source")
	if err := os.MkdirAll(confDir, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	conf := filepath.Join(confDir, "conf.py")
	content := strings.Join([]string{
		"extensions = [",
		"    'openstackdocstheme',",
		"    'sphinxcontrib.rsvgconverter',",
		"    'sphinx.ext.autodoc',",
		"]",
	}, "\n")
	if err := os.WriteFile(conf, []byte(content), 0o640); err != nil {
		t.Fatalf("write conf.py: %v", err)
	}

	action := StripExtension{File: "doc/source/conf.py", Extension: "sphinxcontrib.rsvgconverter"}
	if err := action.Apply(repo); err != nil {
		t.Fatalf("apply: %v", err)
	}

	got, err := os.ReadFile(conf)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if strings.Contains(string(got), "rsvgconverter") {
		t.Fatalf("extension reference survived:\n%s", got)
	}
	for _, keep := range []string{"openstackdocstheme", "sphinx.ext.autodoc", "extensions = ["} {
		if !strings.Contains(string(got), keep) {
			t.Errorf("line %q was removed", keep)
		}
	}
}

func TestStripExtensionIdempotent(t *testing.T) {
	repo := t.TempDir()
	conf := filepath.Join(repo, "conf.py")
	if err := os.WriteFile(conf, []byte("extensions = []\n"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	action := StripExtension{File: "conf.py", Extension: "sphinxcontrib.rsvgconverter"}
	if err := action.Apply(repo); err != nil {
		t.Fatalf("first apply: %v", err)
	}
	if err := action.Apply(repo); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestStripExtensionMissingFileFails(t *testing.T) {
	action := StripExtension{File: "doc/source/conf.py", Extension: "x"}
	if err := action.Apply(t.TempDir()); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestRemoveSubtree(t *testing.T) {
	repo := t.TempDir()
	target := filepath.Join(repo, "doc", "source", "contributor", "api")
	if err := os.MkdirAll(target, 0o750); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, "modules.rst"), []byte("x"), 0o640); err != nil {
		t.Fatalf("write: %v", err)
	}

	action := RemoveSubtree{Path: "doc/source/contributor/api"}
	if err := action.Apply(repo); err != nil {
		t.Fatalf("apply: %v", err)
	}
	if _, err := os.Stat(target); !os.IsNotExist(err) {
		t.Fatal("subtree still present")
	}
	// Parent must survive.
	if _, err := os.Stat(filepath.Join(repo, "doc", "source", "contributor")); err != nil {
		t.Fatalf("parent removed: %v", err)
	}
	// Re-applying on a missing subtree is a no-op.
	if err := action.Apply(repo); err != nil {
		t.Fatalf("second apply: %v", err)
	}
}

func TestActionsRejectEscapingPaths(t *testing.T) {
	repo := t.TempDir()
	if err := (RemoveSubtree{Path: "../outside"}).Apply(repo); err == nil {
		t.Fatal("expected traversal rejection for remove-subtree")
	}
	if err := (StripExtension{File: "../../etc/passwd", Extension: "x"}).Apply(repo); err == nil {
		t.Fatal("expected traversal rejection for strip-extension")
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register("horizon", RemoveSubtree{Path: "doc/source/contributor/api"})

	if _, ok := r.Lookup("nova"); ok {
		t.Fatal("unregistered project must have no action")
	}
	a, ok := r.Lookup("horizon")
	if !ok {
		t.Fatal("registered action missing")
	}
	if !strings.Contains(a.Name(), "remove-subtree") {
		t.Fatalf("unexpected action: %s", a.Name())
	}
}

func TestFromConfig(t *testing.T) {
	r, err := FromConfig([]config.PatchConfig{
		{Project: "designate", Action: config.PatchStripExtension, File: "doc/source/conf.py", Value: "sphinxcontrib.rsvgconverter"},
		{Project: "horizon", Action: config.PatchRemoveSubtree, Path: "doc/source/contributor/api"},
	})
	if err != nil {
		t.Fatalf("from config: %v", err)
	}
	if _, ok := r.Lookup("designate"); !ok {
		t.Fatal("designate patch missing")
	}
	if _, ok := r.Lookup("horizon"); !ok {
		t.Fatal("horizon patch missing")
	}

	if _, err := FromConfig([]config.PatchConfig{{Project: "x", Action: "rewrite-history"}}); err == nil {
		t.Fatal("expected error for unknown action")
	}
}
