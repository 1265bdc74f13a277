package daemon

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/corpusbuilder/internal/config"
)

func writeConfig(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "corpusbuilder.yaml")
	content := "version: \"2025.1\"\nworkers: 2\nwork_dir: " + filepath.Join(dir, "work") +
		"\noutput_dir: " + filepath.Join(dir, "out") + "\n"
	if err := os.WriteFile(path, []byte(content), 0o640); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestReloadConfigSwapsSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	d, err := New(cfg, path, func(context.Context, *config.Config) error { return nil }, prom.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	updated := *cfg
	updated.Version = "2025.2"
	if err := d.ReloadConfig(context.Background(), &updated); err != nil {
		t.Fatal(err)
	}
	if got := d.Config().Version; got != "2025.2" {
		t.Fatalf("Config().Version = %q, want %q", got, "2025.2")
	}
}

func TestTriggerRunSkipsOverlap(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, dir)
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	var (
		mu      sync.Mutex
		calls   int
		release = make(chan struct{})
	)
	run := func(context.Context, *config.Config) error {
		mu.Lock()
		calls++
		mu.Unlock()
		<-release
		return nil
	}

	d, err := New(cfg, path, run, prom.NewRegistry())
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		d.triggerRun(context.Background())
	}()

	// Wait until the first refresh is in flight, then attempt a second.
	for i := 0; i < 100; i++ {
		if d.running.Load() {
			break
		}
		time.Sleep(time.Millisecond)
	}
	d.triggerRun(context.Background())

	close(release)
	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Fatalf("run called %d times, want 1", calls)
	}
}
