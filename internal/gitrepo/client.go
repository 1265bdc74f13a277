// Package gitrepo clones pinned refs of source repositories into private
// working directories. Clones are idempotent: an existing working copy is
// reused, never re-cloned, so repeated runs skip the network entirely.
package gitrepo

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"git.home.luguber.info/inful/corpusbuilder/internal/logfields"
	"git.home.luguber.info/inful/corpusbuilder/internal/metrics"
	"git.home.luguber.info/inful/corpusbuilder/internal/retry"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// Outcome reports how Ensure satisfied the request.
type Outcome string

const (
	OutcomeCloned Outcome = "cloned" // fresh clone was created
	OutcomeReused Outcome = "reused" // existing working copy found, no network touched
)

// CloneSpec describes one repository clone.
type CloneSpec struct {
	URL    string
	Ref    string // branch name; cloned single-branch as refs/heads/<ref>
	Dir    string // destination working copy
	Depth  int    // shallow depth; 0 means full history
	CAFile string // optional PEM bundle for TLS against private mirrors
}

// Client performs clone operations with retry on transient failures.
type Client struct {
	policy   retry.Policy
	progress *os.File // nil silences go-git progress output
	metrics  metrics.Recorder
}

// NewClient creates a clone client with the given retry policy.
func NewClient(policy retry.Policy) *Client {
	return &Client{policy: policy, metrics: metrics.NoopRecorder{}}
}

// WithProgress mirrors go-git progress output to the given file (fluent helper).
func (c *Client) WithProgress(f *os.File) *Client {
	c.progress = f
	return c
}

// WithMetrics records clone retries on the given recorder (fluent helper).
func (c *Client) WithMetrics(rec metrics.Recorder) *Client {
	if rec != nil {
		c.metrics = rec
	}
	return c
}

// Ensure makes spec.Dir hold a working copy of spec.URL at spec.Ref. An
// existing working copy is reused as-is; otherwise a fresh single-branch
// clone is made, retried per the client's policy on transient failures.
func (c *Client) Ensure(ctx context.Context, spec CloneSpec) (Outcome, error) {
	if _, err := os.Stat(filepath.Join(spec.Dir, ".git")); err == nil {
		slog.Debug("Reusing existing working copy", logfields.Path(spec.Dir), logfields.Ref(spec.Ref))
		return OutcomeReused, nil
	}

	var lastErr error
	for attempt := 0; attempt <= c.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			slog.Warn("retrying clone", logfields.URL(spec.URL), slog.Int("attempt", attempt))
			// The working copy directory is named after the project.
			c.metrics.IncCloneRetry(filepath.Base(spec.Dir))
			delay := c.policy.Delay(attempt)
			if isRateLimited(lastErr) {
				delay *= 3
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		err := c.cloneOnce(ctx, spec)
		if err == nil {
			return OutcomeCloned, nil
		}
		lastErr = err
		if isPermanentError(err) {
			slog.Error("permanent clone error", logfields.URL(spec.URL), logfields.Error(err))
			return "", err
		}
	}
	return "", fmt.Errorf("clone failed after retries: %w", lastErr)
}

func (c *Client) cloneOnce(ctx context.Context, spec CloneSpec) error {
	slog.Debug("Cloning repository", logfields.URL(spec.URL), logfields.Ref(spec.Ref), logfields.Path(spec.Dir))

	// A partial clone from a failed attempt must not shadow this one.
	if err := os.RemoveAll(spec.Dir); err != nil {
		return fmt.Errorf("failed to remove existing directory: %w", err)
	}

	opts := &git.CloneOptions{URL: spec.URL}
	if c.progress != nil {
		opts.Progress = c.progress
	}
	if spec.Ref != "" {
		opts.ReferenceName = plumbing.ReferenceName("refs/heads/" + spec.Ref)
		opts.SingleBranch = true
	}
	if spec.Depth > 0 {
		opts.Depth = spec.Depth
	}
	if spec.CAFile != "" {
		bundle, err := os.ReadFile(spec.CAFile) // #nosec G304 - path comes from operator config
		if err != nil {
			return fmt.Errorf("failed to read CA bundle %s: %w", spec.CAFile, err)
		}
		opts.CABundle = bundle
	}

	repository, err := git.PlainCloneContext(ctx, spec.Dir, false, opts)
	if err != nil {
		return classifyCloneError(spec.URL, err)
	}

	if ref, herr := repository.Head(); herr == nil {
		slog.Info("Repository cloned",
			logfields.URL(spec.URL),
			logfields.Ref(spec.Ref),
			slog.String("commit", ref.Hash().String()[:8]),
			logfields.Path(spec.Dir))
	} else {
		slog.Info("Repository cloned", logfields.URL(spec.URL), logfields.Ref(spec.Ref), logfields.Path(spec.Dir))
	}
	return nil
}
