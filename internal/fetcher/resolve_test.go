package fetcher

import (
	"errors"
	"testing"
)

func TestResolveLatest(t *testing.T) {
	got, err := ResolveLatest([]string{"4.16", "4.18", "4.21"}, []string{"4.16", "4.18"})
	if err != nil {
		t.Fatal(err)
	}
	if got != "4.21" {
		t.Fatalf("got %s, want 4.21", got)
	}
}

func TestResolveLatestAllExcluded(t *testing.T) {
	_, err := ResolveLatest([]string{"4.16", "4.18"}, []string{"4.16", "4.18"})
	var noCandidate *NoCandidateError
	if !errors.As(err, &noCandidate) {
		t.Fatalf("expected NoCandidateError, got %v", err)
	}
}

func TestResolveLatestNumericOrdering(t *testing.T) {
	// String ordering would put 4.9 after 4.16.
	got, err := ResolveLatest([]string{"4.9", "4.16"}, nil)
	if err != nil {
		t.Fatal(err)
	}
	if got != "4.16" {
		t.Fatalf("got %s, want 4.16", got)
	}
}

func TestResolveLatestDeterministicAcrossInputOrder(t *testing.T) {
	a, _ := ResolveLatest([]string{"4.21", "4.16", "4.18"}, nil)
	b, _ := ResolveLatest([]string{"4.16", "4.18", "4.21"}, nil)
	if a != b || a != "4.21" {
		t.Fatalf("resolution must not depend on input order: %s vs %s", a, b)
	}
}
