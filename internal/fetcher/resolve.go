package fetcher

import (
	"fmt"
	"strings"

	"git.home.luguber.info/inful/corpusbuilder/internal/versionutil"
)

// NoCandidateError reports that every available version was excluded while
// resolving a "latest" alias. Fatal to the fetcher.
type NoCandidateError struct {
	Candidates []string
	Excluded   []string
}

func (e *NoCandidateError) Error() string {
	return fmt.Sprintf("no candidate version remains: candidates [%s], excluded [%s]",
		strings.Join(e.Candidates, " "), strings.Join(e.Excluded, " "))
}

// ResolveLatest returns the numerically greatest candidate version that is
// not excluded. Deterministic for any input order.
func ResolveLatest(candidates, excluded []string) (string, error) {
	skip := make(map[string]bool, len(excluded))
	for _, v := range excluded {
		skip[v] = true
	}

	best := ""
	for _, c := range candidates {
		if skip[c] {
			continue
		}
		if best == "" || versionutil.Compare(c, best) > 0 {
			best = c
		}
	}
	if best == "" {
		return "", &NoCandidateError{Candidates: candidates, Excluded: excluded}
	}
	return best, nil
}
