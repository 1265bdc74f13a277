// Package versionutil compares dotted version strings numerically, so that
// "4.9" sorts before "4.16" where plain string ordering would not.
package versionutil

import (
	"sort"
	"strconv"
	"strings"
)

// Compare returns -1, 0, or 1 ordering a relative to b. Segments are split
// on dots; numeric segments compare numerically, anything else compares as a
// string. A missing segment sorts before any present segment.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")

	for i := 0; i < len(as) || i < len(bs); i++ {
		if i >= len(as) {
			return -1
		}
		if i >= len(bs) {
			return 1
		}
		if c := compareSegment(as[i], bs[i]); c != 0 {
			return c
		}
	}
	return 0
}

func compareSegment(a, b string) int {
	an, aerr := strconv.Atoi(a)
	bn, berr := strconv.Atoi(b)

	switch {
	case aerr == nil && berr == nil:
		switch {
		case an < bn:
			return -1
		case an > bn:
			return 1
		default:
			return 0
		}
	case aerr == nil:
		// Numeric sorts before non-numeric ("4.16" before "4.x").
		return -1
	case berr == nil:
		return 1
	default:
		return strings.Compare(a, b)
	}
}

// Sort orders versions ascending in place.
func Sort(versions []string) {
	sort.Slice(versions, func(i, j int) bool {
		return Compare(versions[i], versions[j]) < 0
	})
}

// Equal reports whether two version strings denote the same version,
// tolerating trailing zero segments ("18.0" equals "18").
func Equal(a, b string) bool {
	if Compare(a, b) == 0 {
		return true
	}
	return Compare(trimZeros(a), trimZeros(b)) == 0
}

func trimZeros(v string) string {
	segs := strings.Split(v, ".")
	for len(segs) > 1 {
		last := segs[len(segs)-1]
		if n, err := strconv.Atoi(last); err != nil || n != 0 {
			break
		}
		segs = segs[:len(segs)-1]
	}
	return strings.Join(segs, ".")
}
