// Package semver parses and orders semantic version strings.
//
// Versions are used to rank Releases, never as identity. Ordering follows
// SemVer 2.0.0 precedence: build metadata is ignored, and a pre-release
// sorts before the corresponding release.
package semver

import (
	"fmt"
	"strconv"
	"strings"
)

// Version is a parsed semantic version.
type Version struct {
	Major      uint64
	Minor      uint64
	Patch      uint64
	PreRelease []string
	Build      []string

	original string
}

// Parse parses major.minor.patch with optional -prerelease and +build
// suffixes. A leading "v" is accepted.
func Parse(s string) (Version, error) {
	original := s
	s = strings.TrimPrefix(strings.TrimSpace(s), "v")
	if s == "" {
		return Version{}, fmt.Errorf("empty version")
	}

	var v Version
	v.original = original

	if idx := strings.IndexByte(s, '+'); idx >= 0 {
		build := s[idx+1:]
		s = s[:idx]
		ids, err := splitIdentifiers(build, false)
		if err != nil {
			return Version{}, fmt.Errorf("version %q: build metadata: %w", original, err)
		}
		v.Build = ids
	}

	if idx := strings.IndexByte(s, '-'); idx >= 0 {
		pre := s[idx+1:]
		s = s[:idx]
		ids, err := splitIdentifiers(pre, true)
		if err != nil {
			return Version{}, fmt.Errorf("version %q: pre-release: %w", original, err)
		}
		v.PreRelease = ids
	}

	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return Version{}, fmt.Errorf("version %q: expected major.minor.patch", original)
	}

	nums := make([]uint64, 3)
	for i, part := range parts {
		n, err := parseNumeric(part)
		if err != nil {
			return Version{}, fmt.Errorf("version %q: %w", original, err)
		}
		nums[i] = n
	}
	v.Major, v.Minor, v.Patch = nums[0], nums[1], nums[2]

	return v, nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// constants.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// Valid reports whether s parses as a version.
func Valid(s string) bool {
	_, err := Parse(s)
	return err == nil
}

func parseNumeric(s string) (uint64, error) {
	if s == "" {
		return 0, fmt.Errorf("empty numeric identifier")
	}
	if len(s) > 1 && s[0] == '0' {
		return 0, fmt.Errorf("numeric identifier %q has a leading zero", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, fmt.Errorf("numeric identifier %q is not a number", s)
		}
	}
	return strconv.ParseUint(s, 10, 64)
}

func splitIdentifiers(s string, numericNoLeadingZero bool) ([]string, error) {
	if s == "" {
		return nil, fmt.Errorf("empty identifier list")
	}
	ids := strings.Split(s, ".")
	for _, id := range ids {
		if id == "" {
			return nil, fmt.Errorf("empty identifier")
		}
		for _, r := range id {
			if !isIdentifierRune(r) {
				return nil, fmt.Errorf("invalid character %q in %q", r, id)
			}
		}
		if numericNoLeadingZero && isNumeric(id) && len(id) > 1 && id[0] == '0' {
			return nil, fmt.Errorf("numeric identifier %q has a leading zero", id)
		}
	}
	return ids, nil
}

func isIdentifierRune(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || r == '-'
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}

// String returns the version as originally given to Parse, or the
// canonical form for constructed values.
func (v Version) String() string {
	if v.original != "" {
		return v.original
	}
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if len(v.PreRelease) > 0 {
		s += "-" + strings.Join(v.PreRelease, ".")
	}
	if len(v.Build) > 0 {
		s += "+" + strings.Join(v.Build, ".")
	}
	return s
}

// Compare returns -1, 0 or +1 when v has lower, equal or higher
// precedence than o.
func (v Version) Compare(o Version) int {
	if c := compareUint(v.Major, o.Major); c != 0 {
		return c
	}
	if c := compareUint(v.Minor, o.Minor); c != 0 {
		return c
	}
	if c := compareUint(v.Patch, o.Patch); c != 0 {
		return c
	}
	return comparePreRelease(v.PreRelease, o.PreRelease)
}

// Less reports whether v has lower precedence than o.
func (v Version) Less(o Version) bool { return v.Compare(o) < 0 }

// GreaterThan reports whether v has strictly higher precedence than o.
func (v Version) GreaterThan(o Version) bool { return v.Compare(o) > 0 }

// Equal reports whether v and o have equal precedence.
func (v Version) Equal(o Version) bool { return v.Compare(o) == 0 }

// Compare parses both strings and compares them. Unparseable versions
// sort below every valid version; two unparseable versions compare by
// their raw strings so the order stays total.
func Compare(a, b string) int {
	va, errA := Parse(a)
	vb, errB := Parse(b)
	switch {
	case errA != nil && errB != nil:
		return strings.Compare(a, b)
	case errA != nil:
		return -1
	case errB != nil:
		return 1
	}
	return va.Compare(vb)
}

func compareUint(a, b uint64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func comparePreRelease(a, b []string) int {
	// A version without pre-release has higher precedence.
	switch {
	case len(a) == 0 && len(b) == 0:
		return 0
	case len(a) == 0:
		return 1
	case len(b) == 0:
		return -1
	}

	for i := 0; i < len(a) && i < len(b); i++ {
		if c := compareIdentifier(a[i], b[i]); c != 0 {
			return c
		}
	}
	return compareUint(uint64(len(a)), uint64(len(b)))
}

func compareIdentifier(a, b string) int {
	aNum, bNum := isNumeric(a), isNumeric(b)
	switch {
	case aNum && bNum:
		na, _ := strconv.ParseUint(a, 10, 64)
		nb, _ := strconv.ParseUint(b, 10, 64)
		return compareUint(na, nb)
	case aNum:
		return -1
	case bNum:
		return 1
	}
	return strings.Compare(a, b)
}
