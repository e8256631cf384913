// Package version implements Debian version ordering and the relational
// operators used in package relationship fields.
//
// A Debian version has the form [epoch:]upstream_version[-debian_revision].
// Comparison follows dpkg: epochs are compared numerically, then the upstream
// version, then the revision, each using the alternating non-digit/digit run
// algorithm where '~' sorts before everything, even the end of the string.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#version
package version

import (
	"fmt"
	"strings"
)

// Version is a parsed Debian version.
type Version struct {
	// Epoch is the optional numeric prefix, empty when absent (equivalent to "0").
	Epoch string
	// Upstream is the main part of the version.
	Upstream string
	// Revision is the Debian revision, empty when absent.
	Revision string
}

// Parse splits a version string into its components and validates it against
// the syntax allowed by Debian policy.
func Parse(s string) (Version, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Version{}, fmt.Errorf("empty version string")
	}
	v := split(s)
	for _, c := range v.Epoch {
		if c < '0' || c > '9' {
			return Version{}, fmt.Errorf("epoch in version %q is not a number", s)
		}
	}
	if v.Upstream == "" {
		return Version{}, fmt.Errorf("version %q has an empty upstream part", s)
	}
	if !isDigit(v.Upstream[0]) {
		return Version{}, fmt.Errorf("upstream version in %q must start with a digit", s)
	}
	for i := 0; i < len(v.Upstream); i++ {
		c := v.Upstream[i]
		if !isAlnum(c) && !strings.ContainsRune(".+-~:", rune(c)) {
			return Version{}, fmt.Errorf("invalid character %q in upstream version %q", c, s)
		}
	}
	for i := 0; i < len(v.Revision); i++ {
		c := v.Revision[i]
		if !isAlnum(c) && !strings.ContainsRune(".+~", rune(c)) {
			return Version{}, fmt.Errorf("invalid character %q in revision of %q", c, s)
		}
	}
	return v, nil
}

// MustParse is like Parse but panics on error. It is meant for constants and tests.
func MustParse(s string) Version {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

// String reassembles the version.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != "" {
		b.WriteString(v.Epoch)
		b.WriteByte(':')
	}
	b.WriteString(v.Upstream)
	if v.Revision != "" {
		b.WriteByte('-')
		b.WriteString(v.Revision)
	}
	return b.String()
}

// Compare returns -1, 0 or 1 when v is older than, equal to or newer than o.
func (v Version) Compare(o Version) int {
	if c := verrevcmp(v.Epoch, o.Epoch); c != 0 {
		return sign(c)
	}
	if c := verrevcmp(v.Upstream, o.Upstream); c != 0 {
		return sign(c)
	}
	return sign(verrevcmp(v.Revision, o.Revision))
}

// Compare orders two version strings. It never fails: strings that do not
// parse as Debian versions are split on a best-effort basis and compared
// with the same run algorithm.
func Compare(a, b string) int {
	return split(strings.TrimSpace(a)).Compare(split(strings.TrimSpace(b)))
}

// split extracts epoch, upstream and revision without validating them.
// A non numeric epoch is kept in the upstream part.
func split(s string) Version {
	var v Version
	if i := strings.IndexByte(s, ':'); i >= 0 && allDigits(s[:i]) {
		v.Epoch = s[:i]
		s = s[i+1:]
	}
	if i := strings.LastIndexByte(s, '-'); i >= 0 {
		v.Revision = s[i+1:]
		s = s[:i]
	}
	v.Upstream = s
	return v
}

// order gives the weight of a character in a non-digit run.
func order(c byte) int {
	switch {
	case isDigit(c):
		return 0
	case isAlpha(c):
		return int(c)
	case c == '~':
		return -1
	default:
		return int(c) + 256
	}
}

// verrevcmp is the dpkg comparison of one version component.
func verrevcmp(a, b string) int {
	i, j := 0, 0
	for i < len(a) || j < len(b) {
		firstDiff := 0
		for (i < len(a) && !isDigit(a[i])) || (j < len(b) && !isDigit(b[j])) {
			ac, bc := 0, 0
			if i < len(a) {
				ac = order(a[i])
			}
			if j < len(b) {
				bc = order(b[j])
			}
			if ac != bc {
				return ac - bc
			}
			i++
			j++
		}
		for i < len(a) && a[i] == '0' {
			i++
		}
		for j < len(b) && b[j] == '0' {
			j++
		}
		for i < len(a) && isDigit(a[i]) && j < len(b) && isDigit(b[j]) {
			if firstDiff == 0 {
				firstDiff = int(a[i]) - int(b[j])
			}
			i++
			j++
		}
		if i < len(a) && isDigit(a[i]) {
			return 1
		}
		if j < len(b) && isDigit(b[j]) {
			return -1
		}
		if firstDiff != 0 {
			return firstDiff
		}
	}
	return 0
}

func sign(c int) int {
	switch {
	case c < 0:
		return -1
	case c > 0:
		return 1
	}
	return 0
}

func allDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return false
		}
	}
	return true
}

func isDigit(c byte) bool { return c >= '0' && c <= '9' }
func isAlpha(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isAlnum(c byte) bool { return isDigit(c) || isAlpha(c) }
