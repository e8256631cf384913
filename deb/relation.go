package deb

import (
	"fmt"
	"strings"

	"github.com/etnz/debcheck/version"
)

// Dependency is a single alternative of a relationship field,
// e.g. "libc6 (>= 2.36)".
//
// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#syntax-of-relationship-fields
type Dependency struct {
	// Name is the package name, without any architecture qualifier.
	Name string
	// Arch is the architecture qualifier ("any", "native", "amd64"), if any.
	Arch string
	// Relation is the version operator, RelationNone when the version is unrestricted.
	Relation version.Relation
	// Version is the version the relation applies to.
	Version string
}

// String renders the dependency the way it appears in a control file.
func (d Dependency) String() string {
	name := d.Name
	if d.Arch != "" {
		name += ":" + d.Arch
	}
	if d.Relation == version.RelationNone {
		return name
	}
	return fmt.Sprintf("%s (%s %s)", name, d.Relation, d.Version)
}

// SatisfiedBy reports whether a package version satisfies the dependency's
// version restriction. The name is not checked.
func (d Dependency) SatisfiedBy(v string) bool {
	return version.CheckDep(v, d.Relation, d.Version)
}

// OrGroup is a list of alternatives ("a | b | c"); satisfying any one of them
// satisfies the group. The order is significant: earlier alternatives are
// preferred.
type OrGroup []Dependency

// String renders the group the way it appears in a control file.
func (g OrGroup) String() string {
	parts := make([]string, len(g))
	for i, d := range g {
		parts[i] = d.String()
	}
	return strings.Join(parts, " | ")
}

// Names returns the alternative names joined by "|".
func (g OrGroup) Names() string {
	parts := make([]string, len(g))
	for i, d := range g {
		parts[i] = d.Name
	}
	return strings.Join(parts, "|")
}

// FormatRelations renders a list of or-groups as a comma separated field value.
func FormatRelations(groups []OrGroup) string {
	parts := make([]string, len(groups))
	for i, g := range groups {
		parts[i] = g.String()
	}
	return strings.Join(parts, ", ")
}

// ParseDepends parses a binary package relationship field such as Depends,
// Conflicts or Provides. Architecture restriction lists and build profiles
// are accepted and ignored. The ":any" and ":native" qualifiers are kept in
// Dependency.Arch.
func ParseDepends(s string) ([]OrGroup, error) {
	return parseRelations(s, "")
}

// ParseSrcDepends parses a source package relationship field such as
// Build-Depends. Alternatives whose architecture restriction list excludes
// arch are dropped, as are groups left empty.
func ParseSrcDepends(s, arch string) ([]OrGroup, error) {
	if arch == "" {
		return nil, fmt.Errorf("an architecture is required to evaluate restriction lists")
	}
	return parseRelations(s, arch)
}

func parseRelations(s, arch string) ([]OrGroup, error) {
	var groups []OrGroup
	for _, rawGroup := range splitList(s) {
		var group OrGroup
		for _, alt := range strings.Split(rawGroup, "|") {
			dep, archs, err := parseDependency(alt)
			if err != nil {
				return nil, fmt.Errorf("parsing %q: %w", rawGroup, err)
			}
			if arch != "" && !archAllowed(archs, arch) {
				continue
			}
			group = append(group, dep)
		}
		if len(group) > 0 {
			groups = append(groups, group)
		}
	}
	return groups, nil
}

// parseDependency parses "name[:arch] [(op version)] [[arch ...]] [<profile>...]".
func parseDependency(s string) (Dependency, []string, error) {
	var d Dependency
	s = strings.TrimSpace(s)

	// Build profiles are irrelevant for installability.
	start := 0
	if j := strings.LastIndexByte(s, ')'); j >= 0 {
		start = j + 1
	}
	if i := strings.IndexByte(s[start:], '<'); i >= 0 {
		s = strings.TrimSpace(s[:start+i])
	}

	var archs []string
	if i := strings.IndexByte(s, '['); i >= 0 {
		j := strings.IndexByte(s[i:], ']')
		if j < 0 {
			return d, nil, fmt.Errorf("unterminated architecture list")
		}
		archs = strings.Fields(s[i+1 : i+j])
		s = strings.TrimSpace(s[:i] + s[i+j+1:])
	}

	name := s
	if i := strings.IndexByte(s, '('); i >= 0 {
		j := strings.IndexByte(s, ')')
		if j < i {
			return d, nil, fmt.Errorf("unterminated version restriction")
		}
		name = strings.TrimSpace(s[:i])
		rel := strings.TrimSpace(s[i+1 : j])
		op := strings.TrimRight(rel, "0123456789abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ.+-~: \t\n")
		op = strings.TrimSpace(op)
		ver := strings.TrimSpace(strings.TrimPrefix(rel, op))
		if op == "" || ver == "" {
			return d, nil, fmt.Errorf("malformed version restriction %q", rel)
		}
		r, err := version.ParseRelation(op)
		if err != nil {
			return d, nil, err
		}
		d.Relation = r
		d.Version = ver
		if rest := strings.TrimSpace(s[j+1:]); rest != "" {
			return d, nil, fmt.Errorf("unexpected %q after version restriction", rest)
		}
	}

	if i := strings.IndexByte(name, ':'); i >= 0 {
		d.Arch = name[i+1:]
		name = name[:i]
	}
	if name == "" {
		return d, nil, fmt.Errorf("missing package name")
	}
	if strings.ContainsAny(name, " \t\n") {
		return d, nil, fmt.Errorf("invalid package name %q", name)
	}
	d.Name = name
	return d, archs, nil
}

// archAllowed evaluates a restriction list such as [amd64 i386] or [!armel].
func archAllowed(list []string, arch string) bool {
	if len(list) == 0 {
		return true
	}
	negated := strings.HasPrefix(list[0], "!")
	for _, a := range list {
		if matchArch(strings.TrimPrefix(a, "!"), arch) {
			return !negated
		}
	}
	return negated
}

// matchArch matches an architecture against a name or a wildcard such as
// "any", "linux-any" or "any-amd64".
func matchArch(pattern, arch string) bool {
	if pattern == arch || pattern == "any" {
		return true
	}
	os, cpu := "linux", arch
	if i := strings.IndexByte(arch, '-'); i >= 0 {
		os, cpu = arch[:i], arch[i+1:]
	}
	if strings.HasSuffix(pattern, "-any") {
		return strings.TrimSuffix(pattern, "-any") == os
	}
	if strings.HasPrefix(pattern, "any-") {
		return strings.TrimPrefix(pattern, "any-") == cpu
	}
	return false
}
