package installcheck

import (
	"github.com/pkg/errors"

	"github.com/etnz/debcheck/deb"
)

// Candidate is the local package under evaluation.
type Candidate struct {
	Name         string
	Version      string
	Architecture string
	Description  string

	// Relations holds the parsed relationship fields, keyed by field.
	Relations map[deb.ControlField][]deb.OrGroup

	// Source is set for source packages, whose dependencies are their
	// build dependencies.
	Source bool
	// Binaries lists the packages a source package builds.
	Binaries []string
}

// FromPackage builds the candidate of a binary package.
func FromPackage(p *deb.Package) (*Candidate, error) {
	c := &Candidate{
		Name:         p.Metadata.Package,
		Version:      p.Metadata.Version,
		Architecture: p.Metadata.Architecture,
		Description:  p.Metadata.Description,
		Relations:    make(map[deb.ControlField][]deb.OrGroup),
	}
	for _, field := range []deb.ControlField{
		deb.FieldDepends, deb.FieldPreDepends, deb.FieldConflicts, deb.FieldReplaces, deb.FieldProvides,
	} {
		groups, err := p.Relations(field)
		if err != nil {
			return nil, errors.Wrapf(err, "candidate %s", c.Name)
		}
		if len(groups) > 0 {
			c.Relations[field] = groups
		}
	}
	return c, nil
}

// FromSource builds the candidate of a source package, to check its build
// dependencies on arch. Build-Depends, Build-Depends-Arch and
// Build-Depends-Indep are kept under Build-Depends, and the three
// Build-Conflicts fields under Build-Conflicts.
func FromSource(s *deb.SourcePackage, arch string) (*Candidate, error) {
	c := &Candidate{
		Name:         s.Source,
		Version:      s.Version,
		Architecture: arch,
		Description:  s.Description(),
		Relations:    make(map[deb.ControlField][]deb.OrGroup),
		Source:       true,
		Binaries:     s.Binary,
	}
	deps, err := s.BuildDependencies(arch)
	if err != nil {
		return nil, errors.Wrap(err, "build dependencies")
	}
	conflicts, err := s.BuildConflictRelations(arch)
	if err != nil {
		return nil, errors.Wrap(err, "build conflicts")
	}
	if len(deps) > 0 {
		c.Relations[deb.FieldBuildDepends] = deps
	}
	if len(conflicts) > 0 {
		c.Relations[deb.FieldBuildConflicts] = conflicts
	}
	return c, nil
}

// Depends returns the groups that must be satisfied: Depends then
// Pre-Depends, or the build dependencies of a source package.
func (c *Candidate) Depends() []deb.OrGroup {
	if c.Source {
		return c.Relations[deb.FieldBuildDepends]
	}
	var groups []deb.OrGroup
	groups = append(groups, c.Relations[deb.FieldDepends]...)
	return append(groups, c.Relations[deb.FieldPreDepends]...)
}

// Conflicts returns Conflicts, or the build conflicts of a source package.
func (c *Candidate) Conflicts() []deb.OrGroup {
	if c.Source {
		return c.Relations[deb.FieldBuildConflicts]
	}
	return c.Relations[deb.FieldConflicts]
}

// Replaces returns the Replaces field.
func (c *Candidate) Replaces() []deb.OrGroup {
	return c.Relations[deb.FieldReplaces]
}

// Provides returns the Provides field.
func (c *Candidate) Provides() []deb.OrGroup {
	return c.Relations[deb.FieldProvides]
}
