package installcheck

import (
	"github.com/pkg/errors"

	"github.com/etnz/debcheck/deb"
)

// SatisfyDependsString parses a Depends field value and satisfies it like
// the dependencies of the candidate. Selected packages add to those of
// previous calls. It returns whether the dependencies can be satisfied, and
// an error when the field is malformed.
func (ch *Checker) SatisfyDependsString(depends string) (bool, error) {
	groups, err := deb.ParseDepends(depends)
	if err != nil {
		return false, errors.Wrap(err, "parsing dependencies")
	}
	return ch.satisfyDepends(groups) == nil, nil
}

// satisfyDepends selects a package for every or-group not yet satisfied,
// then marks the selected packages for installation. It stops at the first
// group that cannot be satisfied.
func (ch *Checker) satisfyDepends(groups []deb.OrGroup) error {
	for _, g := range groups {
		if ch.isOrGroupSatisfied(g) {
			ch.emit(EventGroupSatisfied{Group: g.String()})
			continue
		}
		if err := ch.satisfyOrGroup(g); err != nil {
			return err
		}
	}

	for _, name := range ch.needInstall {
		if err := ch.universe.MarkInstall(name, true); err != nil {
			cerr := &CannotInstallError{Package: name, Err: err}
			ch.setFailure(cerr.Error())
			return cerr
		}
	}
	return nil
}

// isOrGroupSatisfied reports whether an installed package satisfies an
// alternative of g. A virtual alternative is satisfied by any installed
// provider, whatever the relation. Unknown names are skipped.
func (ch *Checker) isOrGroupSatisfied(g deb.OrGroup) bool {
	u := ch.universe
	for _, d := range g {
		if !u.IsKnown(d.Name) {
			if u.IsVirtual(d.Name) {
				for _, p := range u.ProvidersOf(d.Name) {
					if _, ok := u.InstalledVersion(p); ok {
						return true
					}
				}
			}
			continue
		}
		if v, ok := u.InstalledVersion(d.Name); ok && d.SatisfiedBy(v) {
			return true
		}
	}
	return false
}

// satisfyOrGroup selects the first alternative of g whose candidate
// satisfies the relation. A virtual alternative is only considered when a
// single package provides it, and the relation then applies to the
// provider's candidate.
func (ch *Checker) satisfyOrGroup(g deb.OrGroup) error {
	u := ch.universe
	var ambiguous []string
	for _, d := range g {
		name := d.Name
		if !u.IsKnown(name) {
			if !u.IsVirtual(name) {
				continue
			}
			providers := u.ProvidersOf(name)
			if len(providers) != 1 {
				ambiguous = append(ambiguous, name)
				ch.emit(EventAmbiguousProvider{Name: name, Providers: providers})
				continue
			}
			name = providers[0]
		}

		cand, ok := u.CandidateVersion(name)
		if !ok || !d.SatisfiedBy(cand) {
			continue
		}
		ch.need(name)
		ch.emit(EventNeedInstall{Package: name, Version: cand, Group: g.String()})
		return nil
	}

	err := &UnsatisfiableDependencyError{Group: g, Ambiguous: ambiguous}
	ch.addFailure(err.Error())
	return err
}

func (ch *Checker) need(name string) {
	for _, n := range ch.needInstall {
		if n == name {
			return
		}
	}
	ch.needInstall = append(ch.needInstall, name)
}
