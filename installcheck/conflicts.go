package installcheck

import (
	"github.com/etnz/debcheck/deb"
)

// CheckConflicts checks the candidate's conflicts against the installed
// packages and those marked for installation. It returns true when there
// is no conflict; the conflicting packages are in InstalledConflicts.
func (ch *Checker) CheckConflicts() bool {
	for _, g := range ch.candidate.Conflicts() {
		ch.checkConflictsOrGroup(g)
	}
	return len(ch.installedConflicts) == 0
}

func (ch *Checker) checkConflictsOrGroup(g deb.OrGroup) {
	u := ch.universe
	for _, d := range g {
		if !u.IsKnown(d.Name) {
			if !u.IsVirtual(d.Name) {
				continue
			}
			for _, p := range u.ProvidersOf(d.Name) {
				// Provides, Conflicts and Replaces on the same virtual name
				if p == ch.candidate.Name {
					continue
				}
				if ch.checkSinglePkgConflict(p, d) {
					ch.installedConflicts[p] = true
				}
			}
			continue
		}
		if ch.checkSinglePkgConflict(d.Name, d) {
			ch.installedConflicts[d.Name] = true
		}
	}
}

// checkSinglePkgConflict reports whether the package name, installed or
// marked for installation, matches the conflict d and is not replaced by
// the candidate.
func (ch *Checker) checkSinglePkgConflict(name string, d deb.Dependency) bool {
	pkgver, ok := ch.comparisonVersion(name)
	if !ok || !d.SatisfiedBy(pkgver) {
		return false
	}
	if ch.replacesRealPkg(name, pkgver) {
		ch.emit(EventReplaces{Package: name, Version: pkgver})
		return false
	}
	ch.addFailure(conflictMessage(name))
	ch.emit(EventConflict{Package: name, Version: pkgver, Rule: d.String()})
	return true
}

// comparisonVersion is the installed version of name, or its candidate
// when it is only marked for installation.
func (ch *Checker) comparisonVersion(name string) (string, bool) {
	if v, ok := ch.universe.InstalledVersion(name); ok {
		return v, true
	}
	if ch.universe.IsMarkedInstall(name) {
		return ch.universe.CandidateVersion(name)
	}
	return "", false
}

// replacesRealPkg reports whether a Replaces entry of the candidate names
// the package and its own relation holds for pkgver. The relation of the
// conflict itself is not involved.
func (ch *Checker) replacesRealPkg(name, pkgver string) bool {
	for _, g := range ch.candidate.Replaces() {
		for _, r := range g {
			if r.Name == name && r.SatisfiedBy(pkgver) {
				return true
			}
		}
	}
	return false
}
