package installcheck

import (
	"fmt"
	"sort"
	"strings"

	"github.com/etnz/debcheck/version"
)

// Options configures a Checker.
type Options struct {
	// Listener receives the events of the checks. Optional.
	Listener Listener
}

// Checker decides whether a candidate can be installed in a universe and
// which packages it needs.
//
// Checks mark packages in the universe and these marks persist: checking
// several packages in sequence against the same universe sees the marks of
// the previous checks unless the universe is cleared in between.
type Checker struct {
	universe  Universe
	candidate *Candidate
	listener  Listener

	needInstall        []string
	installedConflicts map[string]bool
	failures           []string
}

// New returns a checker for candidate c in universe u.
func New(u Universe, c *Candidate, opts Options) *Checker {
	ch := &Checker{
		universe:  u,
		candidate: c,
		listener:  opts.Listener,
	}
	ch.reset()
	return ch
}

// Result is the outcome of a check.
type Result struct {
	// OK is set when the candidate is installable.
	OK bool
	// FailureReason is the human-readable reason, one line per problem.
	FailureReason string
	// NeedInstall lists the packages selected to satisfy the dependencies,
	// in selection order.
	NeedInstall []string
	// InstalledConflicts lists the packages the candidate conflicts with, sorted.
	InstalledConflicts []string
	// Err is the structured reason when OK is false.
	Err error
}

// VersionStatus compares the candidate to the version of the same package
// in the universe.
type VersionStatus int

const (
	// VersionNone means the universe has no version of the package.
	VersionNone VersionStatus = iota
	// VersionOutdated means the universe version is later.
	VersionOutdated
	// VersionSame means both versions are equal.
	VersionSame
	// VersionNewer means the candidate is later.
	VersionNewer
)

func (s VersionStatus) String() string {
	switch s {
	case VersionOutdated:
		return "outdated"
	case VersionSame:
		return "same"
	case VersionNewer:
		return "newer"
	}
	return "none"
}

// Changes are the modifications the universe marks require.
type Changes struct {
	Install []string
	Remove  []string
	// Unauthenticated lists the packages to install without a trusted origin.
	Unauthenticated []string
}

func (ch *Checker) reset() {
	ch.needInstall = nil
	ch.installedConflicts = make(map[string]bool)
	ch.failures = nil
}

func (ch *Checker) emit(e fmt.Stringer) {
	if ch.listener != nil {
		ch.listener(e)
	}
}

func (ch *Checker) addFailure(msg string) {
	ch.failures = append(ch.failures, msg)
}

func (ch *Checker) setFailure(msg string) {
	ch.failures = []string{msg}
}

// Check runs the installability check:
// architecture, version, conflicts, dependencies, conflicts again with the
// packages now marked for installation, and the broken count of the
// universe. When packages are left broken, all marks are discarded.
func (ch *Checker) Check() *Result {
	ch.reset()
	c := ch.candidate
	ch.emit(EventCheckStart{Package: c.Name, Version: c.Version, Architecture: c.Architecture})
	res := ch.check()
	ch.emitResult(res)
	return res
}

func (ch *Checker) check() *Result {
	c := ch.candidate
	if native := ch.universe.Architecture(); c.Architecture != "all" && c.Architecture != native {
		return ch.fail(&WrongArchitectureError{Architecture: c.Architecture, Native: native})
	}

	if ch.CompareToVersionInCache(true) == VersionOutdated {
		cacheVersion, _ := ch.cacheVersion(true)
		return ch.fail(&OutdatedVersionError{Package: c.Name, Version: c.Version, CacheVersion: cacheVersion})
	}

	if !ch.CheckConflicts() {
		return ch.result(ch.conflictError())
	}
	if err := ch.satisfyDepends(c.Depends()); err != nil {
		return ch.result(err)
	}
	// newly marked packages may conflict too
	if !ch.CheckConflicts() {
		return ch.result(ch.conflictError())
	}

	if n := ch.universe.BrokenCount(); n > 0 {
		err := &BrokenCacheError{Count: n}
		ch.setFailure(err.Error())
		ch.universe.Clear()
		return ch.result(err)
	}
	return ch.result(nil)
}

// fail records err as the only failure.
func (ch *Checker) fail(err error) *Result {
	ch.setFailure(err.Error())
	return ch.result(err)
}

func (ch *Checker) result(err error) *Result {
	return &Result{
		OK:                 err == nil,
		FailureReason:      ch.FailureReason(),
		NeedInstall:        ch.MissingDeps(),
		InstalledConflicts: ch.InstalledConflicts(),
		Err:                err,
	}
}

func (ch *Checker) emitResult(res *Result) {
	ch.emit(EventCheckResult{
		Package:     ch.candidate.Name,
		OK:          res.OK,
		Reason:      res.FailureReason,
		NeedInstall: res.NeedInstall,
		Conflicts:   res.InstalledConflicts,
	})
}

// FailureReason returns the reasons recorded by the last operation, one
// per line.
func (ch *Checker) FailureReason() string {
	return strings.Join(ch.failures, "\n")
}

// MissingDeps returns the packages selected to satisfy the dependencies,
// in selection order.
func (ch *Checker) MissingDeps() []string {
	return append([]string(nil), ch.needInstall...)
}

// InstalledConflicts returns the packages found conflicting, sorted.
func (ch *Checker) InstalledConflicts() []string {
	names := make([]string, 0, len(ch.installedConflicts))
	for name := range ch.installedConflicts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (ch *Checker) conflictError() error {
	return &ConflictError{Packages: ch.InstalledConflicts()}
}

// CompareToVersionInCache compares the candidate version with the version
// of the same package in the universe: the installed one when useInstalled
// is set and there is one, the candidate one otherwise.
func (ch *Checker) CompareToVersionInCache(useInstalled bool) VersionStatus {
	v, ok := ch.cacheVersion(useInstalled)
	if !ok {
		return VersionNone
	}
	switch cmp := version.Compare(v, ch.candidate.Version); {
	case cmp == 0:
		return VersionSame
	case cmp < 0:
		return VersionNewer
	}
	return VersionOutdated
}

func (ch *Checker) cacheVersion(useInstalled bool) (string, bool) {
	name := ch.candidate.Name
	if !ch.universe.IsKnown(name) {
		return "", false
	}
	if useInstalled {
		if v, ok := ch.universe.InstalledVersion(name); ok {
			return v, true
		}
	}
	return ch.universe.CandidateVersion(name)
}

// RequiredChanges lists the changes currently marked in the universe.
func (ch *Checker) RequiredChanges() Changes {
	install, remove := ch.universe.Changes()
	changes := Changes{Install: install, Remove: remove}
	for _, name := range install {
		if !ch.universe.IsTrusted(name) {
			changes.Unauthenticated = append(changes.Unauthenticated, name)
		}
	}
	return changes
}
