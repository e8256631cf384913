package installcheck

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"

	"github.com/etnz/debcheck/deb"
)

// Kind classifies why a package is not installable.
type Kind int

const (
	KindNone Kind = iota
	KindWrongArchitecture
	KindOutdatedVersion
	KindConflict
	KindUnsatisfiableDependency
	KindCannotInstall
	KindBrokenCache
	KindEssentialRemoval
	// KindOther is any other error, e.g. a malformed relationship field.
	KindOther
)

var kindNames = map[Kind]string{
	KindNone:                    "none",
	KindWrongArchitecture:       "wrong-architecture",
	KindOutdatedVersion:         "outdated-version",
	KindConflict:                "conflict",
	KindUnsatisfiableDependency: "unsatisfiable-dependency",
	KindCannotInstall:           "cannot-install",
	KindBrokenCache:             "broken-cache",
	KindEssentialRemoval:        "essential-removal",
	KindOther:                   "other",
}

func (k Kind) String() string { return kindNames[k] }

// Reason returns the kind of a check error, looking through wrapping.
func Reason(err error) Kind {
	if err == nil {
		return KindNone
	}
	switch errors.Cause(err).(type) {
	case *WrongArchitectureError:
		return KindWrongArchitecture
	case *OutdatedVersionError:
		return KindOutdatedVersion
	case *ConflictError:
		return KindConflict
	case *UnsatisfiableDependencyError:
		return KindUnsatisfiableDependency
	case *CannotInstallError:
		return KindCannotInstall
	case *BrokenCacheError:
		return KindBrokenCache
	case *EssentialRemovalError:
		return KindEssentialRemoval
	}
	return KindOther
}

// WrongArchitectureError is returned for a package built for neither "all"
// nor the native architecture.
type WrongArchitectureError struct {
	Architecture string
	Native       string
}

func (e *WrongArchitectureError) Error() string {
	return fmt.Sprintf("Wrong architecture '%s'", e.Architecture)
}

// OutdatedVersionError is returned when the universe already has a later
// version of the package.
type OutdatedVersionError struct {
	Package      string
	Version      string
	CacheVersion string
}

func (e *OutdatedVersionError) Error() string {
	return "A later version is already installed"
}

// ConflictError lists the installed or to-be-installed packages the
// candidate conflicts with.
type ConflictError struct {
	Packages []string
}

func (e *ConflictError) Error() string {
	msgs := make([]string, len(e.Packages))
	for i, p := range e.Packages {
		msgs[i] = conflictMessage(p)
	}
	return strings.Join(msgs, "\n")
}

func conflictMessage(name string) string {
	return fmt.Sprintf("Conflicts with the installed package '%s'", name)
}

// UnsatisfiableDependencyError is returned when no alternative of an
// or-group can be installed. Ambiguous lists the virtual alternatives that
// were skipped because several packages provide them.
type UnsatisfiableDependencyError struct {
	Group     deb.OrGroup
	Ambiguous []string
}

func (e *UnsatisfiableDependencyError) Error() string {
	return "Dependency is not satisfiable: " + e.Group.Names()
}

// CannotInstallError is returned when the universe rejects an install mark.
type CannotInstallError struct {
	Package string
	Err     error
}

func (e *CannotInstallError) Error() string {
	return fmt.Sprintf("Cannot install '%s'", e.Package)
}

// Unwrap returns the error of the universe.
func (e *CannotInstallError) Unwrap() error { return e.Err }

// BrokenCacheError is returned when the planned changes leave broken
// packages. The marks are discarded.
type BrokenCacheError struct {
	Count int
}

func (e *BrokenCacheError) Error() string {
	return "Failed to satisfy all dependencies (broken cache)"
}

// EssentialRemovalError is returned when satisfying build conflicts would
// remove an essential package.
type EssentialRemovalError struct {
	Package string
}

func (e *EssentialRemovalError) Error() string {
	return "An essential package would be removed"
}
