package installcheck

import (
	"github.com/pkg/errors"
)

// CheckSource checks whether the build dependencies of the candidate can
// be installed. Packages matching a build conflict are marked for removal
// first, unless one of them is essential.
func (ch *Checker) CheckSource() *Result {
	ch.reset()
	c := ch.candidate
	ch.emit(EventCheckStart{Package: c.Name, Version: c.Version, Architecture: c.Architecture, Source: c.Source})
	res := ch.checkSource()
	ch.emitResult(res)
	return res
}

func (ch *Checker) checkSource() *Result {
	if !ch.CheckConflicts() {
		conflicts := ch.InstalledConflicts()
		for _, name := range conflicts {
			if ch.universe.IsEssential(name) {
				return ch.fail(&EssentialRemovalError{Package: name})
			}
		}
		for _, name := range conflicts {
			if err := ch.universe.MarkDelete(name); err != nil {
				return ch.fail(errors.Wrapf(err, "cannot remove %s", name))
			}
			ch.emit(EventMarkDelete{Package: name})
		}
		// the conflicts are resolved by the removals
		ch.failures = nil
	}
	if err := ch.satisfyDepends(ch.candidate.Depends()); err != nil {
		return ch.result(err)
	}
	return ch.result(nil)
}
