package apt

import (
	"fmt"

	"github.com/etnz/debcheck/deb"
	"github.com/etnz/debcheck/version"
)

// journal records the marks an operation changed so they can be restored.
type journal struct {
	entries []*entry
	saved   []savedMark
}

type savedMark struct {
	mark mark
	auto bool
}

func (j *journal) save(e *entry) {
	j.entries = append(j.entries, e)
	j.saved = append(j.saved, savedMark{e.mark, e.auto})
}

func (j *journal) rollback() {
	for i := len(j.entries) - 1; i >= 0; i-- {
		j.entries[i].mark = j.saved[i].mark
		j.entries[i].auto = j.saved[i].auto
	}
}

// MarkInstall marks the candidate version of a package for installation.
// auto flags it as installed to satisfy a dependency rather than on request.
//
// The unmet Pre-Depends and Depends of every newly marked version are
// resolved the way APT does without a problem resolver: the first
// alternative whose candidate satisfies the relation is marked, recursively;
// a virtual alternative is resolved to its first provider. When a newly
// marked version is left with an unmet dependency, every mark made by the
// call is undone and an error is returned.
func (c *Cache) MarkInstall(name string, auto bool) error {
	e := c.lookup(name)
	if e == nil {
		return fmt.Errorf("package %s has no installation candidate", name)
	}
	j := &journal{}
	c.markInstall(e, auto, j)

	for _, marked := range j.entries {
		if marked.mark != markInstall {
			continue
		}
		v := marked.candidate()
		if g, ok := c.unmet(v); !ok {
			j.rollback()
			return fmt.Errorf("%s %s depends on %s, which cannot be satisfied", v.Package, v.Version, g)
		}
	}
	return nil
}

func (c *Cache) markInstall(e *entry, auto bool, j *journal) {
	if e.mark == markInstall {
		return
	}
	j.save(e)
	cand := e.candidate()
	if e.installed == cand {
		// up to date: only cancel a removal
		e.mark = markKeep
		return
	}
	e.mark = markInstall
	e.auto = auto

	for _, g := range dependencies(cand) {
		if c.groupSatisfied(g) {
			continue
		}
		if target := c.firstInstallable(g); target != nil {
			c.markInstall(target, true, j)
		}
	}
}

// firstInstallable returns the entry to install for the first alternative
// of g that can be satisfied by a candidate version.
func (c *Cache) firstInstallable(g deb.OrGroup) *entry {
	for _, d := range g {
		if e := c.lookup(d.Name); e != nil {
			if d.SatisfiedBy(e.candidate().Version) {
				return e
			}
			continue
		}
		for _, e := range c.providerIndex()[d.Name] {
			if providesMatching(e.candidate(), d) {
				return e
			}
		}
	}
	return nil
}

// MarkDelete marks an installed package for removal. A package that is
// only marked for installation is unmarked.
func (c *Cache) MarkDelete(name string) error {
	e := c.lookup(name)
	if e == nil {
		return fmt.Errorf("package %s is unknown", name)
	}
	e.auto = false
	if e.installed == nil {
		e.mark = markKeep
		return nil
	}
	e.mark = markDelete
	return nil
}

// Clear discards every mark.
func (c *Cache) Clear() {
	c.packages.Walk(func(_ string, val interface{}) bool {
		e := val.(*entry)
		e.mark = markKeep
		e.auto = false
		return false
	})
}

// Changes returns the packages to install or upgrade, and the packages to
// remove, each sorted by name.
func (c *Cache) Changes() (install, remove []string) {
	c.packages.Walk(func(name string, val interface{}) bool {
		switch val.(*entry).mark {
		case markInstall:
			install = append(install, name)
		case markDelete:
			remove = append(remove, name)
		}
		return false
	})
	return install, remove
}

// BrokenCount returns the number of packages that would be present once the
// marks are applied and that have an unmet Pre-Depends or Depends, or that
// conflict with or break another such package.
func (c *Cache) BrokenCount() int {
	n := 0
	c.packages.Walk(func(_ string, val interface{}) bool {
		e := val.(*entry)
		v := e.planned()
		if v == nil {
			return false
		}
		if _, ok := c.unmet(v); !ok || c.conflicting(e, v) != "" {
			n++
		}
		return false
	})
	return n
}

// Broken returns the packages counted by BrokenCount with the reason each
// is broken.
func (c *Cache) Broken() map[string]string {
	broken := make(map[string]string)
	c.packages.Walk(func(name string, val interface{}) bool {
		e := val.(*entry)
		v := e.planned()
		if v == nil {
			return false
		}
		if g, ok := c.unmet(v); !ok {
			broken[name] = fmt.Sprintf("depends on %s", g)
		} else if other := c.conflicting(e, v); other != "" {
			broken[name] = fmt.Sprintf("conflicts with %s", other)
		}
		return false
	})
	return broken
}

func dependencies(v *Version) []deb.OrGroup {
	deps := make([]deb.OrGroup, 0, len(v.PreDepends)+len(v.Depends))
	deps = append(deps, v.PreDepends...)
	return append(deps, v.Depends...)
}

// unmet returns the first dependency group of v not satisfied by the
// planned state.
func (c *Cache) unmet(v *Version) (deb.OrGroup, bool) {
	for _, g := range dependencies(v) {
		if !c.groupSatisfied(g) {
			return g, false
		}
	}
	return nil, true
}

func (c *Cache) groupSatisfied(g deb.OrGroup) bool {
	for _, d := range g {
		if c.satisfied(d) {
			return true
		}
	}
	return false
}

// satisfied reports whether the planned state has a package matching d,
// directly or through Provides.
func (c *Cache) satisfied(d deb.Dependency) bool {
	if e := c.lookup(d.Name); e != nil {
		if v := e.planned(); v != nil && d.SatisfiedBy(v.Version) {
			return true
		}
	}
	for _, e := range c.providerIndex()[d.Name] {
		if providesMatching(e.planned(), d) {
			return true
		}
	}
	return false
}

// conflicting returns the name of a package of the planned state that v
// conflicts with or breaks.
func (c *Cache) conflicting(self *entry, v *Version) string {
	rels := make([]deb.OrGroup, 0, len(v.Conflicts)+len(v.Breaks))
	rels = append(rels, v.Conflicts...)
	rels = append(rels, v.Breaks...)
	for _, g := range rels {
		for _, d := range g {
			if e := c.lookup(d.Name); e != nil && e != self {
				if pv := e.planned(); pv != nil && d.SatisfiedBy(pv.Version) {
					return e.name
				}
			}
			for _, e := range c.providerIndex()[d.Name] {
				if e != self && providesMatching(e.planned(), d) {
					return e.name
				}
			}
		}
	}
	return ""
}

// providesMatching reports whether v provides d.Name at a version
// satisfying d. An unversioned Provides only satisfies an unversioned
// relation.
func providesMatching(v *Version, d deb.Dependency) bool {
	if v == nil {
		return false
	}
	pv, ok := v.Provided(d.Name)
	if !ok {
		return false
	}
	if d.Relation == version.RelationNone {
		return true
	}
	return pv != "" && d.SatisfiedBy(pv)
}
