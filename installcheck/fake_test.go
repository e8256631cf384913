package installcheck

import (
	"fmt"
	"sort"
	"testing"

	"github.com/etnz/debcheck/deb"
)

// fakePkg is a package of a fakeUniverse.
type fakePkg struct {
	installed   string
	candidate   string
	provides    []string
	essential   bool
	untrusted   bool
	failInstall bool

	marked  bool
	deleted bool
}

// fakeUniverse is a Universe whose MarkInstall only marks the named package.
type fakeUniverse struct {
	arch    string
	pkgs    map[string]*fakePkg
	broken  int
	cleared int
}

func newFakeUniverse(pkgs map[string]*fakePkg) *fakeUniverse {
	return &fakeUniverse{arch: "amd64", pkgs: pkgs}
}

func (f *fakeUniverse) IsKnown(name string) bool {
	p, ok := f.pkgs[name]
	return ok && (p.installed != "" || p.candidate != "")
}

func (f *fakeUniverse) IsVirtual(name string) bool {
	return !f.IsKnown(name) && len(f.ProvidersOf(name)) > 0
}

func (f *fakeUniverse) ProvidersOf(name string) []string {
	if f.IsKnown(name) {
		return nil
	}
	var names []string
	for n, p := range f.pkgs {
		if p.candidate == "" {
			continue
		}
		for _, v := range p.provides {
			if v == name {
				names = append(names, n)
			}
		}
	}
	sort.Strings(names)
	return names
}

func (f *fakeUniverse) InstalledVersion(name string) (string, bool) {
	if p, ok := f.pkgs[name]; ok && p.installed != "" {
		return p.installed, true
	}
	return "", false
}

func (f *fakeUniverse) CandidateVersion(name string) (string, bool) {
	if p, ok := f.pkgs[name]; ok && p.candidate != "" {
		return p.candidate, true
	}
	return "", false
}

func (f *fakeUniverse) IsMarkedInstall(name string) bool {
	p, ok := f.pkgs[name]
	return ok && p.marked
}

func (f *fakeUniverse) IsEssential(name string) bool {
	p, ok := f.pkgs[name]
	return ok && p.essential
}

func (f *fakeUniverse) Architecture() string { return f.arch }

func (f *fakeUniverse) MarkInstall(name string, auto bool) error {
	p, ok := f.pkgs[name]
	if !ok || p.candidate == "" {
		return fmt.Errorf("%s has no candidate", name)
	}
	if p.failInstall {
		return fmt.Errorf("%s has unmet dependencies", name)
	}
	p.marked = true
	p.deleted = false
	return nil
}

func (f *fakeUniverse) MarkDelete(name string) error {
	p, ok := f.pkgs[name]
	if !ok {
		return fmt.Errorf("%s is unknown", name)
	}
	p.marked = false
	p.deleted = true
	return nil
}

func (f *fakeUniverse) BrokenCount() int { return f.broken }

func (f *fakeUniverse) Clear() {
	f.cleared++
	for _, p := range f.pkgs {
		p.marked = false
		p.deleted = false
	}
}

func (f *fakeUniverse) Changes() (install, remove []string) {
	for name, p := range f.pkgs {
		if p.marked {
			install = append(install, name)
		}
		if p.deleted {
			remove = append(remove, name)
		}
	}
	sort.Strings(install)
	sort.Strings(remove)
	return install, remove
}

func (f *fakeUniverse) IsTrusted(name string) bool {
	p, ok := f.pkgs[name]
	return ok && !p.untrusted
}

// candidate builds a binary candidate from relationship field values.
func candidate(t *testing.T, name, ver, arch string, fields map[deb.ControlField]string) *Candidate {
	t.Helper()
	c := &Candidate{Name: name, Version: ver, Architecture: arch, Relations: make(map[deb.ControlField][]deb.OrGroup)}
	for field, value := range fields {
		groups, err := deb.ParseDepends(value)
		if err != nil {
			t.Fatalf("parsing %s: %v", field, err)
		}
		c.Relations[field] = groups
	}
	return c
}
