package apt

import (
	"fmt"
	"io"
	"sort"

	radix "github.com/armon/go-radix"

	"github.com/etnz/debcheck/deb"
	"github.com/etnz/debcheck/version"
)

// Cache is an in-memory package universe: the installed versions read from
// the dpkg status database and the available versions read from Packages
// indices, plus the install and delete marks of a planned transaction.
//
// Reads always reflect the current marks. A Cache is not safe for
// concurrent use.
type Cache struct {
	arch     string
	packages *radix.Tree // name -> *entry

	// provides maps a name to the entries having a version that provides
	// it, sorted by name. It is rebuilt after versions are added.
	provides map[string][]*entry
}

type mark int

const (
	markKeep mark = iota
	markInstall
	markDelete
)

type entry struct {
	name string
	// versions is sorted newest first.
	versions  []*Version
	installed *Version
	mark      mark
	auto      bool
}

// candidate is the version that would be installed: the newest known
// version, which is the installed one when no index has a newer one.
func (e *entry) candidate() *Version {
	if len(e.versions) == 0 {
		return nil
	}
	return e.versions[0]
}

// planned is the version present once the marks are applied.
func (e *entry) planned() *Version {
	switch e.mark {
	case markInstall:
		return e.candidate()
	case markDelete:
		return nil
	}
	return e.installed
}

// NewCache returns an empty cache for a system of the given architecture.
func NewCache(arch string) *Cache {
	return &Cache{arch: arch, packages: radix.New()}
}

// Architecture is the native architecture of the system.
func (c *Cache) Architecture() string { return c.arch }

// Len returns the number of package names with at least one version.
func (c *Cache) Len() int { return c.packages.Len() }

// AddInstalled records versions installed on the system. Versions for a
// foreign architecture are ignored. It returns the number of versions kept.
func (c *Cache) AddInstalled(versions ...*Version) int {
	return c.add(versions, true)
}

// AddAvailable records versions available for installation. Versions for a
// foreign architecture are ignored. It returns the number of versions kept.
func (c *Cache) AddAvailable(versions ...*Version) int {
	return c.add(versions, false)
}

func (c *Cache) add(versions []*Version, installed bool) int {
	n := 0
	for _, v := range versions {
		if v.Architecture != "all" && v.Architecture != c.arch {
			continue
		}
		n++
		e := c.lookup(v.Package)
		if e == nil {
			e = &entry{name: v.Package}
			c.packages.Insert(v.Package, e)
		}

		var same *Version
		for _, existing := range e.versions {
			if existing.Version == v.Version {
				same = existing
				break
			}
		}
		if same != nil {
			same.Origins = append(same.Origins, v.Origins...)
		} else {
			same = v
			e.versions = append(e.versions, v)
			sort.SliceStable(e.versions, func(i, j int) bool {
				return version.Compare(e.versions[i].Version, e.versions[j].Version) > 0
			})
		}
		if installed {
			e.installed = same
		}
	}
	c.provides = nil
	return n
}

// LoadStatus reads a dpkg status database into the cache.
func (c *Cache) LoadStatus(r io.Reader) (int, error) {
	versions, err := ReadStatus(r)
	if err != nil {
		return 0, err
	}
	return c.AddInstalled(versions...), nil
}

// LoadPackages reads a Packages index into the cache. name selects the
// decompression, as for deb.Decompress.
func (c *Cache) LoadPackages(name string, r io.Reader, origin Origin) (int, error) {
	dr, closer, err := deb.Decompress(name, r)
	if err != nil {
		return 0, err
	}
	defer closer.Close()
	versions, err := ReadPackages(dr, origin)
	if err != nil {
		return 0, err
	}
	return c.AddAvailable(versions...), nil
}

func (c *Cache) lookup(name string) *entry {
	v, ok := c.packages.Get(name)
	if !ok {
		return nil
	}
	return v.(*entry)
}

// Packages returns every package name, sorted.
func (c *Cache) Packages() []string {
	return c.Search("")
}

// Search returns the package names starting with prefix, sorted.
func (c *Cache) Search(prefix string) []string {
	var names []string
	c.packages.WalkPrefix(prefix, func(name string, _ interface{}) bool {
		names = append(names, name)
		return false
	})
	return names
}

// Versions returns the known versions of a package, newest first.
func (c *Cache) Versions(name string) []*Version {
	e := c.lookup(name)
	if e == nil {
		return nil
	}
	return append([]*Version(nil), e.versions...)
}

// Candidate returns the candidate version of a package, or nil.
func (c *Cache) Candidate(name string) *Version {
	if e := c.lookup(name); e != nil {
		return e.candidate()
	}
	return nil
}

// Installed returns the installed version of a package, or nil.
func (c *Cache) Installed(name string) *Version {
	if e := c.lookup(name); e != nil {
		return e.installed
	}
	return nil
}

// IsKnown reports whether the name has real versions.
func (c *Cache) IsKnown(name string) bool {
	return c.lookup(name) != nil
}

// IsVirtual reports whether the name has no real version but is provided
// by the candidate of at least one package.
func (c *Cache) IsVirtual(name string) bool {
	return !c.IsKnown(name) && len(c.ProvidersOf(name)) > 0
}

// ProvidersOf returns the packages whose candidate version provides name,
// sorted. It is empty when name has real versions.
func (c *Cache) ProvidersOf(name string) []string {
	if c.IsKnown(name) {
		return nil
	}
	var names []string
	for _, e := range c.providerIndex()[name] {
		if cand := e.candidate(); cand != nil {
			if _, ok := cand.Provided(name); ok {
				names = append(names, e.name)
			}
		}
	}
	return names
}

// InstalledVersion returns the installed version of a package.
func (c *Cache) InstalledVersion(name string) (string, bool) {
	if v := c.Installed(name); v != nil {
		return v.Version, true
	}
	return "", false
}

// CandidateVersion returns the candidate version of a package.
func (c *Cache) CandidateVersion(name string) (string, bool) {
	if v := c.Candidate(name); v != nil {
		return v.Version, true
	}
	return "", false
}

// IsMarkedInstall reports whether the package is marked for installation
// or upgrade.
func (c *Cache) IsMarkedInstall(name string) bool {
	e := c.lookup(name)
	return e != nil && e.mark == markInstall
}

// IsMarkedDelete reports whether the package is marked for removal.
func (c *Cache) IsMarkedDelete(name string) bool {
	e := c.lookup(name)
	return e != nil && e.mark == markDelete
}

// IsAuto reports whether the package was marked for installation as a
// dependency rather than on request.
func (c *Cache) IsAuto(name string) bool {
	e := c.lookup(name)
	return e != nil && e.mark == markInstall && e.auto
}

// IsEssential reports whether the installed or candidate version is
// flagged Essential.
func (c *Cache) IsEssential(name string) bool {
	e := c.lookup(name)
	if e == nil {
		return false
	}
	if e.installed != nil && e.installed.Essential {
		return true
	}
	cand := e.candidate()
	return cand != nil && cand.Essential
}

// IsTrusted reports whether the candidate version comes from at least one
// trusted origin.
func (c *Cache) IsTrusted(name string) bool {
	cand := c.Candidate(name)
	return cand != nil && cand.Trusted()
}

func (c *Cache) providerIndex() map[string][]*entry {
	if c.provides != nil {
		return c.provides
	}
	c.provides = make(map[string][]*entry)
	c.packages.Walk(func(_ string, val interface{}) bool {
		e := val.(*entry)
		seen := make(map[string]bool)
		for _, v := range e.versions {
			for _, g := range v.Provides {
				for _, d := range g {
					if !seen[d.Name] {
						seen[d.Name] = true
						c.provides[d.Name] = append(c.provides[d.Name], e)
					}
				}
			}
		}
		return false
	})
	return c.provides
}

// String describes the cache size.
func (c *Cache) String() string {
	return fmt.Sprintf("%d packages for %s", c.Len(), c.arch)
}
