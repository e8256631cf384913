package apt

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/etnz/debcheck/deb"
)

// Origin identifies where a version was found: a repository, a local
// index file or the dpkg status database.
type Origin struct {
	// Site is the repository URL or the path of the index file.
	Site string
	// Archive is the suite or codename, "now" for the status database.
	Archive string
	// Trusted is set when the index was authenticated, by a verified
	// InRelease file or by explicit configuration.
	Trusted bool
}

// StatusOrigin is the origin of versions read from the dpkg status database.
var StatusOrigin = Origin{Site: "/var/lib/dpkg/status", Archive: "now"}

// Version is a single version of a package, as described by a stanza of a
// Packages index or of the dpkg status database.
type Version struct {
	Package      string
	Version      string
	Architecture string
	Essential    bool

	Depends    []deb.OrGroup
	PreDepends []deb.OrGroup
	Conflicts  []deb.OrGroup
	Breaks     []deb.OrGroup
	Replaces   []deb.OrGroup
	Provides   []deb.OrGroup

	// Filename is the location of the .deb file, made absolute when the
	// index was fetched from a remote repository.
	Filename string
	Size     int64
	SHA256   string

	// Origins lists every index this exact version was found in.
	Origins []Origin
}

// String returns "name version arch".
func (v *Version) String() string {
	return fmt.Sprintf("%s %s %s", v.Package, v.Version, v.Architecture)
}

// Trusted reports whether at least one origin of the version is trusted.
func (v *Version) Trusted() bool {
	for _, o := range v.Origins {
		if o.Trusted {
			return true
		}
	}
	return false
}

// Provided returns the version a Provides entry of v declares for name.
// ok is false when v does not provide name. An unversioned provide returns
// ok with an empty version.
func (v *Version) Provided(name string) (string, bool) {
	for _, g := range v.Provides {
		for _, d := range g {
			if d.Name == name {
				return d.Version, true
			}
		}
	}
	return "", false
}

// NewVersion builds a Version from a Packages or status stanza.
// Package, Version and Architecture are required.
func NewVersion(para *deb.Paragraph, origin Origin) (*Version, error) {
	v := &Version{
		Package:      strings.TrimSpace(para.Value(deb.FieldPackage)),
		Version:      strings.TrimSpace(para.Value(deb.FieldVersion)),
		Architecture: strings.TrimSpace(para.Value(deb.FieldArchitecture)),
		Essential:    strings.TrimSpace(para.Value(deb.FieldEssential)) == "yes",
		Filename:     strings.TrimSpace(para.Value(deb.FieldFilename)),
		SHA256:       strings.TrimSpace(para.Value(deb.FieldSHA256)),
		Origins:      []Origin{origin},
	}
	switch {
	case v.Package == "":
		return nil, fmt.Errorf("stanza has no %s field", deb.FieldPackage)
	case v.Version == "":
		return nil, fmt.Errorf("package %s has no %s field", v.Package, deb.FieldVersion)
	case v.Architecture == "":
		return nil, fmt.Errorf("package %s has no %s field", v.Package, deb.FieldArchitecture)
	}
	if s := strings.TrimSpace(para.Value(deb.FieldSize)); s != "" {
		size, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("package %s: invalid size %q", v.Package, s)
		}
		v.Size = size
	}

	fields := []struct {
		field deb.ControlField
		dst   *[]deb.OrGroup
	}{
		{deb.FieldDepends, &v.Depends},
		{deb.FieldPreDepends, &v.PreDepends},
		{deb.FieldConflicts, &v.Conflicts},
		{deb.FieldBreaks, &v.Breaks},
		{deb.FieldReplaces, &v.Replaces},
		{deb.FieldProvides, &v.Provides},
	}
	for _, f := range fields {
		groups, err := deb.ParseDepends(para.Value(f.field))
		if err != nil {
			return nil, fmt.Errorf("package %s %s: %s: %w", v.Package, v.Version, f.field, err)
		}
		*f.dst = groups
	}
	return v, nil
}

// ReadPackages parses a Packages index.
func ReadPackages(r io.Reader, origin Origin) ([]*Version, error) {
	paras, err := deb.ReadParagraphs(r)
	if err != nil {
		return nil, fmt.Errorf("reading packages index %s: %w", origin.Site, err)
	}
	versions := make([]*Version, 0, len(paras))
	for _, para := range paras {
		v, err := NewVersion(para, origin)
		if err != nil {
			return nil, fmt.Errorf("packages index %s: %w", origin.Site, err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}

// installedStates are the dpkg package states for which a version is
// present on the system.
//
// Reference: https://manpages.debian.org/unstable/dpkg/dpkg.1.en.html#INFORMATION_ABOUT_PACKAGES
var installedStates = map[string]bool{
	"installed":        true,
	"unpacked":         true,
	"half-configured":  true,
	"half-installed":   true,
	"triggers-awaited": true,
	"triggers-pending": true,
}

// ReadStatus parses the dpkg status database and returns the installed
// versions. Stanzas in the not-installed or config-files state are skipped.
func ReadStatus(r io.Reader) ([]*Version, error) {
	paras, err := deb.ReadParagraphs(r)
	if err != nil {
		return nil, fmt.Errorf("reading status database: %w", err)
	}
	var versions []*Version
	for _, para := range paras {
		// Status: want flag state
		status := strings.Fields(para.Value(deb.FieldStatus))
		if len(status) != 3 {
			return nil, fmt.Errorf("package %s: malformed status %q", para.Value(deb.FieldPackage), para.Value(deb.FieldStatus))
		}
		if !installedStates[status[2]] {
			continue
		}
		v, err := NewVersion(para, StatusOrigin)
		if err != nil {
			return nil, fmt.Errorf("status database: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, nil
}
