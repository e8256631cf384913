package deb

import (
	"fmt"
	"io"
	"strings"
)

// SourcePackage is the content of a Debian source control file (.dsc).
// Only the fields needed to evaluate build dependencies are kept.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#debian-source-control-files-dsc
type SourcePackage struct {
	// Source is the source package name.
	Source string
	// Version is the version of the source package.
	Version string
	// Binary lists the binary packages built from this source.
	Binary []string
	// Architecture lists the architectures the source builds on.
	Architecture []string

	// Raw relationship fields, in control file syntax.
	BuildDepends        string
	BuildDependsIndep   string
	BuildDependsArch    string
	BuildConflicts      string
	BuildConflictsIndep string
	BuildConflictsArch  string
}

// NewSourcePackage reads a .dsc file. A clearsigned file is accepted; its
// signature is not verified.
func NewSourcePackage(r io.Reader) (*SourcePackage, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading source control file: %w", err)
	}
	paras, err := ReadParagraphs(strings.NewReader(string(stripSignature(content))))
	if err != nil {
		return nil, fmt.Errorf("parsing source control file: %w", err)
	}

	src := &SourcePackage{}
	for _, para := range paras {
		if v, ok := para.Get(FieldSource); ok {
			src.Source = strings.TrimSpace(v)
		}
		if v, ok := para.Get(FieldVersion); ok {
			src.Version = strings.TrimSpace(v)
		}
		if v, ok := para.Get(FieldBinary); ok {
			src.Binary = splitList(v)
		}
		if v, ok := para.Get(FieldArchitecture); ok {
			src.Architecture = strings.Fields(v)
		}
		fields := []struct {
			field ControlField
			dst   *string
		}{
			{FieldBuildDepends, &src.BuildDepends},
			{FieldBuildDependsIndep, &src.BuildDependsIndep},
			{FieldBuildDependsArch, &src.BuildDependsArch},
			{FieldBuildConflicts, &src.BuildConflicts},
			{FieldBuildConflictsIndep, &src.BuildConflictsIndep},
			{FieldBuildConflictsArch, &src.BuildConflictsArch},
		}
		for _, f := range fields {
			if v, ok := para.Get(f.field); ok {
				*f.dst = strings.TrimSpace(v)
			}
		}
	}
	if src.Source == "" {
		return nil, fmt.Errorf("source control file has no %s field", FieldSource)
	}
	return src, nil
}

// BuildDependencies returns Build-Depends, Build-Depends-Arch and
// Build-Depends-Indep, evaluated for arch.
func (s *SourcePackage) BuildDependencies(arch string) ([]OrGroup, error) {
	return s.relations(arch, s.BuildDepends, s.BuildDependsArch, s.BuildDependsIndep)
}

// BuildConflictRelations returns Build-Conflicts, Build-Conflicts-Arch and
// Build-Conflicts-Indep, evaluated for arch.
func (s *SourcePackage) BuildConflictRelations(arch string) ([]OrGroup, error) {
	return s.relations(arch, s.BuildConflicts, s.BuildConflictsArch, s.BuildConflictsIndep)
}

func (s *SourcePackage) relations(arch string, fields ...string) ([]OrGroup, error) {
	var all []OrGroup
	for _, f := range fields {
		groups, err := ParseSrcDepends(f, arch)
		if err != nil {
			return nil, fmt.Errorf("source package %s: %w", s.Source, err)
		}
		all = append(all, groups...)
	}
	return all, nil
}

// Description is the synthetic description used when presenting the
// build dependencies of a source package for installation.
func (s *SourcePackage) Description() string {
	return fmt.Sprintf("Install Build-Dependencies for source package '%s' that builds %s",
		s.Source, strings.Join(s.Binary, " "))
}
