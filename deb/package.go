package deb

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/blakesmith/ar"
)

// Package represents a Debian binary package (.deb file).
// It separates metadata (Control), hooks (Scripts), and payload (Files).
type Package struct {
	Metadata Metadata
	Scripts  Scripts
	Files    []File

	// ExtraControlFiles contains arbitrary control files of the control archive.
	// Keys are filenames (e.g., "templates", "triggers"), values are the content.
	ExtraControlFiles map[string]string
}

// Metadata maps directly to the fields in the Debian 'control' file.
// Relationship fields are kept as the list of their comma separated entries;
// use Relations to get them parsed.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#binary-package-control-files-debian-control
type Metadata struct {
	// Package is the name of the package.
	Package string
	// Version is the version number of the package: [epoch:]upstream_version[-debian_revision].
	Version string
	// Architecture is the architecture the package is built for, or "all".
	Architecture string
	// Maintainer is "Name <email>".
	Maintainer string
	// Description holds the synopsis on its first line, followed by the extended description.
	Description string
	Section     string
	Priority    string
	Homepage    string
	// Essential marks packages required for the system to function.
	//
	// Reference: https://www.debian.org/doc/debian-policy/ch-controlfields.html#s-f-essential
	Essential bool

	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#s-binarydeps
	Depends    []string
	PreDepends []string
	Recommends []string
	Suggests   []string
	Enhances   []string
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#s-conflicts
	Conflicts []string
	Breaks    []string
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#s-replaces
	Replaces []string
	// Reference: https://www.debian.org/doc/debian-policy/ch-relationships.html#s-virtual
	Provides []string

	BuiltUsing string
	Source     string

	// ExtraFields holds any non-standard field of the control file.
	ExtraFields map[string]string
}

// Scripts holds the executable maintainer scripts.
//
// Reference: https://www.debian.org/doc/debian-policy/ch-maintainerscripts.html
type Scripts struct {
	PreInst  string
	PostInst string
	PreRm    string
	PostRm   string
	Config   string
}

// File represents a single file of the package payload.
type File struct {
	// DestPath is the absolute path of the file on the target system (e.g., "/usr/bin/app").
	DestPath string
	// Mode is the file permission mode.
	Mode int64
	// Body is the file content.
	Body string
	// IsConf marks the file as a configuration file listed in 'conffiles'.
	IsConf bool
	// ModTime is the modification time stored in the archive.
	ModTime time.Time
}

// StandardFilename returns the canonical filename for the package.
// Format: {Package}_{Version}_{Architecture}.deb
func (p *Package) StandardFilename() string {
	v := p.Metadata.Version
	if i := strings.IndexByte(v, ':'); i >= 0 {
		v = v[i+1:]
	}
	return fmt.Sprintf("%s_%s_%s.deb", p.Metadata.Package, v, p.Metadata.Architecture)
}

// Relations parses a relationship field of the package.
func (p *Package) Relations(field ControlField) ([]OrGroup, error) {
	var entries []string
	switch field {
	case FieldDepends:
		entries = p.Metadata.Depends
	case FieldPreDepends:
		entries = p.Metadata.PreDepends
	case FieldRecommends:
		entries = p.Metadata.Recommends
	case FieldSuggests:
		entries = p.Metadata.Suggests
	case FieldEnhances:
		entries = p.Metadata.Enhances
	case FieldConflicts:
		entries = p.Metadata.Conflicts
	case FieldBreaks:
		entries = p.Metadata.Breaks
	case FieldReplaces:
		entries = p.Metadata.Replaces
	case FieldProvides:
		entries = p.Metadata.Provides
	default:
		return nil, fmt.Errorf("%s is not a relationship field", field)
	}
	groups, err := ParseDepends(strings.Join(entries, ", "))
	if err != nil {
		return nil, fmt.Errorf("%s of %s: %w", field, p.Metadata.Package, err)
	}
	return groups, nil
}

// Filelist returns the paths of the payload files, sorted.
func (p *Package) Filelist() []string {
	files := make([]string, 0, len(p.Files))
	for _, f := range p.Files {
		files = append(files, f.DestPath)
	}
	sort.Strings(files)
	return files
}

// Set updates a specific field in the package's control metadata.
func (p *Package) Set(key, value string) {
	setMetadataField(&p.Metadata, key, value)
}

func setMetadataField(m *Metadata, key, value string) {
	switch ControlField(key) {
	case FieldPackage:
		m.Package = value
	case FieldVersion:
		m.Version = value
	case FieldArchitecture:
		m.Architecture = value
	case FieldMaintainer:
		m.Maintainer = value
	case FieldDescription:
		m.Description = value
	case FieldSection:
		m.Section = value
	case FieldPriority:
		m.Priority = value
	case FieldHomepage:
		m.Homepage = value
	case FieldEssential:
		m.Essential = (value == "yes")
	case FieldDepends:
		m.Depends = splitList(value)
	case FieldPreDepends:
		m.PreDepends = splitList(value)
	case FieldRecommends:
		m.Recommends = splitList(value)
	case FieldSuggests:
		m.Suggests = splitList(value)
	case FieldEnhances:
		m.Enhances = splitList(value)
	case FieldConflicts:
		m.Conflicts = splitList(value)
	case FieldBreaks:
		m.Breaks = splitList(value)
	case FieldReplaces:
		m.Replaces = splitList(value)
	case FieldProvides:
		m.Provides = splitList(value)
	case FieldBuiltUsing:
		m.BuiltUsing = value
	case FieldSource:
		m.Source = value
	case FieldInstalledSize:
		// computed at generation time.
	default:
		if m.ExtraFields == nil {
			m.ExtraFields = make(map[string]string)
		}
		m.ExtraFields[key] = value
	}
}

// MetadataFrom maps a control paragraph to Metadata. Fields are matched
// case-insensitively; unknown fields go to ExtraFields.
func MetadataFrom(para *Paragraph) Metadata {
	m := Metadata{ExtraFields: make(map[string]string)}
	known := make(map[string]ControlField)
	for _, f := range []ControlField{
		FieldPackage, FieldVersion, FieldArchitecture, FieldMaintainer, FieldDescription,
		FieldSection, FieldPriority, FieldHomepage, FieldEssential, FieldBuiltUsing,
		FieldSource, FieldInstalledSize,
	} {
		known[strings.ToLower(string(f))] = f
	}
	for _, f := range RelationFields {
		known[strings.ToLower(string(f))] = f
	}
	for _, k := range para.Keys() {
		v := para.Value(ControlField(k))
		if f, ok := known[strings.ToLower(k)]; ok {
			if f != FieldDescription {
				v = strings.TrimSpace(v)
			}
			setMetadataField(&m, string(f), v)
			continue
		}
		m.ExtraFields[k] = v
	}
	return m
}

// Paragraph renders the metadata as a control paragraph.
// installedBytes is written as Installed-Size when positive.
func (m Metadata) Paragraph(installedBytes int64) *Paragraph {
	para := NewParagraph()
	set := func(field ControlField, value string) {
		if value != "" {
			para.Set(field, value)
		}
	}

	set(FieldPackage, m.Package)
	set(FieldVersion, m.Version)
	set(FieldArchitecture, m.Architecture)
	set(FieldMaintainer, m.Maintainer)
	if installedBytes > 0 {
		// Installed-Size is in kilobytes, rounded up
		set(FieldInstalledSize, strconv.FormatInt((installedBytes+1023)/1024, 10))
	}
	set(FieldSection, m.Section)
	set(FieldPriority, m.Priority)
	set(FieldHomepage, m.Homepage)
	if m.Essential {
		set(FieldEssential, "yes")
	}

	lists := map[ControlField][]string{
		FieldDepends:    m.Depends,
		FieldPreDepends: m.PreDepends,
		FieldRecommends: m.Recommends,
		FieldSuggests:   m.Suggests,
		FieldEnhances:   m.Enhances,
		FieldConflicts:  m.Conflicts,
		FieldBreaks:     m.Breaks,
		FieldReplaces:   m.Replaces,
		FieldProvides:   m.Provides,
	}
	for _, f := range RelationFields {
		if items := lists[f]; len(items) > 0 {
			set(f, strings.Join(items, ", "))
		}
	}
	set(FieldBuiltUsing, m.BuiltUsing)
	set(FieldSource, m.Source)

	var extra []string
	for k := range m.ExtraFields {
		extra = append(extra, k)
	}
	sort.Strings(extra)
	for _, k := range extra {
		set(ControlField(k), m.ExtraFields[k])
	}

	if m.Description != "" {
		lines := strings.Split(m.Description, "\n")
		var b strings.Builder
		b.WriteString(lines[0])
		for _, line := range lines[1:] {
			switch {
			case strings.TrimSpace(line) == "":
				b.WriteString("\n .")
			case strings.HasPrefix(line, " "):
				b.WriteString("\n" + line)
			default:
				b.WriteString("\n " + line)
			}
		}
		set(FieldDescription, b.String())
	}
	return para
}

// WriteTo generates the .deb package and writes it to the provided io.Writer.
// It returns the total number of bytes written and any error encountered.
// This satisfies the io.WriterTo interface.
//
// The control archive holds the control and md5sums files only: Scripts,
// conffiles and ExtraControlFiles are read by NewPackage but never written.
func (p *Package) WriteTo(w io.Writer) (int64, error) {
	cw := &countingWriter{w: w}

	// The data archive comes first: the control archive lists its md5sums.
	dataBuf := new(bytes.Buffer)
	md5Map, installedSize, err := p.buildDataArchive(dataBuf)
	if err != nil {
		return cw.n, fmt.Errorf("building data archive: %w", err)
	}

	controlBuf := new(bytes.Buffer)
	if err := p.buildControlArchive(controlBuf, md5Map, installedSize); err != nil {
		return cw.n, fmt.Errorf("building control archive: %w", err)
	}

	// Reference: https://manpages.debian.org/unstable/dpkg-dev/deb.5.en.html#FORMAT
	arW := ar.NewWriter(cw)
	if err := arW.WriteGlobalHeader(); err != nil {
		return cw.n, fmt.Errorf("writing ar global header: %w", err)
	}
	now := time.Now()
	members := []struct {
		name PackageFile
		body []byte
	}{
		{PkgDebianBinary, []byte("2.0\n")},
		{PkgControlTarGz, controlBuf.Bytes()},
		{PkgDataTarGz, dataBuf.Bytes()},
	}
	for _, m := range members {
		if err := addBufferToAr(arW, string(m.name), m.body, now); err != nil {
			return cw.n, fmt.Errorf("writing %s: %w", m.name, err)
		}
	}
	return cw.n, nil
}

// buildDataArchive creates the data.tar.gz containing the package files.
// It returns a map of file paths to MD5 checksums and the total installed size in bytes.
func (p *Package) buildDataArchive(w io.Writer) (map[string]string, int64, error) {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	md5Map := make(map[string]string)
	var installedSize int64

	for _, file := range p.Files {
		content := []byte(file.Body)
		hash := md5.Sum(content)
		md5Map[file.DestPath] = hex.EncodeToString(hash[:])
		installedSize += int64(len(content))

		// data.tar members are relative, starting with ./
		relPath := "./" + strings.TrimPrefix(strings.TrimPrefix(file.DestPath, "/"), "./")
		header := &tar.Header{
			Name:     relPath,
			Size:     int64(len(content)),
			Mode:     file.Mode,
			ModTime:  file.ModTime,
			Typeflag: tar.TypeReg,
		}
		if header.ModTime.IsZero() {
			header.ModTime = time.Now()
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, 0, err
		}
		if _, err := tw.Write(content); err != nil {
			return nil, 0, err
		}
	}
	return md5Map, installedSize, nil
}

// buildControlArchive creates the control.tar.gz containing metadata files.
func (p *Package) buildControlArchive(w io.Writer, md5Map map[string]string, installedSize int64) error {
	gw := gzip.NewWriter(w)
	defer gw.Close()
	tw := tar.NewWriter(gw)
	defer tw.Close()

	writeEntry := func(name ControlFile, content []byte, mode int64) error {
		header := &tar.Header{
			Name:    "./" + string(name),
			Size:    int64(len(content)),
			Mode:    mode,
			ModTime: time.Now(),
		}
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		_, err := tw.Write(content)
		return err
	}

	control := p.Metadata.Paragraph(installedSize).String()
	if err := writeEntry(FileControl, []byte(control), 0644); err != nil {
		return fmt.Errorf("writing control: %w", err)
	}

	var paths []string
	for path := range md5Map {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	var sums strings.Builder
	for _, path := range paths {
		fmt.Fprintf(&sums, "%s  %s\n", md5Map[path], strings.TrimPrefix(path, "/"))
	}
	if err := writeEntry(FileMd5sums, []byte(sums.String()), 0644); err != nil {
		return fmt.Errorf("writing md5sums: %w", err)
	}
	return nil
}

// NewPackage reads a .deb file. Control and data members may be
// uncompressed or compressed with gzip, xz, bzip2 or lzma.
func NewPackage(r io.Reader) (*Package, error) {
	pkg := &Package{
		Metadata:          Metadata{ExtraFields: make(map[string]string)},
		ExtraControlFiles: make(map[string]string),
	}
	var conffiles []string
	sawControl := false

	arR := ar.NewReader(r)
	for {
		header, err := arR.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading ar header: %w", err)
		}
		name := strings.TrimSuffix(strings.TrimSpace(header.Name), "/")

		switch {
		case strings.HasPrefix(name, string(PkgControlTar)):
			sawControl = true
			err := eachTarEntry(name, arR, func(th *tar.Header, body []byte) error {
				base := filepath.Base(th.Name)
				content := string(body)
				switch ControlFile(base) {
				case FileControl:
					para, err := ParseParagraph(content)
					if err != nil {
						return fmt.Errorf("parsing control file: %w", err)
					}
					pkg.Metadata = MetadataFrom(para)
				case FileConffiles:
					conffiles = strings.Split(strings.TrimSpace(content), "\n")
				case FilePreinst:
					pkg.Scripts.PreInst = content
				case FilePostinst:
					pkg.Scripts.PostInst = content
				case FilePrerm:
					pkg.Scripts.PreRm = content
				case FilePostrm:
					pkg.Scripts.PostRm = content
				case FileConfig:
					pkg.Scripts.Config = content
				case FileMd5sums:
					// recomputed when writing
				default:
					if !strings.HasPrefix(base, ".") {
						pkg.ExtraControlFiles[base] = content
					}
				}
				return nil
			})
			if err != nil {
				return nil, err
			}

		case strings.HasPrefix(name, string(PkgDataTar)):
			err := eachTarEntry(name, arR, func(th *tar.Header, body []byte) error {
				if th.Typeflag != tar.TypeReg {
					return nil
				}
				destPath := "/" + strings.TrimPrefix(strings.TrimPrefix(th.Name, "./"), "/")
				pkg.Files = append(pkg.Files, File{
					DestPath: destPath,
					Mode:     th.Mode,
					Body:     string(body),
					ModTime:  th.ModTime,
				})
				return nil
			})
			if err != nil {
				return nil, err
			}
		}
	}
	if !sawControl {
		return nil, fmt.Errorf("not a debian package: control archive missing")
	}

	confSet := make(map[string]bool)
	for _, cf := range conffiles {
		if cf = strings.TrimSpace(cf); cf != "" {
			confSet[cf] = true
		}
	}
	for i := range pkg.Files {
		if confSet[pkg.Files[i].DestPath] {
			pkg.Files[i].IsConf = true
		}
	}
	return pkg, nil
}

// eachTarEntry decompresses a tar member of the ar archive and calls fn for
// every entry.
func eachTarEntry(name string, r io.Reader, fn func(*tar.Header, []byte) error) error {
	dr, closer, err := Decompress(name, r)
	if err != nil {
		return err
	}
	defer closer.Close()

	tr := tar.NewReader(dr)
	for {
		th, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("reading %s: %w", name, err)
		}
		var buf bytes.Buffer
		if _, err := io.Copy(&buf, tr); err != nil {
			return fmt.Errorf("reading %s in %s: %w", th.Name, name, err)
		}
		if err := fn(th, buf.Bytes()); err != nil {
			return err
		}
	}
}
