package deb

import (
	"archive/tar"
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/blakesmith/ar"
)

func TestMetadataParagraph(t *testing.T) {
	m := Metadata{
		Package:      "test-pkg",
		Version:      "1.2.3",
		Architecture: "amd64",
		Maintainer:   "Maintainer <m@example.com>",
		Description:  "Short description\n Long description line 1\n\n Long description line 2",
		Depends:      []string{"libc6", "git"},
		Essential:    true,
	}

	// 2048 bytes -> 2KB installed size
	out := m.Paragraph(2048).String()

	expectedLines := []string{
		"Package: test-pkg",
		"Version: 1.2.3",
		"Architecture: amd64",
		"Maintainer: Maintainer <m@example.com>",
		"Installed-Size: 2",
		"Essential: yes",
		"Depends: libc6, git",
		"Description: Short description",
		" Long description line 1",
		" .",
		" Long description line 2",
	}
	for _, line := range expectedLines {
		if !strings.Contains(out, line) {
			t.Errorf("control file missing expected line: %q", line)
		}
	}
}

func TestBuildDataArchive(t *testing.T) {
	content := []byte("test content")
	p := &Package{
		Files: []File{
			{
				DestPath: "/usr/bin/test",
				Mode:     0755,
				Body:     string(content),
				ModTime:  time.Now(),
			},
		},
	}

	var buf bytes.Buffer
	md5Map, size, err := p.buildDataArchive(&buf)
	if err != nil {
		t.Fatalf("buildDataArchive failed: %v", err)
	}

	if size != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size)
	}

	hash := md5.Sum(content)
	expectedHash := hex.EncodeToString(hash[:])
	if got := md5Map["/usr/bin/test"]; got != expectedHash {
		t.Errorf("expected hash %s, got %s", expectedHash, got)
	}
}

func TestStandardFilename(t *testing.T) {
	tests := []struct {
		version string
		want    string
	}{
		{"1.0.0", "foo_1.0.0_arm64.deb"},
		{"2:1.0-3", "foo_1.0-3_arm64.deb"},
	}
	for _, tt := range tests {
		p := &Package{Metadata: Metadata{Package: "foo", Version: tt.version, Architecture: "arm64"}}
		if got := p.StandardFilename(); got != tt.want {
			t.Errorf("expected %s, got %s", tt.want, got)
		}
	}
}

func TestWriteToNewPackage(t *testing.T) {
	pkg := &Package{
		Metadata: Metadata{
			Package:      "roundtrip",
			Version:      "1:2.0-1",
			Architecture: "all",
			Maintainer:   "Test User <test@example.com>",
			Description:  "Round trip\n extended",
			Depends:      []string{"libc6 (>= 2.36)", "python3 | python3-minimal"},
			Conflicts:    []string{"old-roundtrip (<< 2.0)"},
			Provides:     []string{"roundtrip-api"},
			ExtraFields:  map[string]string{"X-Custom": "yes"},
		},
		Files: []File{
			{DestPath: "/usr/bin/b", Mode: 0755, Body: "b"},
			{DestPath: "/etc/roundtrip.conf", Mode: 0644, Body: "conf"},
		},
	}

	var buf bytes.Buffer
	n, err := pkg.WriteTo(&buf)
	if err != nil {
		t.Fatalf("WriteTo failed: %v", err)
	}
	if n != int64(buf.Len()) {
		t.Errorf("WriteTo returned %d, wrote %d", n, buf.Len())
	}

	got, err := NewPackage(&buf)
	if err != nil {
		t.Fatalf("NewPackage failed: %v", err)
	}
	if got.Metadata.Package != "roundtrip" || got.Metadata.Version != "1:2.0-1" {
		t.Errorf("unexpected metadata %+v", got.Metadata)
	}
	if got.Metadata.Description != pkg.Metadata.Description {
		t.Errorf("description %q, want %q", got.Metadata.Description, pkg.Metadata.Description)
	}
	if got.Metadata.ExtraFields["X-Custom"] != "yes" {
		t.Errorf("extra field lost: %v", got.Metadata.ExtraFields)
	}

	files := got.Filelist()
	if len(files) != 2 || files[0] != "/etc/roundtrip.conf" || files[1] != "/usr/bin/b" {
		t.Errorf("unexpected filelist %v", files)
	}

	deps, err := got.Relations(FieldDepends)
	if err != nil {
		t.Fatalf("Relations failed: %v", err)
	}
	if len(deps) != 2 || len(deps[1]) != 2 || deps[1][1].Name != "python3-minimal" {
		t.Errorf("unexpected depends %v", deps)
	}
	if deps[0][0].Relation != ">=" || deps[0][0].Version != "2.36" {
		t.Errorf("unexpected first depends %+v", deps[0][0])
	}
	if _, err := got.Relations(FieldPackage); err == nil {
		t.Error("expected an error for a non relationship field")
	}
}

// createMockDeb builds a minimal .deb whose control member is compressed
// with ext.
func createMockDeb(t *testing.T, ext string, control string) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	tw.WriteHeader(&tar.Header{Name: "./control", Mode: 0644, Size: int64(len(control))})
	tw.Write([]byte(control))
	tw.Close()

	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	arW.WriteGlobalHeader()
	now := time.Now()
	addBufferToAr(arW, "debian-binary", []byte("2.0\n"), now)
	addBufferToAr(arW, "control.tar"+ext, compress(t, ext, tarBuf.Bytes()), now)
	return buf.Bytes()
}

func TestNewPackageCompressions(t *testing.T) {
	control := "Package: mock\nVersion: 0.1\nArchitecture: amd64\n"
	for _, ext := range []string{"", ".gz", ".xz"} {
		pkg, err := NewPackage(bytes.NewReader(createMockDeb(t, ext, control)))
		if err != nil {
			t.Fatalf("control.tar%s: NewPackage failed: %v", ext, err)
		}
		if pkg.Metadata.Package != "mock" {
			t.Errorf("control.tar%s: got package %q", ext, pkg.Metadata.Package)
		}
	}
}

// tarGz builds a gzip compressed tar of regular files.
func tarGz(t *testing.T, files [][2]string) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for _, f := range files {
		if err := tw.WriteHeader(&tar.Header{Name: f[0], Mode: 0644, Size: int64(len(f[1])), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		tw.Write([]byte(f[1]))
	}
	tw.Close()
	return compress(t, ".gz", tarBuf.Bytes())
}

func TestNewPackageControlFiles(t *testing.T) {
	control := tarGz(t, [][2]string{
		{"./control", "Package: scripted\nVersion: 1.0\nArchitecture: all\n"},
		{"./postinst", "#!/bin/sh\nexit 0\n"},
		{"./conffiles", "/etc/scripted.conf\n"},
		{"./triggers", "interest /usr/share\n"},
	})
	data := tarGz(t, [][2]string{
		{"./etc/scripted.conf", "conf"},
		{"./usr/bin/scripted", "bin"},
	})

	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	arW.WriteGlobalHeader()
	now := time.Now()
	addBufferToAr(arW, "debian-binary", []byte("2.0\n"), now)
	addBufferToAr(arW, "control.tar.gz", control, now)
	addBufferToAr(arW, "data.tar.gz", data, now)

	pkg, err := NewPackage(&buf)
	if err != nil {
		t.Fatalf("NewPackage failed: %v", err)
	}
	if pkg.Scripts.PostInst != "#!/bin/sh\nexit 0\n" {
		t.Errorf("postinst = %q", pkg.Scripts.PostInst)
	}
	if pkg.ExtraControlFiles["triggers"] != "interest /usr/share\n" {
		t.Errorf("triggers lost: %v", pkg.ExtraControlFiles)
	}
	for _, f := range pkg.Files {
		if f.IsConf != (f.DestPath == "/etc/scripted.conf") {
			t.Errorf("%s: IsConf = %v", f.DestPath, f.IsConf)
		}
	}
}

func TestNewPackageNotADeb(t *testing.T) {
	var buf bytes.Buffer
	arW := ar.NewWriter(&buf)
	arW.WriteGlobalHeader()
	addBufferToAr(arW, "debian-binary", []byte("2.0\n"), time.Now())

	if _, err := NewPackage(&buf); err == nil {
		t.Error("expected an error for a missing control archive")
	}
}

func TestIntegrationDebGeneration(t *testing.T) {
	// Ensure dpkg-deb is available
	if _, err := exec.LookPath("dpkg-deb"); err != nil {
		t.Skip("dpkg-deb not found, skipping integration test")
	}

	tmpDir := t.TempDir()
	debPath := filepath.Join(tmpDir, "test.deb")

	pkg := &Package{
		Metadata: Metadata{
			Package:      "test-integration",
			Version:      "1.0.0",
			Architecture: "amd64",
			Maintainer:   "Test User <test@example.com>",
			Description:  "Test integration package",
		},
		Files: []File{
			{
				DestPath: "/usr/bin/hello",
				Mode:     0755,
				Body:     "#!/bin/sh\necho hello\n",
				ModTime:  time.Now(),
			},
		},
	}

	f, err := os.Create(debPath)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	if _, err := pkg.WriteTo(f); err != nil {
		f.Close()
		t.Fatalf("WriteTo failed: %v", err)
	}
	f.Close()

	out, err := exec.Command("dpkg-deb", "--info", debPath).CombinedOutput()
	if err != nil {
		t.Fatalf("dpkg-deb --info failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "Package: test-integration") {
		t.Errorf("missing Package field in info")
	}

	out, err = exec.Command("dpkg-deb", "--contents", debPath).CombinedOutput()
	if err != nil {
		t.Fatalf("dpkg-deb --contents failed: %v\n%s", err, out)
	}
	if !strings.Contains(string(out), "./usr/bin/hello") {
		t.Errorf("missing file in contents: %s", out)
	}
}
