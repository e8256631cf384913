package apt

import (
	"bytes"
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/ulikunitz/xz"
)

const remotePackages = "Package: remote-pkg\nVersion: 1.0\nArchitecture: amd64\nFilename: pool/main/r/remote-pkg.deb\nSHA256: dummyhash\nSize: 100\n\n" +
	"Package: absolute-pkg\nVersion: 2.0\nArchitecture: all\nFilename: https://cdn.example.com/absolute-pkg.deb\n"

func gzipBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	gw.Write(data)
	gw.Close()
	return buf.Bytes()
}

func xzBytes(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := xz.NewWriter(&buf)
	if err != nil {
		t.Fatal(err)
	}
	w.Write(data)
	w.Close()
	return buf.Bytes()
}

func serve(files map[string][]byte) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		content, ok := files[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Write(content)
	}))
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.Out = io.Discard
	return l
}

func TestFetchSignedSuite(t *testing.T) {
	privKey := generateTestKey(t)
	index := xzBytes(t, []byte(remotePackages))
	inRelease, err := SignRelease(releaseFor(map[string][]byte{"main/binary-amd64/Packages.xz": index}), privKey)
	if err != nil {
		t.Fatal(err)
	}
	ts := serve(map[string][]byte{
		"/debian/dists/stable/InRelease":                      inRelease,
		"/debian/dists/stable/main/binary-amd64/Packages.xz": index,
	})
	defer ts.Close()

	f := &Fetcher{Client: ts.Client(), Keyring: testKeyring(t, privKey, true), Log: quietLogger()}
	src := Source{URL: ts.URL + "/debian", Suite: "stable", Component: "main"}
	versions, err := f.Fetch(context.Background(), src, "amd64")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}

	// Verify URL rewriting
	if want := ts.URL + "/debian/pool/main/r/remote-pkg.deb"; versions[0].Filename != want {
		t.Errorf("expected filename %s, got %s", want, versions[0].Filename)
	}
	if want := "https://cdn.example.com/absolute-pkg.deb"; versions[1].Filename != want {
		t.Errorf("absolute filename rewritten to %s", versions[1].Filename)
	}
	if versions[0].Size != 100 || versions[0].SHA256 != "dummyhash" {
		t.Errorf("unexpected file info %+v", versions[0])
	}
	if !versions[0].Trusted() || versions[0].Origins[0].Archive != "stable" {
		t.Errorf("unexpected origin %+v", versions[0].Origins)
	}

	// A keyring without the signing key rejects the repository.
	f.Keyring = testKeyring(t, generateTestKey(t), true)
	if _, err := f.Fetch(context.Background(), src, "amd64"); err == nil {
		t.Error("expected a signature error")
	}
}

func TestFetchChecksumMismatch(t *testing.T) {
	index := gzipBytes(t, []byte(remotePackages))
	ts := serve(map[string][]byte{
		"/dists/stable/Release":                      releaseFor(map[string][]byte{"main/binary-amd64/Packages.gz": []byte("other")}),
		"/dists/stable/main/binary-amd64/Packages.gz": index,
	})
	defer ts.Close()

	f := &Fetcher{Client: ts.Client(), Log: quietLogger()}
	src := Source{URL: ts.URL, Suite: "stable", Component: "main"}
	if _, err := f.Fetch(context.Background(), src, "amd64"); err == nil {
		t.Error("expected a checksum error")
	}
}

func TestFetchFlatRepository(t *testing.T) {
	// Mock server serving Packages.gz only
	ts := serve(map[string][]byte{"/repo/Packages.gz": gzipBytes(t, []byte(remotePackages))})
	defer ts.Close()

	f := &Fetcher{Client: ts.Client(), Log: quietLogger()}
	versions, err := f.Fetch(context.Background(), Source{URL: ts.URL + "/repo/", Trusted: true}, "amd64")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if want := ts.URL + "/repo/pool/main/r/remote-pkg.deb"; versions[0].Filename != want {
		t.Errorf("expected filename %s, got %s", want, versions[0].Filename)
	}
	if !versions[0].Trusted() {
		t.Error("an explicitly trusted source is trusted")
	}
}

func TestFetchErrors(t *testing.T) {
	ts := serve(map[string][]byte{})
	defer ts.Close()

	f := &Fetcher{Client: ts.Client(), Log: quietLogger()}
	if _, err := f.Fetch(context.Background(), Source{URL: ts.URL}, "amd64"); err == nil {
		t.Error("expected an error when no index exists")
	}
	if _, err := f.Fetch(context.Background(), Source{URL: ts.URL, Suite: "stable"}, "amd64"); err == nil {
		t.Error("expected an error for a suite without component")
	}

	failing := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer failing.Close()
	f.Client = failing.Client()
	if _, err := f.Fetch(context.Background(), Source{URL: failing.URL}, "amd64"); err == nil {
		t.Error("expected an error on server failure")
	}
}
