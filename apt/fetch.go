package apt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/sirupsen/logrus"

	"github.com/etnz/debcheck/deb"
)

// Source is a remote APT repository to read candidate versions from.
// It supports both:
//  1. Flat repositories: just a URL (Suite is empty).
//  2. Standard repositories: URL + Suite + Component (e.g., deb http://deb.debian.org/debian bookworm main).
type Source struct {
	URL       string
	Suite     string
	Component string
	// Architectures overrides the architectures to fetch indices for.
	// The cache architecture is used when empty.
	Architectures []string
	// Trusted marks the repository as authenticated even without a verified
	// InRelease file, like the [trusted=yes] option of sources.list.
	Trusted bool
}

func (s Source) baseURL() string {
	if strings.HasSuffix(s.URL, "/") {
		return s.URL
	}
	return s.URL + "/"
}

// Fetcher downloads and parses the indices of remote repositories.
type Fetcher struct {
	// Client is used for every request, http.DefaultClient when nil.
	Client *http.Client
	// Keyring authenticates InRelease files. Without keys, signatures are
	// not checked and the repository is untrusted.
	Keyring openpgp.EntityList
	// Log receives warnings and progress, the logrus standard logger when nil.
	Log logrus.FieldLogger
}

var errNotFound = errors.New("not found")

// compressions lists the Packages index variants, preferred first.
var compressions = []string{".xz", ".gz", ""}

// Fetch downloads the Packages indices of src for arch and returns their
// versions. Filenames are rewritten to absolute URLs.
func (f *Fetcher) Fetch(ctx context.Context, src Source, arch string) ([]*Version, error) {
	log := f.log().WithField("repository", src.URL)
	base := src.baseURL()
	dir := base
	if src.Suite != "" {
		dir = fmt.Sprintf("%sdists/%s/", base, src.Suite)
		if src.Component == "" {
			return nil, fmt.Errorf("%s: a component is required for suite %s", src.URL, src.Suite)
		}
	}

	release, trusted, err := f.release(ctx, dir, log)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", src.URL, err)
	}
	origin := Origin{Site: src.URL, Archive: src.Suite, Trusted: trusted || src.Trusted}
	if release != nil && origin.Archive == "" {
		origin.Archive = release.Suite
	}

	archs := src.Architectures
	if len(archs) == 0 {
		archs = []string{arch}
	}
	var paths []string
	if src.Suite == "" {
		paths = append(paths, "Packages")
	} else {
		for _, a := range archs {
			// Standard layout: dists/<suite>/<component>/binary-<arch>/Packages
			paths = append(paths, fmt.Sprintf("%s/binary-%s/Packages", src.Component, a))
		}
	}

	var all []*Version
	found := false
	for _, p := range paths {
		versions, err := f.index(ctx, dir, p, release, origin)
		if errors.Is(err, errNotFound) {
			log.WithField("index", p).Warn("no Packages index")
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", src.URL, err)
		}
		found = true
		for _, v := range versions {
			// Rewrite relative filename to absolute URL
			if v.Filename != "" && !strings.HasPrefix(v.Filename, "http://") && !strings.HasPrefix(v.Filename, "https://") {
				v.Filename = base + v.Filename
			}
		}
		log.WithFields(logrus.Fields{"index": p, "packages": len(versions)}).Debug("index fetched")
		all = append(all, versions...)
	}
	if !found {
		return nil, fmt.Errorf("%s: no Packages index found in %s", src.URL, dir)
	}
	return all, nil
}

// release fetches InRelease, falling back to Release. A repository without
// either is accepted but untrusted.
func (f *Fetcher) release(ctx context.Context, dir string, log logrus.FieldLogger) (*Release, bool, error) {
	content, err := f.get(ctx, dir+"InRelease")
	switch {
	case err == nil:
		trusted := false
		if len(f.Keyring) > 0 {
			content, err = VerifyInRelease(content, f.Keyring)
			if err != nil {
				return nil, false, err
			}
			trusted = true
		} else {
			log.Warn("no keyring configured, InRelease signature not checked")
			block, _ := decodeClearsigned(content)
			content = block
		}
		r, err := ParseRelease(content)
		return r, trusted, err
	case !errors.Is(err, errNotFound):
		return nil, false, err
	}

	content, err = f.get(ctx, dir+"Release")
	switch {
	case err == nil:
		log.Warn("repository has no InRelease file, it is not authenticated")
		r, err := ParseRelease(content)
		return r, false, err
	case errors.Is(err, errNotFound):
		log.Warn("repository has no Release file, indices are not checked")
		return nil, false, nil
	}
	return nil, false, err
}

// index downloads the first available compression variant of path.
func (f *Fetcher) index(ctx context.Context, dir, path string, release *Release, origin Origin) ([]*Version, error) {
	for _, ext := range compressions {
		name := path + ext
		content, err := f.get(ctx, dir+name)
		if errors.Is(err, errNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if release != nil && len(release.SHA256) > 0 {
			if err := release.Verify(name, content); err != nil {
				return nil, err
			}
		}
		r, closer, err := deb.Decompress(name, bytes.NewReader(content))
		if err != nil {
			return nil, err
		}
		defer closer.Close()
		return ReadPackages(r, origin)
	}
	return nil, errNotFound
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%s: %w", url, errNotFound)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("failed to fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (f *Fetcher) log() logrus.FieldLogger {
	if f.Log == nil {
		return logrus.StandardLogger()
	}
	return f.Log
}
