// Package manifest describes a package universe in a declarative
// configuration file, and builds the APT cache and the candidates to check
// from it.
package manifest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/ProtonMail/go-crypto/openpgp"
	"github.com/pelletier/go-toml/v2"
	"github.com/sirupsen/logrus"
	"go.yaml.in/yaml/v3"

	"github.com/etnz/debcheck/apt"
)

// NewUniverse loads and parses a Universe configuration from the specified file path.
// JSON, YAML and TOML are supported, chosen by the file extension.
func NewUniverse(path string) (*Universe, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read universe file: %w", err)
	}

	var u Universe
	if err := unmarshal(path, content, &u); err != nil {
		return nil, fmt.Errorf("failed to parse universe file %s: %w", path, err)
	}
	u.filePath = path
	return &u, nil
}

// Universe is the configuration of a package universe: the native
// architecture, the installed packages and the indices of the available
// ones. Every path and URL can use the template defines, "arch" is always
// defined.
type Universe struct {
	// Architecture is the native architecture, as reported by dpkg.
	Architecture string `json:"architecture" yaml:"architecture" toml:"architecture"`
	// Status is the path of the dpkg status database. No package is
	// installed when empty.
	Status string `json:"status" yaml:"status" toml:"status"`
	// Defines is a map of variables available to templates.
	Defines map[string]string `json:"defines" yaml:"defines" toml:"defines"`
	// Indices are Packages files, local paths or URLs.
	Indices []Index `json:"indices" yaml:"indices" toml:"indices"`
	// Sources are remote APT repositories.
	Sources []Source `json:"sources" yaml:"sources" toml:"sources"`
	// Keyring is the path of the OpenPGP keyring authenticating the sources.
	Keyring string `json:"keyring" yaml:"keyring" toml:"keyring"`
	// Packages lists the packages to check: .deb or .dsc files, or package
	// definition files.
	Packages []string `json:"packages" yaml:"packages" toml:"packages"`
	// Releases lists GitHub releases whose .deb assets are checked too.
	Releases []Release `json:"releases" yaml:"releases" toml:"releases"`

	filePath string
}

// Index is a Packages index file, plain or compressed.
type Index struct {
	Path string `json:"path" yaml:"path" toml:"path"`
	// Archive names the index in the version origins, "local" when empty.
	Archive string `json:"archive" yaml:"archive" toml:"archive"`
	// Trusted marks the versions of the index as authenticated.
	Trusted bool `json:"trusted" yaml:"trusted" toml:"trusted"`
}

// Source is a remote APT repository.
type Source struct {
	URL           string   `json:"url" yaml:"url" toml:"url"`
	Suite         string   `json:"suite" yaml:"suite" toml:"suite"`
	Component     string   `json:"component" yaml:"component" toml:"component"`
	Architectures []string `json:"architectures" yaml:"architectures" toml:"architectures"`
	Trusted       bool     `json:"trusted" yaml:"trusted" toml:"trusted"`
}

// Release is a GitHub release, all the releases of the repository when Tag
// is empty.
type Release struct {
	// Repo is "owner/name" or "https://github.com/owner/name".
	Repo string `json:"repo" yaml:"repo" toml:"repo"`
	Tag  string `json:"tag" yaml:"tag" toml:"tag"`
}

// Options holds the runtime dependencies of Build and Candidates.
type Options struct {
	// Client is used for every download, http.DefaultClient when nil.
	Client *http.Client
	// Log receives the warnings of the remote fetches.
	Log logrus.FieldLogger
	// Listener receives the build events. Optional.
	Listener Listener
	// GitHubToken authenticates the GitHub API requests. Optional.
	GitHubToken string
}

func (o Options) client() *http.Client {
	if o.Client == nil {
		return http.DefaultClient
	}
	return o.Client
}

func (o Options) emit(e fmt.Stringer) {
	if o.Listener != nil {
		o.Listener(e)
	}
}

// Build creates the APT cache of the universe: the status database first,
// then the local indices, then the remote sources.
func (u *Universe) Build(ctx context.Context, opts Options) (*apt.Cache, error) {
	if u.Architecture == "" {
		return nil, fmt.Errorf("universe must specify 'architecture'")
	}
	eng := u.engine()
	cache := apt.NewCache(u.Architecture)

	if u.Status != "" {
		status, err := eng.render("status", u.Status)
		if err != nil {
			return nil, fmt.Errorf("rendering status path: %w", err)
		}
		f, err := os.Open(u.resolve(status))
		if err != nil {
			return nil, fmt.Errorf("opening status database: %w", err)
		}
		n, err := cache.LoadStatus(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("reading status database %s: %w", status, err)
		}
		opts.emit(EventStatusLoaded{Path: status, Packages: n})
	}

	for i, idx := range u.Indices {
		path, err := eng.render(fmt.Sprintf("indices[%d].path", i), idx.Path)
		if err != nil {
			return nil, err
		}
		content, err := loadResource(ctx, opts.client(), u.resolve(path))
		if err != nil {
			return nil, fmt.Errorf("reading index %s: %w", path, err)
		}
		archive := idx.Archive
		if archive == "" {
			archive = "local"
		}
		origin := apt.Origin{Site: path, Archive: archive, Trusted: idx.Trusted}
		n, err := cache.LoadPackages(path, bytes.NewReader(content), origin)
		if err != nil {
			return nil, fmt.Errorf("reading index %s: %w", path, err)
		}
		opts.emit(EventIndexLoaded{Path: path, Packages: n, Trusted: idx.Trusted})
	}

	if len(u.Sources) == 0 {
		return cache, nil
	}
	keyring, err := u.loadKeyring(eng)
	if err != nil {
		return nil, err
	}
	fetcher := &apt.Fetcher{Client: opts.Client, Keyring: keyring, Log: opts.Log}
	for i, s := range u.Sources {
		src, err := s.render(eng, i)
		if err != nil {
			return nil, err
		}
		versions, err := fetcher.Fetch(ctx, src, u.Architecture)
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", src.URL, err)
		}
		n := cache.AddAvailable(versions...)
		opts.emit(EventSourceFetched{URL: src.URL, Suite: src.Suite, Component: src.Component, Packages: n})
	}
	return cache, nil
}

func (s Source) render(eng *templateEngine, i int) (apt.Source, error) {
	var src apt.Source
	var err error
	if src.URL, err = eng.render(fmt.Sprintf("sources[%d].url", i), s.URL); err != nil {
		return src, err
	}
	if src.Suite, err = eng.render(fmt.Sprintf("sources[%d].suite", i), s.Suite); err != nil {
		return src, err
	}
	if src.Component, err = eng.render(fmt.Sprintf("sources[%d].component", i), s.Component); err != nil {
		return src, err
	}
	src.Architectures = s.Architectures
	src.Trusted = s.Trusted
	return src, nil
}

func (u *Universe) loadKeyring(eng *templateEngine) (openpgp.EntityList, error) {
	if u.Keyring == "" {
		return nil, nil
	}
	path, err := eng.render("keyring", u.Keyring)
	if err != nil {
		return nil, fmt.Errorf("rendering keyring path: %w", err)
	}
	f, err := os.Open(u.resolve(path))
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	defer f.Close()
	keyring, err := apt.ReadKeyring(f)
	if err != nil {
		return nil, fmt.Errorf("reading keyring %s: %w", path, err)
	}
	return keyring, nil
}

// engine returns the template engine of the universe defines.
func (u *Universe) engine() *templateEngine {
	return newTemplateEngine(u.Defines).with(map[string]string{"arch": u.Architecture})
}

func isURL(path string) bool {
	return strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://")
}

// resolve makes a relative path relative to the universe file.
func (u *Universe) resolve(path string) string { return resolveFrom(u.filePath, path) }

// resolveFrom makes a relative path relative to the directory of base.
func resolveFrom(base, path string) string {
	if filepath.IsAbs(path) || isURL(path) || base == "" {
		return path
	}
	return filepath.Join(filepath.Dir(base), path)
}

// loadResource reads a local file, or downloads a URL.
func loadResource(ctx context.Context, client *http.Client, path string) ([]byte, error) {
	if !isURL(path) {
		return os.ReadFile(path)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch resource %s: %w", path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch resource %s: %s", path, resp.Status)
	}
	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read resource body %s: %w", path, err)
	}
	return content, nil
}

// unmarshal parses JSON, YAML or TOML based on file extension. Unknown
// fields are rejected.
func unmarshal(path string, data []byte, v interface{}) error {
	r := bytes.NewReader(data)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		return dec.Decode(v)
	case ".toml":
		return toml.NewDecoder(r).DisallowUnknownFields().Decode(v)
	}
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
