package manifest

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/etnz/debcheck/deb"
	"github.com/etnz/debcheck/github"
	"github.com/etnz/debcheck/installcheck"
)

// Package is a package definition file: a .deb or .dsc input whose control
// fields can be overridden before the check, to try a change of its
// relationships without rebuilding it.
type Package struct {
	// Input is the path or URL of the .deb or .dsc file.
	Input string `json:"input" yaml:"input" toml:"input"`
	// Defines is a map of local variables available to templates in this package.
	Defines map[string]string `json:"defines" yaml:"defines" toml:"defines"`
	// Meta contains control fields to set or override, binary packages only.
	Meta map[string]string `json:"meta" yaml:"meta" toml:"meta"`

	filePath string
	engine   *templateEngine
}

// Candidates loads the packages to check: the Packages entries of the
// universe then the .deb assets of its releases.
func (u *Universe) Candidates(ctx context.Context, opts Options) ([]*installcheck.Candidate, error) {
	eng := u.engine()
	var candidates []*installcheck.Candidate

	for _, raw := range u.Packages {
		path, err := eng.render("package-list", raw)
		if err != nil {
			return nil, fmt.Errorf("rendering package path %q: %w", raw, err)
		}
		pkg := &Package{Input: path, filePath: u.filePath, engine: eng}
		if !isPackageFile(path) {
			if pkg, err = u.loadDefinition(ctx, opts, path, eng); err != nil {
				return nil, err
			}
		}
		c, err := pkg.Load(ctx, u, opts)
		if err != nil {
			return nil, fmt.Errorf("loading %s: %w", path, err)
		}
		candidates = append(candidates, c)
		opts.emit(EventCandidateLoaded{FilePath: path, Package: c.Name, Version: c.Version, Architecture: c.Architecture, Source: c.Source})
	}

	if len(u.Releases) == 0 {
		return candidates, nil
	}
	gh := &github.Client{HTTP: opts.Client, Token: opts.GitHubToken}
	for i, r := range u.Releases {
		slug, err := eng.render(fmt.Sprintf("releases[%d].repo", i), r.Repo)
		if err != nil {
			return nil, err
		}
		tag, err := eng.render(fmt.Sprintf("releases[%d].tag", i), r.Tag)
		if err != nil {
			return nil, err
		}
		repo, err := github.ParseRepo(slug)
		if err != nil {
			return nil, err
		}
		assets, err := gh.DebAssets(ctx, repo, tag)
		if err != nil {
			return nil, err
		}
		for _, a := range assets {
			content, err := gh.Download(ctx, a)
			if err != nil {
				return nil, err
			}
			c, err := binaryCandidate(content, nil, nil)
			if err != nil {
				return nil, fmt.Errorf("loading %s: %w", a.BrowserDownloadURL, err)
			}
			candidates = append(candidates, c)
			opts.emit(EventCandidateLoaded{FilePath: a.BrowserDownloadURL, Package: c.Name, Version: c.Version, Architecture: c.Architecture})
		}
	}
	return candidates, nil
}

func isPackageFile(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, ".deb") || strings.HasSuffix(lower, ".dsc")
}

func (u *Universe) loadDefinition(ctx context.Context, opts Options, path string, eng *templateEngine) (*Package, error) {
	var pkg Package
	pkg.filePath = u.resolve(path)
	content, err := loadResource(ctx, opts.client(), pkg.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read package definition %s: %w", path, err)
	}
	if err := unmarshal(path, content, &pkg); err != nil {
		return nil, fmt.Errorf("failed to parse package definition %s: %w", path, err)
	}
	pkg.engine = eng.with(pkg.Defines)
	return &pkg, nil
}

// Load reads the input of the definition and returns its candidate. A
// relative input is relative to the definition file. Source packages are
// checked for the architecture of u.
func (p *Package) Load(ctx context.Context, u *Universe, opts Options) (*installcheck.Candidate, error) {
	input, err := p.engine.render("input", p.Input)
	if err != nil {
		return nil, fmt.Errorf("rendering input: %w", err)
	}
	if input == "" {
		return nil, fmt.Errorf("package definition must specify 'input'")
	}
	input = resolveFrom(p.filePath, input)
	content, err := loadResource(ctx, opts.client(), input)
	if err != nil {
		return nil, fmt.Errorf("reading input package %s: %w", input, err)
	}

	if strings.HasSuffix(strings.ToLower(input), ".dsc") {
		if len(p.Meta) > 0 {
			return nil, fmt.Errorf("meta overrides only apply to binary packages")
		}
		src, err := deb.NewSourcePackage(bytes.NewReader(content))
		if err != nil {
			return nil, fmt.Errorf("parsing source package %s: %w", input, err)
		}
		return installcheck.FromSource(src, u.Architecture)
	}
	return binaryCandidate(content, p.Meta, p.engine)
}

// binaryCandidate parses a .deb and applies the meta overrides in key order.
func binaryCandidate(content []byte, meta map[string]string, eng *templateEngine) (*installcheck.Candidate, error) {
	pkg, err := deb.NewPackage(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("parsing binary package: %w", err)
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		val, err := eng.render("meta."+k, meta[k])
		if err != nil {
			return nil, fmt.Errorf("rendering meta %s: %w", k, err)
		}
		pkg.Set(k, val)
	}
	return installcheck.FromPackage(pkg)
}
