// Package github harvests Debian packages published as GitHub release assets.
package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Repo defines a GitHub repository to harvest packages from.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

// ParseRepo parses "owner/name", "github.com/owner/name" or
// "https://github.com/owner/name".
func ParseRepo(s string) (Repo, error) {
	trimmed := strings.TrimPrefix(s, "https://")
	trimmed = strings.TrimPrefix(trimmed, "http://")
	trimmed = strings.TrimPrefix(trimmed, "github.com/")
	parts := strings.Split(strings.TrimSuffix(trimmed, "/"), "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Repo{}, fmt.Errorf("invalid GitHub repository %q, expected owner/name", s)
	}
	return Repo{Owner: parts[0], Name: parts[1]}, nil
}

type release struct {
	ID      int64   `json:"id"`
	TagName string  `json:"tag_name"`
	Assets  []Asset `json:"assets"`
}

// Asset is a file attached to a release.
type Asset struct {
	ID                 int64  `json:"id"`
	Name               string `json:"name"`
	Size               int64  `json:"size"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Client reads the GitHub REST API.
type Client struct {
	// HTTP is used for every request, http.DefaultClient when nil.
	HTTP *http.Client
	// Token authenticates the requests when set.
	Token string
	// BaseURL is the API root, https://api.github.com when empty.
	BaseURL string
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "token "+c.Token)
	}
	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("GET %s: status %d", url, resp.StatusCode)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v interface{}) error {
	base := c.BaseURL
	if base == "" {
		base = "https://api.github.com"
	}
	resp, err := c.do(ctx, strings.TrimSuffix(base, "/")+path)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) releases(ctx context.Context, r Repo, tag string) ([]release, error) {
	if tag != "" {
		var rel release
		if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/releases/tags/%s", r.Owner, r.Name, tag), &rel); err != nil {
			return nil, fmt.Errorf("release %s of %s: %w", tag, r, err)
		}
		return []release{rel}, nil
	}
	var releases []release
	if err := c.getJSON(ctx, fmt.Sprintf("/repos/%s/%s/releases", r.Owner, r.Name), &releases); err != nil {
		return nil, fmt.Errorf("releases of %s: %w", r, err)
	}
	return releases, nil
}

// DebAssets returns the assets ending in ".deb" of the release tag of r,
// or of every release when tag is empty.
func (c *Client) DebAssets(ctx context.Context, r Repo, tag string) ([]Asset, error) {
	releases, err := c.releases(ctx, r, tag)
	if err != nil {
		return nil, err
	}
	var assets []Asset
	for _, rel := range releases {
		for _, a := range rel.Assets {
			if strings.HasSuffix(a.Name, ".deb") {
				assets = append(assets, a)
			}
		}
	}
	return assets, nil
}

// Download returns the content of an asset.
func (c *Client) Download(ctx context.Context, a Asset) ([]byte, error) {
	resp, err := c.do(ctx, a.BrowserDownloadURL)
	if err != nil {
		return nil, fmt.Errorf("downloading %s: %w", a.Name, err)
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
