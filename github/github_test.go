package github

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"reflect"
	"strings"
	"testing"
)

// fakeGithub implements http.RoundTripper to mock GitHub API.
type fakeGithub struct {
	// Map "owner/repo" -> list of releases
	repos map[string][]*release
	// Map download URL -> content
	downloads        map[string][]byte
	requestValidator func(*http.Request)
}

func newFakeGithub() *fakeGithub {
	return &fakeGithub{
		repos:     make(map[string][]*release),
		downloads: make(map[string][]byte),
	}
}

func (f *fakeGithub) addRelease(owner, repo, tag string, assets []Asset) {
	key := owner + "/" + repo
	rel := &release{
		ID:      int64(len(f.repos[key]) + 1),
		TagName: tag,
		Assets:  assets,
	}
	f.repos[key] = append(f.repos[key], rel)
}

func response(status int, body []byte) *http.Response {
	return &http.Response{StatusCode: status, Body: io.NopCloser(bytes.NewReader(body)), Header: make(http.Header)}
}

func (f *fakeGithub) RoundTrip(req *http.Request) (*http.Response, error) {
	if f.requestValidator != nil {
		f.requestValidator(req)
	}

	if content, ok := f.downloads[req.URL.String()]; ok {
		return response(200, content), nil
	}

	parts := strings.Split(strings.TrimPrefix(req.URL.Path, "/"), "/")
	// parts example: ["repos", "owner", "repo", "releases", ...]
	if req.URL.Host == "api.github.com" && req.Method == "GET" && len(parts) >= 4 && parts[0] == "repos" && parts[3] == "releases" {
		releases := f.repos[parts[1]+"/"+parts[2]]

		// GET /repos/:owner/:repo/releases
		if len(parts) == 4 {
			if releases == nil {
				releases = []*release{}
			}
			body, _ := json.Marshal(releases)
			return response(200, body), nil
		}

		// GET /repos/:owner/:repo/releases/tags/:tag
		if len(parts) == 6 && parts[4] == "tags" {
			for _, rel := range releases {
				if rel.TagName == parts[5] {
					body, _ := json.Marshal(rel)
					return response(200, body), nil
				}
			}
		}
	}
	return response(404, []byte("Not Found")), nil
}

func (f *fakeGithub) client(token string) *Client {
	return &Client{HTTP: &http.Client{Transport: f}, Token: token}
}

func TestParseRepo(t *testing.T) {
	for _, s := range []string{"etnz/debcheck", "github.com/etnz/debcheck", "https://github.com/etnz/debcheck/"} {
		r, err := ParseRepo(s)
		if err != nil {
			t.Errorf("ParseRepo(%q): %v", s, err)
			continue
		}
		if r != (Repo{Owner: "etnz", Name: "debcheck"}) || r.String() != "etnz/debcheck" {
			t.Errorf("ParseRepo(%q) = %+v", s, r)
		}
	}
	for _, s := range []string{"", "debcheck", "etnz/debcheck/extra", "/debcheck"} {
		if _, err := ParseRepo(s); err == nil {
			t.Errorf("ParseRepo(%q): expected an error", s)
		}
	}
}

func TestDebAssets(t *testing.T) {
	fake := newFakeGithub()
	fake.addRelease("owner1", "repo1", "v1.0", []Asset{
		{Name: "app_1.0_amd64.deb", BrowserDownloadURL: "http://dl/app_1.0.deb"},
		{Name: "readme.txt", BrowserDownloadURL: "http://dl/readme.txt"},
	})
	fake.addRelease("owner1", "repo1", "v2.0", []Asset{
		{Name: "app_2.0_amd64.deb", BrowserDownloadURL: "http://dl/app_2.0.deb"},
	})
	c := fake.client("dummy-token")
	repo := Repo{Owner: "owner1", Name: "repo1"}

	var names []string
	assets, err := c.DebAssets(context.Background(), repo, "")
	if err != nil {
		t.Fatal(err)
	}
	for _, a := range assets {
		names = append(names, a.Name)
	}
	if !reflect.DeepEqual(names, []string{"app_1.0_amd64.deb", "app_2.0_amd64.deb"}) {
		t.Errorf("DebAssets() = %v", names)
	}

	assets, err = c.DebAssets(context.Background(), repo, "v2.0")
	if err != nil {
		t.Fatal(err)
	}
	if len(assets) != 1 || assets[0].BrowserDownloadURL != "http://dl/app_2.0.deb" {
		t.Errorf("DebAssets(v2.0) = %+v", assets)
	}

	if _, err := c.DebAssets(context.Background(), repo, "v3.0"); err == nil {
		t.Error("expected an error for a missing tag")
	}
	if assets, err := c.DebAssets(context.Background(), Repo{Owner: "o", Name: "empty"}, ""); err != nil || len(assets) != 0 {
		t.Errorf("empty repository: %v, %v", assets, err)
	}
}

func TestDownload(t *testing.T) {
	fake := newFakeGithub()
	fake.downloads["http://dl/app_1.0.deb"] = []byte("binary-content")
	c := fake.client("")

	content, err := c.Download(context.Background(), Asset{Name: "app_1.0.deb", BrowserDownloadURL: "http://dl/app_1.0.deb"})
	if err != nil || string(content) != "binary-content" {
		t.Errorf("Download() = %q, %v", content, err)
	}
	if _, err := c.Download(context.Background(), Asset{Name: "gone.deb", BrowserDownloadURL: "http://dl/gone.deb"}); err == nil {
		t.Error("expected an error for a missing asset")
	}
}

func TestTokenPassing(t *testing.T) {
	fake := newFakeGithub()

	// Case 1: Token present
	token := "secret-token"
	fake.requestValidator = func(req *http.Request) {
		auth := req.Header.Get("Authorization")
		expected := "token " + token
		if auth != expected {
			t.Errorf("Expected Authorization header %q, got %q", expected, auth)
		}
	}
	_, _ = fake.client(token).DebAssets(context.Background(), Repo{Owner: "o", Name: "r"}, "")

	// Case 2: Token empty
	fake.requestValidator = func(req *http.Request) {
		auth := req.Header.Get("Authorization")
		if auth != "" {
			t.Errorf("Expected no Authorization header, got %q", auth)
		}
	}
	_, _ = fake.client("").DebAssets(context.Background(), Repo{Owner: "o", Name: "r"}, "")
}
