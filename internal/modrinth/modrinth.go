// Package modrinth is a minimal client for the pieces of the Modrinth API
// the installer needs: listing a project's versions and fetching a version's
// distributable pack archive.
package modrinth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// BaseURL is the production Modrinth API root.
const BaseURL = "https://api.modrinth.com/v2"

// UserAgent identifies the tool to the catalog, which rejects anonymous
// clients.
const UserAgent = "mrpack-installer/1.0 (github.com/Turbootzz/mrpack-installer)"

// ErrCatalogUnreachable covers transport failures and non-2xx responses
// from the catalog. Callers treat it as fatal: nothing on disk has been
// touched yet when it occurs.
var ErrCatalogUnreachable = errors.New("modpack catalog unreachable")

// Version is one published version of a modpack project.
type Version struct {
	ID            string        `json:"id"`
	ProjectID     string        `json:"project_id"`
	Name          string        `json:"name"`
	VersionNumber string        `json:"version_number"`
	VersionType   string        `json:"version_type"`
	DatePublished time.Time     `json:"date_published"`
	Files         []VersionFile `json:"files"`
}

// VersionFile is one downloadable artifact attached to a version.
type VersionFile struct {
	URL      string            `json:"url"`
	Filename string            `json:"filename"`
	Primary  bool              `json:"primary"`
	Size     int64             `json:"size"`
	Hashes   map[string]string `json:"hashes"`
}

// Client talks to one catalog endpoint.
type Client struct {
	http *resty.Client
}

// NewClient builds a catalog client. An empty baseURL selects the
// production API.
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = BaseURL
	}
	c := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", UserAgent).
		SetTimeout(2 * time.Minute)
	return &Client{http: c}
}

// ProjectVersions lists a project's published versions in catalog order,
// newest first.
func (c *Client) ProjectVersions(ctx context.Context, projectID string) ([]Version, error) {
	var versions []Version
	resp, err := c.http.R().
		SetContext(ctx).
		SetResult(&versions).
		Get("/project/" + projectID + "/version")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreachable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: listing versions of %s: %s", ErrCatalogUnreachable, projectID, resp.Status())
	}
	return versions, nil
}

// DownloadPack fetches a version's distributable archive into memory. Pack
// archives hold an index document plus override files and stay small, so
// buffering them beats managing a temp extraction directory.
func (c *Client) DownloadPack(ctx context.Context, file VersionFile) ([]byte, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		Get(file.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCatalogUnreachable, err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("%w: fetching %s: %s", ErrCatalogUnreachable, file.Filename, resp.Status())
	}
	return resp.Body(), nil
}

// PackFile picks the distributable .mrpack artifact from a version's file
// list, preferring the one flagged primary.
func PackFile(v Version) (VersionFile, bool) {
	var fallback VersionFile
	var found bool
	for _, f := range v.Files {
		if !strings.HasSuffix(strings.ToLower(f.Filename), ".mrpack") {
			continue
		}
		if f.Primary {
			return f, true
		}
		if !found {
			fallback = f
			found = true
		}
	}
	return fallback, found
}
