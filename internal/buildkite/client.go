// Package buildkite provides a client for the Buildkite REST API, used to fetch the results of the nightly pipelines.
package buildkite

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	cleanhttp "github.com/hashicorp/go-cleanhttp"

	"github.com/input-output-hk/report-aggregator/internal/download"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

const (
	// DefaultBaseURL is the Buildkite REST API endpoint.
	DefaultBaseURL = "https://api.buildkite.com/v2"
	// DefaultOrganization owns the nightly pipelines.
	DefaultOrganization = "input-output-hk"

	// BuildStateFinished selects builds that ran to completion, whatever their outcome.
	BuildStateFinished = "finished"

	perPage = 100
)

// Pipeline represents a Buildkite pipeline.
type Pipeline struct {
	Slug          string     `json:"slug"`
	Name          string     `json:"name"`
	DefaultBranch string     `json:"default_branch"`
	ArchivedAt    *time.Time `json:"archived_at"`
}

// Build represents a build of a pipeline.
type Build struct {
	Number     int        `json:"number"`
	State      string     `json:"state"`
	FinishedAt *time.Time `json:"finished_at"`
}

// Artifact represents a file uploaded by a job of a build.
type Artifact struct {
	ID          string `json:"id"`
	JobID       string `json:"job_id"`
	Filename    string `json:"filename"`
	DownloadURL string `json:"download_url"`
}

// Client represents a Buildkite API client.
type Client struct {
	baseURL      string
	organization string
	token        string
	httpClient   *http.Client
	fs           vfs.FS

	downloader *download.Downloader
	tracker    *marker.Tracker
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client for the Buildkite client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the base URL for the Buildkite API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithOrganization sets the organization whose pipelines are listed.
func WithOrganization(organization string) Option {
	return func(c *Client) {
		c.organization = organization
	}
}

// WithToken sets the API access token.
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithFS sets the filesystem the artifacts are stored on.
func WithFS(fs vfs.FS) Option {
	return func(c *Client) {
		c.fs = fs
	}
}

// NewClient creates a new Buildkite API client with optional configuration.
func NewClient(opts ...Option) *Client {
	client := &Client{
		baseURL:      DefaultBaseURL,
		organization: DefaultOrganization,
		httpClient:   cleanhttp.DefaultPooledClient(),
		fs:           vfs.NewOSFS(),
	}

	for _, opt := range opts {
		opt(client)
	}

	client.downloader = download.New(download.WithHTTPClient(client.httpClient), download.WithBearerToken(client.token))
	client.tracker = marker.NewTracker(client.fs)

	return client
}

// Pipelines returns all pipelines of the organization.
func (c *Client) Pipelines(ctx context.Context) ([]Pipeline, error) {
	path := fmt.Sprintf("/organizations/%s/pipelines", url.PathEscape(c.organization))

	return list[Pipeline](ctx, c, path, url.Values{})
}

// Builds returns the builds of the pipeline in the given state that finished after finishedFrom, newest first.
func (c *Client) Builds(ctx context.Context, pipeline, state string, finishedFrom time.Time) ([]Build, error) {
	path := fmt.Sprintf("/organizations/%s/pipelines/%s/builds", url.PathEscape(c.organization), url.PathEscape(pipeline))

	query := url.Values{}
	query.Set("state", state)
	query.Set("finished_from", finishedFrom.UTC().Format(time.RFC3339))

	return list[Build](ctx, c, path, query)
}

// Artifacts returns the artifacts of a build.
func (c *Client) Artifacts(ctx context.Context, pipeline string, build int) ([]Artifact, error) {
	path := fmt.Sprintf("/organizations/%s/pipelines/%s/builds/%d/artifacts", url.PathEscape(c.organization), url.PathEscape(pipeline), build)

	return list[Artifact](ctx, c, path, url.Values{})
}

// list fetches every page of a list endpoint. A page shorter than requested is the last one.
func list[T any](ctx context.Context, c *Client, path string, query url.Values) ([]T, error) {
	var items []T

	query.Set("per_page", strconv.Itoa(perPage))

	for page := 1; ; page++ {
		query.Set("page", strconv.Itoa(page))

		var pageItems []T
		if err := c.get(ctx, path, query, &pageItems); err != nil {
			return nil, err
		}

		items = append(items, pageItems...)

		if len(pageItems) < perPage {
			return items, nil
		}
	}
}

func (c *Client) get(ctx context.Context, path string, query url.Values, out any) error {
	reqURL := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return errors.Errorf("failed to create HTTP request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Errorf("Buildkite API request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("Buildkite API request to %s failed with status %d: %s", path, resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Errorf("failed to read response body: %w", err)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Errorf("failed to parse Buildkite API response: %w", err)
	}

	return nil
}
