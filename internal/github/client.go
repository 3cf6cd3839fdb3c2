// Package github fetches test results and coverage artifacts of GitHub Actions workflow runs.
package github

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v53/github"
	cleanhttp "github.com/hashicorp/go-cleanhttp"
	"golang.org/x/oauth2"

	"github.com/input-output-hk/report-aggregator/internal/archive"
	"github.com/input-output-hk/report-aggregator/internal/download"
	"github.com/input-output-hk/report-aggregator/internal/errors"
	"github.com/input-output-hk/report-aggregator/internal/marker"
	"github.com/input-output-hk/report-aggregator/internal/vfs"
)

const (
	// DefaultRepository is the repository whose workflows produce the results.
	DefaultRepository = "input-output-hk/cardano-node-tests"

	workflowStateActive = "active"
	runStatusCompleted  = "completed"
	perPage             = 100

	acceptHeader = "application/vnd.github+json"
)

// Client lists workflow runs of one repository and downloads their artifacts.
type Client struct {
	api        *github.Client
	downloader *download.Downloader
	extractor  archive.Extractor
	tracker    *marker.Tracker
	fs         vfs.FS

	owner string
	repo  string

	httpClient *http.Client
	baseURL    string
	token      string
}

// Option is a function that configures a Client.
type Option func(*Client)

// WithHTTPClient sets the HTTP client for the API requests and the artifact downloads.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithBaseURL sets the base URL for the GitHub API.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// WithToken authenticates the API requests and the artifact downloads.
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

// WithExtractor sets the extractor used for the artifact bundles.
func WithExtractor(extractor archive.Extractor) Option {
	return func(c *Client) {
		c.extractor = extractor
	}
}

// NewClient creates a client for the repository given in the format "owner/repo".
func NewClient(repository string, opts ...Option) (*Client, error) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, errors.Errorf("repository must be in format 'owner/repo', got: %q", repository)
	}

	client := &Client{
		owner:      parts[0],
		repo:       parts[1],
		httpClient: cleanhttp.DefaultPooledClient(),
		fs:         vfs.NewOSFS(),
		extractor:  archive.NewExtractor(),
	}

	for _, opt := range opts {
		opt(client)
	}

	apiHTTPClient := client.httpClient
	if client.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client.httpClient)
		apiHTTPClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: client.token}))
	}

	client.api = github.NewClient(apiHTTPClient)

	if client.baseURL != "" {
		baseURL, err := url.Parse(strings.TrimSuffix(client.baseURL, "/") + "/")
		if err != nil {
			return nil, errors.New(err)
		}

		client.api.BaseURL = baseURL
	}

	client.downloader = download.New(
		download.WithHTTPClient(client.httpClient),
		download.WithHeader("Accept", acceptHeader),
		download.WithBearerToken(client.token),
	)
	client.tracker = marker.NewTracker(client.fs)

	return client, nil
}

// Repository returns the "owner/repo" the client works with.
func (c *Client) Repository() string {
	return c.owner + "/" + c.repo
}

// workflows returns the active workflows whose name contains nameBase.
func (c *Client) workflows(ctx context.Context, nameBase string) ([]*github.Workflow, error) {
	var (
		found []*github.Workflow
		opts  = &github.ListOptions{PerPage: perPage}
	)

	for {
		list, resp, err := c.api.Actions.ListWorkflows(ctx, c.owner, c.repo, opts)
		if err != nil {
			return nil, errors.Errorf("failed to list workflows of %s: %w", c.Repository(), err)
		}

		for _, workflow := range list.Workflows {
			if strings.Contains(workflow.GetName(), nameBase) && workflow.GetState() == workflowStateActive {
				found = append(found, workflow)
			}
		}

		if resp.NextPage == 0 {
			return found, nil
		}

		opts.Page = resp.NextPage
	}
}

// eachRun calls fn for the runs of the workflow, newest first, until fn returns false or the runs are exhausted.
func (c *Client) eachRun(ctx context.Context, workflow *github.Workflow, opts *github.ListWorkflowRunsOptions, fn func(run *github.WorkflowRun) bool) error {
	opts.ListOptions = github.ListOptions{PerPage: perPage}

	for {
		runs, resp, err := c.api.Actions.ListWorkflowRunsByID(ctx, c.owner, c.repo, workflow.GetID(), opts)
		if err != nil {
			return errors.Errorf("failed to list runs of workflow %q: %w", workflow.GetName(), err)
		}

		for _, run := range runs.WorkflowRuns {
			if !fn(run) {
				return nil
			}
		}

		if resp.NextPage == 0 {
			return nil
		}

		opts.Page = resp.NextPage
	}
}

// artifacts returns all artifacts of the run, in the order the API lists them.
func (c *Client) artifacts(ctx context.Context, run *github.WorkflowRun) ([]*github.Artifact, error) {
	var (
		found []*github.Artifact
		opts  = &github.ListOptions{PerPage: perPage}
	)

	for {
		list, resp, err := c.api.Actions.ListWorkflowRunArtifacts(ctx, c.owner, c.repo, run.GetID(), opts)
		if err != nil {
			return nil, errors.Errorf("failed to list artifacts of run %d: %w", run.GetRunNumber(), err)
		}

		found = append(found, list.Artifacts...)

		if resp.NextPage == 0 {
			return found, nil
		}

		opts.Page = resp.NextPage
	}
}

func createdBefore(run *github.WorkflowRun, since time.Time) bool {
	return run.GetCreatedAt().Before(since)
}
