// Package download fetches single files over HTTPS.
package download

import (
	"context"
	"net/http"
	"net/url"
	"os"
	"strings"

	cleanhttp "github.com/hashicorp/go-cleanhttp"
	getter "github.com/hashicorp/go-getter"

	"github.com/input-output-hk/report-aggregator/internal/errors"
)

const httpsScheme = "https"

// InvalidURLError is returned for download URLs that are not absolute https URLs. It is raised before any I/O.
type InvalidURLError struct {
	URL string
}

func (err InvalidURLError) Error() string {
	return "invalid URL: " + err.URL
}

// Downloader fetches files with the go-getter HTTP getter.
type Downloader struct {
	httpClient *http.Client
	header     http.Header
}

// Option is a function that configures a Downloader.
type Option func(*Downloader)

// WithHTTPClient sets the HTTP client used for the downloads.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(d *Downloader) {
		d.httpClient = httpClient
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(d *Downloader) {
		d.header.Add(key, value)
	}
}

// WithBearerToken authorizes the requests with the given token. An empty token is ignored.
// The header is dropped by the HTTP client when a redirect leaves the original host.
func WithBearerToken(token string) Option {
	return func(d *Downloader) {
		if token != "" {
			d.header.Set("Authorization", "Bearer "+token)
		}
	}
}

// New returns a Downloader.
func New(opts ...Option) *Downloader {
	d := &Downloader{
		httpClient: cleanhttp.DefaultClient(),
		header:     http.Header{},
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Download saves the content at rawURL to dst, replacing any partial file left by an earlier attempt.
func (d *Downloader) Download(ctx context.Context, rawURL, dst string) error {
	src, err := url.Parse(rawURL)
	if err != nil || !strings.EqualFold(src.Scheme, httpsScheme) || src.Host == "" {
		return errors.New(InvalidURLError{URL: rawURL})
	}

	// the getter resumes existing files with a range request, always start over
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return errors.New(err)
	}

	httpGetter := &getter.HttpGetter{
		Client:              d.httpClient,
		Header:              d.header.Clone(),
		DoNotCheckHeadFirst: true,
	}
	httpGetter.SetClient(&getter.Client{Ctx: ctx})

	if err := httpGetter.GetFile(dst, src); err != nil {
		os.Remove(dst) //nolint:errcheck

		return errors.Errorf("failed to download %s: %w", src.Redacted(), err)
	}

	return nil
}
