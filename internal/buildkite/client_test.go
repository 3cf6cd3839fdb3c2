package buildkite_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/report-aggregator/internal/buildkite"
	"github.com/input-output-hk/report-aggregator/test/helpers"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/organizations/input-output-hk/pipelines", r.URL.Path)
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "100", r.URL.Query().Get("per_page"))

		fmt.Fprint(w, `[{"slug":"cardano-node-tests-nightly","default_branch":"master","archived_at":null}]`)
	}))
	defer server.Close()

	client := buildkite.NewClient(buildkite.WithBaseURL(server.URL), buildkite.WithToken("token"))

	pipelines, err := client.Pipelines(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []buildkite.Pipeline{{Slug: "cardano-node-tests-nightly", DefaultBranch: "master"}}, pipelines)
}

func TestPipelinesHTTPError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	_, err := buildkite.NewClient(buildkite.WithBaseURL(server.URL)).Pipelines(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "failed with status 401")
}

func TestListFollowsPages(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var builds []buildkite.Build

		if r.URL.Query().Get("page") == "1" {
			for i := 0; i < 100; i++ {
				builds = append(builds, buildkite.Build{Number: 200 - i})
			}
		} else {
			builds = append(builds, buildkite.Build{Number: 1})
		}

		assert.NoError(t, json.NewEncoder(w).Encode(builds))
	}))
	defer server.Close()

	builds, err := buildkite.NewClient(buildkite.WithBaseURL(server.URL)).Builds(context.Background(), "nightly", buildkite.BuildStateFinished, time.Now())
	require.NoError(t, err)
	assert.Len(t, builds, 101)
	assert.Equal(t, 1, builds[100].Number)
}

func TestIsActiveNightly(t *testing.T) {
	t.Parallel()

	archived := time.Now()

	testCases := []struct {
		name     string
		pipeline buildkite.Pipeline
		expected bool
	}{
		{name: "nightly", pipeline: buildkite.Pipeline{Slug: "cardano-node-tests-nightly-p2p", DefaultBranch: "master"}, expected: true},
		{name: "disabled", pipeline: buildkite.Pipeline{Slug: "cardano-node-tests-nightly", DefaultBranch: "disabled"}},
		{name: "archived", pipeline: buildkite.Pipeline{Slug: "cardano-node-tests-nightly", DefaultBranch: "master", ArchivedAt: &archived}},
		{name: "other", pipeline: buildkite.Pipeline{Slug: "cardano-node-tests", DefaultBranch: "master"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tc.expected, buildkite.IsActiveNightly(tc.pipeline))
		})
	}
}

func TestFetchNightly(t *testing.T) {
	t.Parallel()

	var (
		downloads atomic.Int32
		server    *httptest.Server
		since     = time.Now().Add(-48 * time.Hour).Truncate(time.Second)
	)

	artifact := func(id, filename string) map[string]string {
		return map[string]string{
			"id":           id,
			"job_id":       "job-" + id,
			"filename":     filename,
			"download_url": server.URL + "/download/" + id,
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/organizations/input-output-hk/pipelines", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[
			{"slug":"cardano-node-tests-nightly","default_branch":"master","archived_at":null},
			{"slug":"cardano-node-tests-nightly-disabled","default_branch":"disabled","archived_at":null},
			{"slug":"cardano-node-tests-nightly-old","default_branch":"master","archived_at":"2024-01-01T00:00:00Z"},
			{"slug":"cardano-node-tests","default_branch":"master","archived_at":null}
		]`)
	})

	mux.HandleFunc("/organizations/input-output-hk/pipelines/{pipeline}/builds", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "cardano-node-tests-nightly", r.PathValue("pipeline"))
		assert.Equal(t, "finished", r.URL.Query().Get("state"))

		finishedFrom, err := time.Parse(time.RFC3339, r.URL.Query().Get("finished_from"))
		assert.NoError(t, err)
		assert.True(t, since.Equal(finishedFrom))

		fmt.Fprint(w, `[{"number":12,"state":"passed"},{"number":11,"state":"failed"}]`)
	})

	mux.HandleFunc("/organizations/input-output-hk/pipelines/cardano-node-tests-nightly/builds/{build}/artifacts", func(w http.ResponseWriter, r *http.Request) {
		var artifacts []map[string]string

		switch r.PathValue("build") {
		case "12":
			artifacts = append(artifacts,
				artifact("a", "allure-results.tar.xz"),
				artifact("b", "build.log"),
				artifact("c", "allure-results.tar.xz"),
			)
		case "11":
			artifacts = append(artifacts, artifact("d", "allure-results.tar.xz"))
		}

		assert.NoError(t, json.NewEncoder(w).Encode(artifacts))
	})

	mux.HandleFunc("/download/{id}", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer token", r.Header.Get("Authorization"))

		downloads.Add(1)
		fmt.Fprint(w, "results "+r.PathValue("id"))
	})

	server = httptest.NewTLSServer(mux)
	defer server.Close()

	client := buildkite.NewClient(
		buildkite.WithBaseURL(server.URL),
		buildkite.WithHTTPClient(server.Client()),
		buildkite.WithToken("token"),
	)

	baseDir := t.TempDir()

	require.NoError(t, client.FetchNightly(context.Background(), helpers.CreateLogger(t), baseDir, since))

	expected := map[string]string{
		"cardano-node-tests-nightly/12/step0/allure-results.tar.xz": "results a",
		"cardano-node-tests-nightly/12/step0/.downloaded":           "",
		"cardano-node-tests-nightly/12/step1/allure-results.tar.xz": "results c",
		"cardano-node-tests-nightly/12/step1/.downloaded":           "",
		"cardano-node-tests-nightly/11/allure-results.tar.xz":       "results d",
		"cardano-node-tests-nightly/11/.downloaded":                 "",
	}
	assert.Equal(t, expected, helpers.ReadTree(t, baseDir))
	assert.EqualValues(t, 3, downloads.Load())

	require.NoError(t, client.FetchNightly(context.Background(), helpers.CreateLogger(t), baseDir, since))
	assert.Equal(t, expected, helpers.ReadTree(t, baseDir))
	assert.EqualValues(t, 3, downloads.Load())
}
