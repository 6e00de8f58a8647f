package smoke_test

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gkatanacio/artifact-fetcher/smoke"
)

const coreConfig = `{
  "core": {"models_dir": "models"},
  "api": {
    "port": %d,
    "endpoints": {
      "settings":    {"get": {"url": "/settings"}},
      "userContext": {"get": {"url": "/user/context"}},
      "search":      {"get": {"url": "/search", "examples": [{"q": "dog", "limit": 10}]}},
      "submit":      {"post": {"url": "/submit"}}
    }
  }
}`

func newCore(t *testing.T, handler http.HandlerFunc) (*httptest.Server, int) {
	t.Helper()

	ts := httptest.NewServer(handler)
	t.Cleanup(ts.Close)

	return ts, ts.Listener.Addr().(*net.TCPAddr).Port
}

func loadConfig(t *testing.T, port int) *smoke.APIConfig {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.json")
	content := []byte(fmt.Sprintf(coreConfig, port))
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := smoke.LoadAPIConfig(path)
	require.NoError(t, err)

	return cfg
}

func Test_Tester_Run(t *testing.T) {
	testCases := map[string]struct {
		userContext string
		wantFailed  []string
	}{
		"all endpoints valid": {
			userContext: `{"search": {}, "history": [], "bookmarkedFrames": []}`,
		},
		"user context missing keys": {
			userContext: `{"search": {}}`,
			wantFailed:  []string{"userContext"},
		},
		"user context not json": {
			userContext: `<html>`,
			wantFailed:  []string{"userContext"},
		},
	}

	for scenario, tc := range testCases {
		t.Run(scenario, func(t *testing.T) {
			ts, port := newCore(t, func(w http.ResponseWriter, r *http.Request) {
				switch r.URL.Path {
				case "/settings":
					w.Write([]byte(`{"api": {"port": 8080}}`))
				case "/user/context":
					w.Write([]byte(tc.userContext))
				case "/search":
					if r.URL.Query().Get("q") != "dog" || r.URL.Query().Get("limit") != "10" {
						w.WriteHeader(http.StatusBadRequest)
						return
					}
					w.Write([]byte(`[1, 2, 3]`))
				default:
					http.NotFound(w, r)
				}
			})

			results, err := smoke.NewTester("", ts.Client(), nil).Run(context.Background(), loadConfig(t, port))
			require.NoError(t, err)
			require.Len(t, results, 3, "POST-only endpoints are skipped")

			var failed []string
			for _, res := range results {
				if res.Err != nil {
					failed = append(failed, res.Name)
				}
			}
			assert.Equal(t, tc.wantFailed, failed)
			assert.Equal(t, len(tc.wantFailed) > 0, smoke.Failed(results))
		})
	}
}

func Test_Tester_Run_Failed(t *testing.T) {
	_, err := smoke.NewTester("", nil, nil).Run(context.Background(), &smoke.APIConfig{})
	assert.ErrorIs(t, err, smoke.ErrNoEndpoints)

	ts, port := newCore(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	results, err := smoke.NewTester("", ts.Client(), nil).Run(context.Background(), loadConfig(t, port))
	require.NoError(t, err)
	for _, res := range results {
		assert.Equal(t, http.StatusInternalServerError, res.StatusCode)
		assert.Error(t, res.Err)
	}
}

func Test_Tester_Run_EndpointURLWithQuery(t *testing.T) {
	ts, port := newCore(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if r.URL.Path != "/frames" || q.Get("kind") != "top" || q.Get("name") != "a/b" || q.Get("limit") != "5" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`[]`))
	})
	cfg := &smoke.APIConfig{
		Port: port,
		Endpoints: map[string]smoke.Endpoint{
			"frames": {Get: &smoke.GetEndpoint{
				URL:      "/frames?kind=top&name=a%2Fb",
				Examples: []map[string]interface{}{{"limit": 5}},
			}},
		},
	}

	results, err := smoke.NewTester("", ts.Client(), nil).Run(context.Background(), cfg)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, http.StatusOK, results[0].StatusCode)
}

func Test_LoadAPIConfig_MissingFile(t *testing.T) {
	_, err := smoke.LoadAPIConfig(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
