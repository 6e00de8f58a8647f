// Package smoke runs GET smoke tests against the HTTP API of a running core
// server, using the endpoint list of its API configuration.
package smoke

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const DefaultHost = "127.0.0.1"

var (
	ErrInvalidResponse = errors.New("response failed validation")
	ErrNoEndpoints     = errors.New("no GET endpoints configured")
)

// APIConfig is the "api" section of the core configuration.
type APIConfig struct {
	Port      int                 `yaml:"port"`
	Endpoints map[string]Endpoint `yaml:"endpoints"`
}

type Endpoint struct {
	Get *GetEndpoint `yaml:"get"`
}

type GetEndpoint struct {
	URL      string                   `yaml:"url"`
	Examples []map[string]interface{} `yaml:"examples"`
}

// Result is the outcome of smoke testing one endpoint.
type Result struct {
	Name       string
	URL        string
	StatusCode int
	Err        error
}

// Validator checks the decoded JSON body of a response.
type Validator func(body interface{}) bool

// validators holds the checks for endpoints whose payload shape is known;
// any other endpoint only has to return valid JSON.
var validators = map[string]Validator{
	"settings":    hasKeys("api"),
	"userContext": hasKeys("search", "history", "bookmarkedFrames"),
}

func hasKeys(keys ...string) Validator {
	return func(body interface{}) bool {
		obj, ok := body.(map[string]interface{})
		if !ok {
			return false
		}
		for _, key := range keys {
			if _, ok := obj[key]; !ok {
				return false
			}
		}
		return true
	}
}

// LoadAPIConfig reads the "api" section from a YAML or JSON core configuration.
func LoadAPIConfig(path string) (*APIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "could not open/read file %s", path)
	}

	var doc struct {
		API APIConfig `yaml:"api"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrapf(err, "parsing %s", path)
	}

	return &doc.API, nil
}

// Tester issues the smoke test requests.
type Tester struct {
	host       string
	httpClient *http.Client
	log        logrus.FieldLogger
}

// NewTester creates a tester targeting host, DefaultHost when empty.
func NewTester(host string, httpClient *http.Client, logger logrus.FieldLogger) *Tester {
	if host == "" {
		host = DefaultHost
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return &Tester{host: host, httpClient: httpClient, log: logger}
}

// Run tests every GET endpoint in name order and returns one result each.
func (t *Tester) Run(ctx context.Context, cfg *APIConfig) ([]Result, error) {
	var names []string
	for name, ep := range cfg.Endpoints {
		if ep.Get != nil {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return nil, ErrNoEndpoints
	}
	sort.Strings(names)

	t.log.Infof("testing %d GET endpoints", len(names))

	results := make([]Result, 0, len(names))
	for _, name := range names {
		results = append(results, t.testGet(ctx, cfg.Port, name, cfg.Endpoints[name].Get))
	}

	return results, nil
}

// Failed reports whether any result carries an error.
func Failed(results []Result) bool {
	for _, res := range results {
		if res.Err != nil {
			return true
		}
	}
	return false
}

func (t *Tester) testGet(ctx context.Context, port int, name string, ep *GetEndpoint) Result {
	res := Result{Name: name}
	target, err := url.Parse(ep.URL)
	if err != nil {
		res.Err = errors.Wrapf(err, "parsing endpoint url %q", ep.URL)
		t.log.WithField("endpoint", name).WithError(res.Err).Error("GET request failed")
		return res
	}
	target.Scheme = "http"
	target.Host = t.host + ":" + strconv.Itoa(port)
	if len(ep.Examples) > 0 {
		query := target.Query()
		for key, value := range ep.Examples[0] {
			query.Set(key, fmt.Sprint(value))
		}
		target.RawQuery = query.Encode()
	}
	res.URL = target.String()

	log := t.log.WithFields(logrus.Fields{"endpoint": name, "url": res.URL})

	res.StatusCode, res.Err = t.get(ctx, res.URL, validators[name])
	if res.Err != nil {
		log.WithError(res.Err).Error("GET request failed")
	} else {
		log.WithField("status", res.StatusCode).Info("GET request OK")
	}

	return res
}

func (t *Tester) get(ctx context.Context, target string, validate Validator) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, err
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, errors.Wrapf(err, "GET %s", target)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, errors.Errorf("received %d response from %s", resp.StatusCode, target)
	}

	var body interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return resp.StatusCode, errors.Wrap(ErrInvalidResponse, err.Error())
	}

	if validate != nil && !validate(body) {
		return resp.StatusCode, errors.Wrapf(ErrInvalidResponse, "unexpected payload from %s", target)
	}

	return resp.StatusCode, nil
}
