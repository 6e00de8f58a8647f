// Package loadtest generates load against the logging endpoints of a core
// server by firing paired submit/log requests from a bounded worker pool.
package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	DefaultWorkers  = 12
	DefaultRequests = 5000

	submitEndpoint = "eval-server/submit/"
	logEndpoint    = "log/text-query-change/"
	defaultQuery   = "ahoj >> svete"
)

var ErrNoBaseURL = errors.New("base URL required")

// Options represents the configuration for a load run.
type Options struct {
	BaseURL  string
	Workers  int
	Requests int
	Query    string
}

// Stats summarises a load run. Each pair counts as two sent requests.
type Stats struct {
	Sent    int64
	Failed  int64
	Elapsed time.Duration
}

// Runner fires the paired requests.
type Runner struct {
	opts       Options
	httpClient *http.Client
	log        logrus.FieldLogger
}

func NewRunner(opts Options, httpClient *http.Client, logger logrus.FieldLogger) *Runner {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.Requests <= 0 {
		opts.Requests = DefaultRequests
	}
	if opts.Query == "" {
		opts.Query = defaultQuery
	}
	if opts.BaseURL != "" && !strings.HasSuffix(opts.BaseURL, "/") {
		opts.BaseURL += "/"
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		logger = discard
	}

	return &Runner{opts: opts, httpClient: httpClient, log: logger}
}

// Run sends Requests submit/log pairs with at most Workers in flight.
// Failed requests are counted, not fatal; only a cancelled context stops
// the run early.
func (r *Runner) Run(ctx context.Context) (Stats, error) {
	if r.opts.BaseURL == "" {
		return Stats{}, ErrNoBaseURL
	}

	var sent, failed atomic.Int64
	start := time.Now()

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(r.opts.Workers)

	for i := 0; i < r.opts.Requests; i++ {
		if ctx.Err() != nil {
			break
		}

		eg.Go(func() error {
			for _, send := range []func(context.Context) error{r.submit, r.logQuery} {
				sent.Add(1)
				if err := send(egCtx); err != nil {
					failed.Add(1)
					r.log.WithError(err).Debug("request failed")
				}
			}
			return nil
		})
	}

	err := eg.Wait()
	if err == nil {
		err = ctx.Err()
	}

	return Stats{Sent: sent.Load(), Failed: failed.Load(), Elapsed: time.Since(start)}, err
}

func (r *Runner) submit(ctx context.Context) error {
	body, err := json.Marshal(map[string]int{"frameId": 0})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.opts.BaseURL+submitEndpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	return r.do(req)
}

func (r *Runner) logQuery(ctx context.Context) error {
	query := url.Values{"query": {r.opts.Query}}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.opts.BaseURL+logEndpoint+"?"+query.Encode(), nil)
	if err != nil {
		return err
	}

	return r.do(req)
}

func (r *Runner) do(req *http.Request) error {
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("received %d response from %s", resp.StatusCode, req.URL)
	}

	return nil
}
