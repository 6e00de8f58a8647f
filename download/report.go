package download

import (
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Process exit statuses.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitDownloadFailure = 2
)

// Report aggregates the results of a run in processing order.
type Report struct {
	Results []Result
}

// OK reports whether every artifact is verified. An empty run is OK.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if !res.Outcome.Verified() {
			return false
		}
	}

	return true
}

// Err returns every per-artifact error of the run, or nil.
func (r *Report) Err() error {
	var merr *multierror.Error
	for _, res := range r.Results {
		if res.Err != nil {
			merr = multierror.Append(merr, errors.Wrapf(res.Err, "%s", res.Spec.Name))
		}
	}

	return merr.ErrorOrNil()
}

// ExitCode maps the run to a process exit status. Download failures take
// precedence over verification failures.
func (r *Report) ExitCode() int {
	if r.OK() {
		return ExitOK
	}

	for _, res := range r.Results {
		if res.Outcome.DownloadFailure() {
			return ExitDownloadFailure
		}
	}

	return ExitFailure
}

// Summary writes a table of the results followed by a banner.
func (r *Report) Summary(w io.Writer) {
	table := uitable.New()
	table.MaxColWidth = 80
	table.AddRow("ARTIFACT", "OUTCOME", "STATUS", "PATH")
	for _, res := range r.Results {
		status := "-"
		if res.StatusCode != 0 {
			status = fmt.Sprint(res.StatusCode)
		}
		table.AddRow(res.Spec.Name, res.Outcome, status, res.Spec.DestinationPath)
	}
	fmt.Fprintln(w, table)

	if r.OK() {
		fmt.Fprintln(w, "<<< All artifacts are ready. <<<")
	} else {
		fmt.Fprintln(w, "<<< ERROR: Artifacts are NOT ready. <<<")
	}
}
