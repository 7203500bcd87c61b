package harness

import (
	"context"
	"fmt"
	"io"
	"regexp"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/fixture"
)

// Discover builds one case per fixture under dir and protocol, in fixture
// name order.
func Discover(dir string, protocols []config.Protocol) ([]Case, error) {
	paths, err := fixture.Discover(dir)
	if err != nil {
		return nil, err
	}

	cases := make([]Case, 0, len(paths)*len(protocols))
	for _, path := range paths {
		for _, p := range protocols {
			cases = append(cases, NewCase(path, p))
		}
	}
	return cases, nil
}

// CaseRunner runs a single case.
type CaseRunner interface {
	Run(ctx context.Context, c Case) Result
}

// Suite runs cases one after another and reports each outcome.
type Suite struct {
	Runner CaseRunner
	// Out receives one line per case and a summary.
	Out io.Writer
	// Filter, when set, selects cases by name.
	Filter *regexp.Regexp
}

// Summary holds the results of a suite run.
type Summary struct {
	Results []Result
	Passed  int
	Failed  int
}

// ExitCode returns the process exit status for the run.
func (s Summary) ExitCode() int {
	if s.Failed > 0 {
		return 1
	}
	return 0
}

// Run executes every selected case. A failing case never stops the others;
// a canceled context does, and the remaining cases count as failed.
func (s *Suite) Run(ctx context.Context, cases []Case) Summary {
	var sum Summary

	for _, c := range cases {
		if s.Filter != nil && !s.Filter.MatchString(c.Name) {
			continue
		}

		var res Result
		if err := ctx.Err(); err != nil {
			res = Result{Case: c, State: StateIdle, Reached: StateIdle, Err: err}
		} else {
			res = s.Runner.Run(ctx, c)
		}
		sum.Results = append(sum.Results, res)

		if res.Passed() {
			sum.Passed++
			fmt.Fprintf(s.Out, "ok    %s (%.2fs)\n", c.Name, res.Duration.Seconds())
			continue
		}
		sum.Failed++
		fmt.Fprintf(s.Out, "FAIL  %s [%s] %v\n", c.Name, res.Kind(), res.Err)
	}

	total := sum.Passed + sum.Failed
	if sum.Failed > 0 {
		fmt.Fprintf(s.Out, "FAIL: %d of %d cases failed\n", sum.Failed, total)
	} else {
		fmt.Fprintf(s.Out, "PASS: %d cases\n", total)
	}
	return sum
}
