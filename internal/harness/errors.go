package harness

import (
	"errors"
	"fmt"

	"github.com/pmezard/go-difflib/difflib"
	"gopkg.in/yaml.v3"

	"github.com/infodancer/mailproc-harness/internal/filter"
	"github.com/infodancer/mailproc-harness/internal/fixture"
	"github.com/infodancer/mailproc-harness/internal/inject"
	"github.com/infodancer/mailproc-harness/internal/maildir"
	"github.com/infodancer/mailproc-harness/internal/services"
)

// Failure kinds reported by Kind.
const (
	KindConfig    = "config"
	KindService   = "service"
	KindDelivery  = "delivery"
	KindExecution = "execution"
	KindAssertion = "assertion"
	KindError     = "error"
)

// AssertionError reports a mailbox that differs from the expected result.
type AssertionError struct {
	Case     string
	Expected maildir.Snapshot
	Actual   maildir.Snapshot
	Diff     string
}

// NewAssertionError builds an AssertionError with a unified diff of the
// YAML renderings of both snapshots.
func NewAssertionError(caseName string, expected, actual maildir.Snapshot) *AssertionError {
	expected, actual = expected.Normalize(), actual.Normalize()
	return &AssertionError{
		Case:     caseName,
		Expected: expected,
		Actual:   actual,
		Diff:     snapshotDiff(expected, actual),
	}
}

func (e *AssertionError) Error() string {
	return fmt.Sprintf("%s: mailbox does not match expected result\n%s", e.Case, e.Diff)
}

func snapshotDiff(expected, actual maildir.Snapshot) string {
	diff, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(render(expected)),
		B:        difflib.SplitLines(render(actual)),
		FromFile: "expected",
		ToFile:   "actual",
		Context:  3,
	})
	if err != nil {
		return fmt.Sprintf("expected:\n%s\nactual:\n%s", render(expected), render(actual))
	}
	return diff
}

// render marshals a snapshot as YAML. Map keys come out sorted.
func render(s maildir.Snapshot) string {
	if len(s) == 0 {
		return "{}\n"
	}
	out, err := yaml.Marshal(map[string]map[string]string(s))
	if err != nil {
		return fmt.Sprintf("%v\n", map[string]map[string]string(s))
	}
	return string(out)
}

// Kind classifies err by the package that produced it.
func Kind(err error) string {
	if err == nil {
		return ""
	}

	var (
		cfgErr    *fixture.ConfigError
		svcErr    *services.ServiceError
		delErr    *inject.DeliveryError
		execErr   *filter.ExecutionError
		assertErr *AssertionError
	)
	switch {
	case errors.As(err, &cfgErr):
		return KindConfig
	case errors.As(err, &svcErr):
		return KindService
	case errors.As(err, &delErr):
		return KindDelivery
	case errors.As(err, &execErr):
		return KindExecution
	case errors.As(err, &assertErr):
		return KindAssertion
	default:
		return KindError
	}
}
