package harness

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/testutil"
)

var bothProtocols = []config.Protocol{config.ProtocolMaildir, config.ProtocolIMAP}

func TestDiscover(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFixtureDir(t, dir, "beta", defaultOnlyFixture, nil)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "alpha.yaml"), []byte(defaultOnlyFixture), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README"), []byte("not a fixture"), 0o644))

	cases, err := Discover(dir, bothProtocols)
	require.NoError(t, err)

	var names []string
	for _, c := range cases {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{
		"alpha (maildir)",
		"alpha (imap)",
		"beta (maildir)",
		"beta (imap)",
	}, names)
	assert.Equal(t, filepath.Join(dir, "beta"), cases[2].Fixture)
	assert.Equal(t, config.ProtocolIMAP, cases[3].Protocol)
}

func TestDiscoverMissingDir(t *testing.T) {
	_, err := Discover(filepath.Join(t.TempDir(), "nope"), bothProtocols)
	assert.Error(t, err)
}

// scriptedRunner returns canned results by case name.
type scriptedRunner struct {
	errs map[string]error
	ran  []string
}

func (r *scriptedRunner) Run(ctx context.Context, c Case) Result {
	r.ran = append(r.ran, c.Name)
	return Result{Case: c, State: StateComparing, Err: r.errs[c.Name]}
}

func TestSuiteContinuesAfterFailure(t *testing.T) {
	cases := []Case{
		{Name: "a (maildir)"},
		{Name: "b (maildir)"},
		{Name: "c (maildir)"},
	}
	runner := &scriptedRunner{errs: map[string]error{"a (maildir)": errors.New("boom")}}
	var out bytes.Buffer

	sum := (&Suite{Runner: runner, Out: &out}).Run(context.Background(), cases)

	assert.Equal(t, []string{"a (maildir)", "b (maildir)", "c (maildir)"}, runner.ran)
	assert.Equal(t, 2, sum.Passed)
	assert.Equal(t, 1, sum.Failed)
	assert.Equal(t, 1, sum.ExitCode())
	assert.Contains(t, out.String(), "FAIL  a (maildir) [error] boom")
	assert.Contains(t, out.String(), "ok    b (maildir)")
	assert.Contains(t, out.String(), "FAIL: 1 of 3 cases failed")
}

func TestSuiteAllPass(t *testing.T) {
	var out bytes.Buffer
	sum := (&Suite{Runner: &scriptedRunner{}, Out: &out}).Run(context.Background(), []Case{{Name: "a (imap)"}})

	assert.Equal(t, 0, sum.ExitCode())
	assert.Contains(t, out.String(), "PASS: 1 cases")
}

func TestSuiteFilter(t *testing.T) {
	cases := []Case{{Name: "a (maildir)"}, {Name: "a (imap)"}, {Name: "b (imap)"}}
	runner := &scriptedRunner{}
	var out bytes.Buffer

	sum := (&Suite{Runner: runner, Out: &out, Filter: regexp.MustCompile(`\(imap\)$`)}).Run(context.Background(), cases)

	assert.Equal(t, []string{"a (imap)", "b (imap)"}, runner.ran)
	assert.Len(t, sum.Results, 2)
}

func TestSuiteCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	runner := &scriptedRunner{}
	var out bytes.Buffer

	sum := (&Suite{Runner: runner, Out: &out}).Run(ctx, []Case{{Name: "a (maildir)"}})

	assert.Empty(t, runner.ran)
	assert.Equal(t, 1, sum.ExitCode())
	assert.ErrorIs(t, sum.Results[0].Err, context.Canceled)
}

func TestSuiteEndToEnd(t *testing.T) {
	rig := newRig(t)
	rig.processors(t, `
for arg in "$@"; do
  case "$arg" in
    --rcfile=*) rc="${arg#--rcfile=}" ;;
  esac
done
if grep -q fail "$rc"; then echo "script failed"; exit 1; fi`)

	testutil.WriteFixtureDir(t, rig.testsDir, "a-default", defaultOnlyFixture, nil)
	testutil.WriteFixtureDir(t, rig.testsDir, "b-broken", `scripts:
  - script: fail
expected: {}
`, nil)
	testutil.WriteFixtureDir(t, rig.testsDir, "c-default", defaultOnlyFixture, nil)

	cases, err := Discover(rig.testsDir, bothProtocols)
	require.NoError(t, err)
	require.Len(t, cases, 6)

	var out bytes.Buffer
	sum := (&Suite{Runner: rig.driver(t), Out: &out}).Run(context.Background(), cases)

	assert.Equal(t, 4, sum.Passed)
	assert.Equal(t, 2, sum.Failed)
	assert.Equal(t, 1, sum.ExitCode())
	for _, res := range sum.Results {
		if res.Case.Name == "b-broken (maildir)" || res.Case.Name == "b-broken (imap)" {
			assert.Equal(t, KindExecution, res.Kind())
		} else {
			assert.True(t, res.Passed(), "%s: %v", res.Case.Name, res.Err)
		}
	}
	assert.Contains(t, rig.stderr.String(), "script failed")
}
