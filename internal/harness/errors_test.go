package harness

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/infodancer/mailproc-harness/internal/filter"
	"github.com/infodancer/mailproc-harness/internal/fixture"
	"github.com/infodancer/mailproc-harness/internal/inject"
	"github.com/infodancer/mailproc-harness/internal/maildir"
	"github.com/infodancer/mailproc-harness/internal/services"
)

func TestKind(t *testing.T) {
	cause := errors.New("cause")
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "config", err: &fixture.ConfigError{Path: "x", Err: cause}, want: KindConfig},
		{name: "service", err: &services.ServiceError{Service: "mta", Op: "start", Err: cause}, want: KindService},
		{name: "delivery", err: &inject.DeliveryError{Source: "mail1", Err: cause}, want: KindDelivery},
		{name: "execution", err: &filter.ExecutionError{Index: 1, Err: cause}, want: KindExecution},
		{name: "assertion", err: NewAssertionError("c", nil, nil), want: KindAssertion},
		{name: "wrapped", err: fmt.Errorf("outer: %w", &filter.ExecutionError{Err: cause}), want: KindExecution},
		{name: "other", err: cause, want: KindError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Kind(tt.err))
		})
	}
}

func TestAssertionErrorDiff(t *testing.T) {
	expected := maildir.Snapshot{"Archive": {"<a@test>": ""}}
	actual := maildir.Snapshot{".": {"<a@test>": "S"}, "Empty": {}}

	err := NewAssertionError("move (maildir)", expected, actual)

	assert.Contains(t, err.Error(), "move (maildir)")
	assert.Contains(t, err.Diff, "--- expected")
	assert.Contains(t, err.Diff, "+++ actual")
	assert.Contains(t, err.Diff, "-Archive:")
	assert.NotContains(t, err.Diff, "Empty", "empty folders are left out of the diff")
	assert.NotContains(t, err.Actual, "Empty")
}

func TestAssertionErrorEmptyExpected(t *testing.T) {
	err := NewAssertionError("empty (imap)", maildir.Snapshot{}, maildir.Snapshot{".": {"<a@test>": ""}})
	assert.Contains(t, err.Diff, "-{}")
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "idle", StateIdle.String())
	assert.Equal(t, "setup", StateSetUp.String())
	assert.Equal(t, "running", StateRunning.String())
	assert.Equal(t, "comparing", StateComparing.String())
	assert.Equal(t, "torndown", StateTornDown.String())
	assert.Equal(t, "state(42)", State(42).String())
}
