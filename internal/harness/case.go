// Package harness drives test cases: it brackets each fixture with service
// setup and teardown, injects mail, runs the filter scripts and compares the
// resulting mailbox against the fixture's expectations.
package harness

import (
	"fmt"
	"time"

	"github.com/infodancer/mailproc-harness/internal/config"
	"github.com/infodancer/mailproc-harness/internal/fixture"
)

// Case is one fixture run under one protocol.
type Case struct {
	Name     string
	Fixture  string
	Protocol config.Protocol
}

// NewCase names a case after its fixture and protocol.
func NewCase(fixturePath string, protocol config.Protocol) Case {
	return Case{
		Name:     CaseName(fixture.Name(fixturePath), protocol),
		Fixture:  fixturePath,
		Protocol: protocol,
	}
}

// CaseName returns "<fixture> (<protocol>)".
func CaseName(fixtureName string, protocol config.Protocol) string {
	return fmt.Sprintf("%s (%s)", fixtureName, protocol)
}

// State is the lifecycle stage of a case.
type State int

const (
	StateIdle State = iota
	StateSetUp
	StateRunning
	StateComparing
	StateTornDown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSetUp:
		return "setup"
	case StateRunning:
		return "running"
	case StateComparing:
		return "comparing"
	case StateTornDown:
		return "torndown"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Result is the outcome of one case. State is StateTornDown once the driver
// has run the case. Reached is the last stage entered before teardown; for a
// failed case that is where it failed.
type Result struct {
	Case     Case
	State    State
	Reached  State
	Err      error
	Duration time.Duration
}

// Passed reports whether the case succeeded.
func (r Result) Passed() bool {
	return r.Err == nil
}

// Kind returns the failure kind of the result, or "" if it passed.
func (r Result) Kind() string {
	return Kind(r.Err)
}
