// Package metrics provides interfaces and implementations for collecting
// harness metrics. This package defines the Collector interface for
// recording metrics, the Server interface for exposing them while a suite
// runs, and the Exporter interface for writing them out when it finishes.
package metrics

import (
	"context"
	"time"
)

// Result labels shared by the collectors.
const (
	ResultPass = "pass"
	ResultFail = "fail"
)

// Collector defines the interface for recording harness metrics.
type Collector interface {
	// CaseCompleted records a finished test case. result is "pass" or the
	// failure kind (config, service, delivery, execution, assertion, error).
	CaseCompleted(protocol string, result string, duration time.Duration)

	// ScriptCompleted records one filter processor invocation.
	ScriptCompleted(protocol string, result string, duration time.Duration)

	// MessageInjected records one message handed to the injection transport.
	MessageInjected(transport string, result string)

	// ServiceOperation records a start or stop of the MTA or IMAP server.
	ServiceOperation(service string, op string, result string)
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}

// Exporter writes the collected metrics somewhere once the suite is done.
type Exporter interface {
	Export() error
}

// Result maps an error to a pass/fail label.
func Result(err error) string {
	if err != nil {
		return ResultFail
	}
	return ResultPass
}
