package metrics

import "time"

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// CaseCompleted is a no-op.
func (n *NoopCollector) CaseCompleted(protocol string, result string, duration time.Duration) {}

// ScriptCompleted is a no-op.
func (n *NoopCollector) ScriptCompleted(protocol string, result string, duration time.Duration) {}

// MessageInjected is a no-op.
func (n *NoopCollector) MessageInjected(transport string, result string) {}

// ServiceOperation is a no-op.
func (n *NoopCollector) ServiceOperation(service string, op string, result string) {}

// NoopExporter is a no-op implementation of the Exporter interface.
type NoopExporter struct{}

// Export is a no-op.
func (n *NoopExporter) Export() error {
	return nil
}
