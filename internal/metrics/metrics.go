// Package metrics defines the minimal metrics abstraction used by the
// batch runner. Backends live in subpackages so the pipeline code never
// depends on a specific vendor SDK.
package metrics

// Labels are free-form metric dimensions.
type Labels map[string]string

// Backend receives counters and histogram samples. Implementations must
// be safe for concurrent use; the batch runner calls them from worker
// goroutines.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Nop is a Backend that discards everything. It is the default when no
// metrics sink is configured.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
