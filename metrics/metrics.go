// Package metrics records counters and latencies. Names are event types
// such as "link_created" or "poll_failure"; the "network" label is the only
// label exported.
package metrics

import "time"

type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}
