// Package metrics provides observability hooks for the adherence state machine.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so nothing needs a nil check:
//
//	machine := adherence.New(store, sched, clock).WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// PrometheusRecorder registers its collectors on the given registry; the daemon
// serves that registry on /metrics.
package metrics
