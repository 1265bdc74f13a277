// Package metrics provides observability hooks for corpus runs.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so metrics stay optional and nil checks stay out of call
// sites. The daemon swaps in a PrometheusRecorder backed by its own registry
// and serves it over HTTP; one-shot CLI runs keep the noop.
package metrics
