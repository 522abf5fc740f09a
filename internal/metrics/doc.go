// Package metrics records generation and publish metrics.
//
// Components receive a Recorder and default to NoopRecorder, so metrics can be
// switched on without code changes:
//
//	reg := prometheus.NewRegistry()
//	gen := generator.New(generator.Options{Recorder: metrics.NewPrometheusRecorder(reg)})
//	http.Handle("/metrics", metrics.HTTPHandler(reg))
package metrics
