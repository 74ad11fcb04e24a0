// Package metrics provides Prometheus metrics for callisto.
//
// # Metrics Categories
//
//   - Interpreter metrics: frames pushed by instruction type, load-balance
//     selections, redundant failovers and signals. The collector's
//     Observer is installed on the interpreter with interpreter.WithObserver.
//   - Request metrics: completed requests by section and result code,
//     duration, yields and requests in flight.
//   - Policy metrics: policy reloads and compiled section count.
//
// # Usage
//
//	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, nil)
//	interp, _ := interpreter.New(icfg, interpreter.WithObserver(collector.Observer()))
//	http.Handle("/metrics", collector.Handler())
//
// # Cardinality
//
// Group names label load-balance metrics. A cardinality limiter folds
// label sets beyond its limit into "other".
package metrics
