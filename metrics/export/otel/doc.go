// Package otel publishes stepAuth engine metrics through an OpenTelemetry
// meter supplied by the caller. Counters become Int64ObservableCounters;
// the resolve latency histogram becomes a cumulative bucket gauge with an
// "le" attribute plus a count gauge.
package otel
