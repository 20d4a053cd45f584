// Package prometheus renders stepAuth engine metrics in the Prometheus text
// exposition format. Mount [Exporter.Handler] on a route such as /metrics;
// nothing is registered globally.
package prometheus
