// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Live connections per phase
//   - Events delivered to the caller, by kind
//   - Sends dropped at delivery time
//   - Poll calls and how many of them did work
//
// A nil *Collector is valid and records nothing.
package metrics
