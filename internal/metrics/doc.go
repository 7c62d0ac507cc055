// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Live sessions and close reasons
//   - Inbound frames by kind and rejected frames
//   - Broadcast fan-out
//   - Store size
//   - Journal rows written and failed
package metrics
