// Package observability wires OpenTelemetry tracing and metrics for the
// gateway and exposes the small helpers the backend packages call:
// StartSpan, SetSpanAttribute, SetSpanError and Metrics.RecordOperation.
//
// Without InitTracer/InitMeter the global no-op providers are used, so the
// helpers are always safe to call.
package observability
