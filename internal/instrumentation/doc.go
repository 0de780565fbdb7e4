// Package instrumentation provides OpenTelemetry tracing for tool
// invocations and backing-service calls.
//
// Tracing is disabled by default and enabled via TRACING_ENABLED=true with
// TRACING_EXPORTER set to "otlp" or "stdout". The stdout exporter writes to
// stderr because stdout carries the MCP wire protocol on the stdio
// transport.
package instrumentation
