// Package server provides the shared state behind the MCP tool handlers.
//
// ServerContext builds the mailbox client, the guideline provider, and the
// reply composer lazily on first use, so a deployment with missing
// credentials starts cleanly and reports a configuration error on the first
// tool call instead. It also keeps the registry of message identifiers
// handed out during the session, which lets a reply request against an
// unknown identifier fail before any reply text is generated.
//
// HealthChecker serves liveness and readiness probes when the server runs
// over the HTTP transport.
package server
