// Package component defines the lifecycle contract shared by the gateway's
// infrastructure pieces (HTTP server, database pool, Redis client, backend
// manager) and a Registry that starts them in order and stops them in
// reverse.
package component
