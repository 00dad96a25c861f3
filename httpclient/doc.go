// Package httpclient is the outbound HTTP client used by the remote backend
// adapters. It resolves paths against a base URL, applies default headers
// and auth, classifies status codes into typed errors and optionally wraps
// calls in resilience.Retry and a circuit breaker.
//
// Retry is applied only to idempotent methods unless the request opts in.
package httpclient
