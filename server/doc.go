// Package server is the loopback HTTP gateway through which the app shell
// reaches the backend core. It runs Gin behind h2c and is started and stopped
// by the component registry.
//
// # Routes
//
//   - GET /healthz, GET /readyz, GET /info: probes and build information
//   - GET|PUT /v1/provider: active backend and switching
//   - /v1/auth/sign-up, sign-in, sign-out and session
//   - POST /v1/profile/provision: establish the signed-in user's profile
//   - /v1/records/:table[/:id]: generic CRUD; list filters use col=op.value
//
// Every failure is answered with errors.ErrorResponse and the status of the
// underlying AppError.
package server
