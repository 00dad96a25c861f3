// Package errors defines the normalised error shape every backend adapter
// reports through: a stable machine code, a human message, optional backend
// details and an optional remediation hint.
//
// Adapters translate their backend's native failures (SQLSTATE codes,
// PostgREST codes, auth service error codes) into one of the codes declared
// here. Callers classify failures by code only, never by message text.
package errors
