// Package supabase is the backend adapter for a Supabase project. Identity
// goes through the GoTrue REST API under /auth/v1 and data through PostgREST
// under /rest/v1. Backend error documents are translated into AppErrors
// with the native code kept in the error details.
//
//	p, err := supabase.New(supabase.Config{URL: url, AnonKey: key})
//	registry.Register(backend.KindSupabase, supabase.Factory(cfg))
package supabase
