// Package backend defines the contract every backend adapter satisfies and
// the Manager that owns the active adapter.
//
// The contract is split into role interfaces (Authenticator, ProfileStore,
// RecordStore, FunctionCaller) composed into Provider. Adapters report
// failures as *errors.AppError values with normalised codes, so callers
// classify outcomes without knowing which backend answered.
//
// Typical use:
//
//	reg := backend.NewRegistry()
//	reg.Register(backend.KindSupabase, supabase.Factory(cfg.Supabase))
//	mgr := backend.NewManager(reg, prefs)
//	if err := mgr.Initialize(ctx); err != nil { ... }
//	profile, err := mgr.Provider().GetUserProfile(ctx, userID)
//
// Call sites fetch mgr.Provider() on every use rather than caching it, so a
// switch made through SetProvider is observed on the next call.
package backend
