// Package config loads service configuration from a YAML file, an optional
// .env file and the process environment, in that order of precedence
// (environment wins).
//
//	var cfg bootstrap.Config
//	err := config.LoadConfig("bizgateway", &cfg)
//
// Nested keys are addressed from the environment with underscores:
// SUPABASE_URL sets supabase.url, PROVISIONING_POLL_ATTEMPTS sets
// provisioning.poll_attempts.
package config
