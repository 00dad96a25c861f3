// Package preference persists the selected backend kind so the Manager
// can restore it after a restart. Three drivers are available: a dotenv
// file, a Redis key and process memory.
package preference
