// Package redis wraps go-redis with the module's logging and configuration
// conventions and exposes it as a lifecycle component. The preference
// package uses it to persist the selected backend kind.
package redis
