// Package bootstrap composes the gateway: it loads configuration, registers
// the adapters, builds the Manager and the provisioning protocol, mounts the
// HTTP API and runs everything under the component registry until a
// shutdown signal arrives.
package bootstrap
