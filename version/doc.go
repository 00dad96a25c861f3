// Package version reports the build of the running gateway.
//
// Version and Commit are stamped at link time; anything left empty is read
// from the module build info:
//
//	go build -ldflags "-X github.com/kbukum/bizbackend/version.Version=1.4.0" ./cmd/bizgateway
package version
