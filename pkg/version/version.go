// Package version exposes the carbonledger build version.
//
// The version string is injected at build time via -ldflags; the default
// "dev" is used for local builds and tests.
package version

// version is overridden at build time:
//
//	go build -ldflags "-X github.com/rshade/carbonledger/pkg/version.version=v1.2.3"
//
//nolint:gochecknoglobals // Build-time injection target.
var version = "dev"

// GetVersion returns the current build version string.
func GetVersion() string {
	return version
}
