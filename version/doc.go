// Package version provides build version information embedding.
//
// Version, git commit, and build time are set at compile time via
// -ldflags:
//
//	go build -ldflags "-X github.com/kbukum/obskit/version.Version=1.0.0"
//
// When ldflags are absent the package falls back to the VCS stamps
// recorded in the binary's build info.
package version
