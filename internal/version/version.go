// Package version records the build version reported by the CLI and used in
// the default HTTP user agent.
package version

// Version is the release identifier. Overridden at build time via
// -ldflags "-X torrentrss/internal/version.Version=...".
var Version = "dev"
