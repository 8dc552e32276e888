package version

// Version is the testrepo version. It is overridden at build time with
// -ldflags "-X github.com/repokit/testrepo/internal/version.Version=...".
var Version = "0.1.0-dev"
