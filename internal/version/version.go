package version

// Name identifies the service in logs, traces, and the bus client name.
const Name = "adoptd"

// Version is overridden at build time via -ldflags.
var Version = "dev"
