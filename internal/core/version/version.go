package version

// Version is overwritten at build time via -ldflags "-X .../version.Version=x.y.z"
var Version = "dev"
