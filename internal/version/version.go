package version

import (
	"fmt"
	"runtime"
)

var (
	// Version is set at build time with -ldflags.
	Version = "0.1.0"
	// GitCommit is the git commit that was compiled, set at build time.
	GitCommit = ""
	// BuildDate is the date of the build, set at build time.
	BuildDate = ""

	GoVersion = runtime.Version()
	Platform  = fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)

	AppName     = "docstore"
	Description = "A minimal HTTP store for named JSON documents"
)

// GetVersionInfo returns a formatted version string with build information.
func GetVersionInfo() string {
	s := fmt.Sprintf("%s version %s", AppName, Version)

	if GitCommit != "" {
		s += fmt.Sprintf("\nGit commit: %s", GitCommit)
	}
	if BuildDate != "" {
		s += fmt.Sprintf("\nBuild date: %s", BuildDate)
	}

	s += fmt.Sprintf("\nGo version: %s", GoVersion)
	s += fmt.Sprintf("\nPlatform: %s", Platform)

	return s
}
