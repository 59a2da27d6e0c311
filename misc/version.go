// Package misc keeps program identity helpers separate from any functional
// package so build-time overrides do not drag unrelated dependencies into
// the linker command line.
package misc

import "runtime/debug"

// Set at build time via -ldflags "-X github.com/Abhishekkr206/WebBaseline/misc.appVersion=...".
var (
	appName    = "webbaseline"
	appVersion = "development"
	gitHash    = ""
)

// GetAppName returns the short program name used for log files, temporary
// directories and the CLI itself.
func GetAppName() string {
	return appName
}

// GetVersion returns the program version embedded at build time, falling back
// to the main module version when the binary was built with "go install".
func GetVersion() string {
	if appVersion != "development" {
		return appVersion
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return appVersion
}

// GetGitHash returns the VCS revision this binary was built from, either
// embedded explicitly or recovered from the build info.
func GetGitHash() string {
	if gitHash != "" {
		return gitHash
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" {
				return s.Value
			}
		}
	}
	return "unknown"
}
