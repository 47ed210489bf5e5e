// Package cli provides the small set of conventions every command under
// cmd/ shares: version reporting, a leveled logger, usage/help text, and
// consistent fatal-error exits.
package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"runtime"
	"time"
)

// Version information for all CLI tools in this module.
const (
	Version   = "0.1.0"
	BuildDate = "2026-08-01"
	CommitSHA = "unknown"
)

// VersionInfo contains version and build information.
type VersionInfo struct {
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	CommitSHA string `json:"commit_sha"`
	GoVersion string `json:"go_version"`
	Platform  string `json:"platform"`
	Arch      string `json:"arch"`
}

// GetVersionInfo returns structured version information.
func GetVersionInfo() *VersionInfo {
	return &VersionInfo{
		Version:   Version,
		BuildDate: BuildDate,
		CommitSHA: CommitSHA,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// PrintVersion prints version information for toolName, as JSON if
// jsonOutput is set.
func PrintVersion(toolName string, jsonOutput bool) {
	info := GetVersionInfo()

	if jsonOutput {
		data, err := json.MarshalIndent(map[string]interface{}{
			"tool":         toolName,
			"version_info": info,
		}, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to marshal version info to JSON: %v\n", err)
			jsonOutput = false
		} else {
			fmt.Println(string(data))
			return
		}
	}

	fmt.Printf("%s v%s\n", toolName, info.Version)
	fmt.Printf("Build Date: %s\n", info.BuildDate)
	if info.CommitSHA != "unknown" && info.CommitSHA != "" {
		fmt.Printf("Commit: %s\n", info.CommitSHA)
	}
	fmt.Printf("Go Version: %s\n", info.GoVersion)
	fmt.Printf("Platform: %s/%s\n", info.Platform, info.Arch)
}

// ExitWithError prints an error message to stderr and exits with code 1.
func ExitWithError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}

// Logger is a small leveled logger for command-line tools; it is not
// meant for library code, which reports through returned errors instead.
type Logger struct {
	Verbose   bool
	DebugMode bool
}

// NewLogger creates a Logger.
func NewLogger(verbose, debug bool) *Logger {
	return &Logger{Verbose: verbose, DebugMode: debug}
}

func (l *Logger) timestamp() string { return time.Now().Format("15:04:05") }

// Info logs an info message when Verbose is set.
func (l *Logger) Info(format string, args ...interface{}) {
	if l.Verbose {
		fmt.Printf("[INFO] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
	}
}

// Debug logs a debug message when DebugMode is set.
func (l *Logger) Debug(format string, args ...interface{}) {
	if l.DebugMode {
		fmt.Printf("[DEBUG] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
	}
}

// Warn logs a warning message unconditionally.
func (l *Logger) Warn(format string, args ...interface{}) {
	fmt.Printf("[WARN] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}

// Error logs an error message unconditionally.
func (l *Logger) Error(format string, args ...interface{}) {
	fmt.Printf("[ERROR] %s: %s\n", l.timestamp(), fmt.Sprintf(format, args...))
}

// FlagInfo describes one command-line flag for PrintUsage.
type FlagInfo struct {
	Name     string
	Usage    string
	Default  string
	Required bool
}

// PrintUsage prints a standardized top-level usage message for tool.
func PrintUsage(tool, tagline string, flags []FlagInfo) {
	fmt.Printf("%s - %s\n\n", tool, tagline)
	fmt.Printf("USAGE:\n    %s [OPTIONS]\n\n", tool)

	if len(flags) > 0 {
		fmt.Printf("OPTIONS:\n")
		for _, f := range flags {
			line := fmt.Sprintf("    -%s", f.Name)
			if f.Required {
				line += " (required)"
			}
			fmt.Printf("%-24s %s\n", line, f.Usage)
			if f.Default != "" {
				fmt.Printf("%-24s default: %s\n", "", f.Default)
			}
		}
		fmt.Println()
	}

	fmt.Printf("    -help          show this message\n")
	fmt.Printf("    -version       show version information\n")
}

// HandleError logs err (through logger if non-nil, otherwise to stderr)
// and exits with status 1. A nil err is a no-op.
func HandleError(err error, logger *Logger) {
	if err == nil {
		return
	}
	if logger != nil {
		logger.Error("%v", err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}
