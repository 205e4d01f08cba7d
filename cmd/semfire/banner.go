package main

// ---------------------------------------------------------------------------
// banner.go — banner and version/usage printing
// ---------------------------------------------------------------------------

import (
	"fmt"
	"io"
	goruntime "runtime"
	"runtime/debug"
)

func bannerText() string {
	banner := `
    ╔══════════════════════════════════════════════════════════╗
    ║                                                          ║
    ║   ███████╗ ███████╗ ███╗   ███╗ ███████╗ ██╗ ██████╗    ║
    ║   ██╔════╝ ██╔════╝ ████╗ ████║ ██╔════╝ ██║ ██╔══██╗   ║
    ║   ███████╗ █████╗   ██╔████╔██║ █████╗   ██║ ██████╔╝   ║
    ║   ╚════██║ ██╔══╝   ██║╚██╔╝██║ ██╔══╝   ██║ ██╔══██╗   ║
    ║   ███████║ ███████╗ ██║ ╚═╝ ██║ ██║      ██║ ██║  ██║   ║
    ║   ╚══════╝ ╚══════╝ ╚═╝     ╚═╝ ╚═╝      ╚═╝ ╚═╝  ╚═╝   ║
    ║                                                          ║
    ║            SEMANTIC FIREWALL FOR CONVERSATIONS           ║
    ║                                                          ║
    ╚══════════════════════════════════════════════════════════╝
`
	if !colorEnabled() {
		return banner
	}
	return "\033[36m" + banner + "\033[0m"
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "semfire v%s", version)
	if commit != "dev" {
		fmt.Fprintf(w, " (%s)", commit[:min(7, len(commit))])
	}
	if buildDate != "unknown" {
		fmt.Fprintf(w, " built %s", buildDate)
	}
	if bi, ok := debug.ReadBuildInfo(); ok {
		fmt.Fprintf(w, " %s", bi.GoVersion)
	}
	fmt.Fprintf(w, " %s/%s", goruntime.GOOS, goruntime.GOARCH)
	fmt.Fprintln(w)
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, bannerText())
	fmt.Fprintf(w, "  %s\n\n", dim("v"+version))
	fmt.Fprintf(w, "%s\n\n", bold("USAGE"))
	fmt.Fprintf(w, "  semfire <command> [flags]\n\n")
	fmt.Fprintf(w, "%s\n\n", bold("COMMANDS"))
	fmt.Fprintf(w, "  %-12s  %s\n", bold("analyze"), "Analyze a message (with optional history) and print the full report")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("check"), "Boolean verdict: exit 2 if the conversation is manipulative")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("serve"), "Start the semfire engine with the REST API")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("status"), "Show status of a running semfire instance")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("alerts"), "Fetch, acknowledge, resolve, or clear alerts")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("detectors"), "List configured detectors")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("config"), "Show, validate, or initialize configuration")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("version"), "Print version and build info")
	fmt.Fprintf(w, "  %-12s  %s\n", bold("help"), "Show this help")
	fmt.Fprintf(w, "\n%s\n\n", bold("GLOBAL FLAGS"))
	fmt.Fprintf(w, "  %-22s  %s\n", "--config <path>", "Config file path (default: configs/default.yaml, env: SEMFIRE_CONFIG)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--api-key <key>", "API key (env: SEMFIRE_API_KEY)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--format <fmt>", "Output format: table, json (default: table)")
	fmt.Fprintf(w, "  %-22s  %s\n", "--version, -V", "Print version and exit")
	fmt.Fprintf(w, "  %-22s  %s\n", "--help, -h", "Show help")
	fmt.Fprintf(w, "\n%s\n\n", bold("ENVIRONMENT VARIABLES"))
	fmt.Fprintf(w, "  %-22s  %s\n", "SEMFIRE_CONFIG", "Default config file path")
	fmt.Fprintf(w, "  %-22s  %s\n", "SEMFIRE_HOST", "API host override")
	fmt.Fprintf(w, "  %-22s  %s\n", "SEMFIRE_PORT", "API port override")
	fmt.Fprintf(w, "  %-22s  %s\n", "SEMFIRE_API_KEY", "API key for authentication")
	fmt.Fprintf(w, "  %-22s  %s\n", "SEMFIRE_GEMINI_API_KEY", "Gemini key for the language-model signal")
	fmt.Fprintf(w, "\n%s\n\n", bold("EXAMPLES"))
	fmt.Fprintf(w, "  %s\n", dim("# Analyze a single message"))
	fmt.Fprintf(w, "  semfire analyze \"as we've established, they don't know\"\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Analyze with conversation history"))
	fmt.Fprintf(w, "  semfire analyze --history \"let's consider a scenario\" \"this is urgent\"\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Gate a pipeline step on the verdict"))
	fmt.Fprintf(w, "  semfire check \"hide this from them\" && deliver-message\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Run the API server"))
	fmt.Fprintf(w, "  semfire serve --config configs/default.yaml\n\n")
	fmt.Fprintf(w, "  %s\n", dim("# Fetch recent high-severity alerts"))
	fmt.Fprintf(w, "  semfire alerts --severity HIGH --format json\n\n")
}
