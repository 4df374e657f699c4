package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"runtime/debug"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/porter-gw/porter/internal/config"
	"github.com/porter-gw/porter/internal/tui/watch"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(runCLI(os.Args[1:]))
}

func runCLI(cliArgs []string) int {
	if len(cliArgs) < 1 {
		printUsage()
		return 1
	}

	cmd := cliArgs[0]
	args := cliArgs[1:]

	switch cmd {
	case "start":
		return runStart(args)
	case "watch":
		return runWatch(args)
	case "config":
		return runConfigNoun(args)
	case "version", "--version":
		return runVersion(args)
	case "help", "--help", "-h":
		printUsage()
		return 0
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", cmd)
		printUsage()
		return 1
	}
}

func runConfigNoun(args []string) int {
	if len(args) < 1 {
		printConfigHelp()
		return 1
	}
	switch args[0] {
	case "check":
		return runConfigCheck(args[1:])
	case "hash-update":
		return runConfigHashUpdate(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown config subcommand: %s\n\n", args[0])
		printConfigHelp()
		return 1
	}
}

func runConfigCheck(args []string) int {
	fs := flag.NewFlagSet("config check", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config invalid: %v\n", err)
		return 1
	}

	fmt.Printf("Config OK: %s\n", *configPath)
	fmt.Printf("  gateway listen:  %s\n", cfg.Gateway.Listen)
	fmt.Printf("  api listen:      %s\n", cfg.API.Listen)
	fmt.Printf("  registry url:    %s\n", cfg.Registry.URL)
	fmt.Printf("  forward timeout: %s\n", cfg.Gateway.ForwardTimeout)
	return 0
}

func runConfigHashUpdate(args []string) int {
	fs := flag.NewFlagSet("config hash-update", flag.ExitOnError)
	configPath := fs.String("config", "config.yaml", "Path to configuration file")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	if err := config.WriteChecksum(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to write checksum: %v\n", err)
		return 1
	}
	fmt.Printf("Checksum written: %s.checksum\n", *configPath)
	return 0
}

func runWatch(args []string) int {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	apiURL := fs.String("api-url", "http://localhost:8081", "Admin API URL")
	apiKey := fs.String("api-key", os.Getenv("PORTER_API_KEY"), "API bearer token")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	m := watch.New(strings.TrimRight(*apiURL, "/"), *apiKey)
	p := tea.NewProgram(m)
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "TUI error: %v\n", err)
		return 1
	}
	return 0
}

type versionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"build_time"`
}

func runVersion(args []string) int {
	fs := flag.NewFlagSet("version", flag.ContinueOnError)
	jsonOut := fs.Bool("json", false, "Output version metadata as JSON")
	if err := fs.Parse(args); err != nil {
		fmt.Fprintf(os.Stderr, "Flag error: %v\n", err)
		return 1
	}

	info := currentVersionInfo()
	if *jsonOut {
		data, err := json.MarshalIndent(info, "", "  ")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Failed to render version JSON: %v\n", err)
			return 1
		}
		fmt.Println(string(data))
		return 0
	}

	fmt.Printf("porter %s\n", info.Version)
	fmt.Printf("commit: %s\n", info.Commit)
	fmt.Printf("built_at: %s\n", info.BuildTime)
	return 0
}

func currentVersionInfo() versionInfo {
	info := versionInfo{
		Version:   strings.TrimSpace(version),
		Commit:    strings.TrimSpace(gitCommit),
		BuildTime: strings.TrimSpace(buildDate),
	}
	if info.Version == "" {
		info.Version = "0.0.0-dev"
	}

	// Fall back to module build info when ldflags were not set.
	if bi, ok := debug.ReadBuildInfo(); ok {
		for _, s := range bi.Settings {
			if s.Key == "vcs.revision" && info.Commit == "unknown" {
				info.Commit = s.Value
			}
			if s.Key == "vcs.time" && info.BuildTime == "unknown" {
				info.BuildTime = s.Value
			}
		}
	}
	return info
}

func printUsage() {
	fmt.Println("porter - webhook ingestion and proxy gateway")
	fmt.Println()
	fmt.Println("Usage: porter <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  start              Run the gateway and admin API")
	fmt.Println("  watch              Live console TUI (alerts and events)")
	fmt.Println("  config check       Validate a configuration file")
	fmt.Println("  config hash-update Regenerate the config integrity checksum")
	fmt.Println("  version            Print version information")
}

func printConfigHelp() {
	fmt.Println("Usage: porter config <check|hash-update> [flags]")
	fmt.Println()
	fmt.Println("  check        Load and validate the configuration")
	fmt.Println("  hash-update  Write the integrity checksum sidecar")
}
