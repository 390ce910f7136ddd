package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
)

// nameList is a custom flag type for repeatable -process-name / -exclude
// flags.
type nameList []string

func (n *nameList) String() string {
	return strings.Join(*n, ", ")
}

func (n *nameList) Set(value string) error {
	*n = append(*n, value)
	return nil
}

// ParseFlags parses command-line flags and returns a Config.
func ParseFlags() (*Config, error) {
	cfg := DefaultConfig()
	var targetNames, excludeNames nameList
	var targetPid uint

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, `go-present-mon - GPU frame presentation capture and statistics

Usage:
  go-present-mon [flags]

Process Selection:
`)
		printFlagCategory([]string{"capture-all", "process-id", "process-name", "exclude"})

		fmt.Fprintf(os.Stderr, "\nOutput:\n")
		printFlagCategory([]string{"output-file", "lsr-output-file", "multi-csv", "exclude-dropped", "verbosity"})

		fmt.Fprintf(os.Stderr, "\nCapture Source:\n")
		printFlagCategory([]string{"etl-file"})

		fmt.Fprintf(os.Stderr, "\nRecording:\n")
		printFlagCategory([]string{"delay", "timed", "terminate-on-proc-exit"})

		fmt.Fprintf(os.Stderr, "\nConsole:\n")
		printFlagCategory([]string{"simple-console", "tui"})

		fmt.Fprintf(os.Stderr, "\nObservability:\n")
		printFlagCategory([]string{"metrics", "host-ws", "v", "log-format"})

		fmt.Fprintf(os.Stderr, `
Examples:
  # Capture one game, consolidated CSV
  go-present-mon -process-name game.exe

  # Capture everything except the compositor, one CSV per process
  go-present-mon -capture-all -exclude dwm.exe -multi-csv

  # Replay a recorded trace
  go-present-mon -etl-file capture.jsonl -capture-all

`)
	}

	// Process selection
	flag.BoolVar(&cfg.CaptureAll, "capture-all", cfg.CaptureAll, "Target every process (no filter)")
	flag.UintVar(&targetPid, "process-id", 0, "Target a single process id")
	flag.Var(&targetNames, "process-name", "Target a process image name (can repeat, case-insensitive)")
	flag.Var(&excludeNames, "exclude", "Exclude a process image name (can repeat, wins over targeting)")

	// Output
	flag.StringVar(&cfg.OutputFile, "output-file", cfg.OutputFile, "Present CSV path (empty disables)")
	flag.StringVar(&cfg.LsrOutputFile, "lsr-output-file", cfg.LsrOutputFile, "Reprojection CSV path (empty disables)")
	flag.BoolVar(&cfg.MultiCsv, "multi-csv", cfg.MultiCsv, "One CSV pair per process instead of consolidated files")
	flag.BoolVar(&cfg.ExcludeDropped, "exclude-dropped", cfg.ExcludeDropped, "Suppress rows for frames that were not displayed")
	flag.StringVar(&cfg.Verbosity, "verbosity", cfg.Verbosity, `Column set: "simple", "normal", or "verbose"`)

	// Capture source
	flag.StringVar(&cfg.EtlFile, "etl-file", cfg.EtlFile, "Read events from a recorded trace file instead of a live session")

	// Recording
	flag.DurationVar(&cfg.Delay, "delay", cfg.Delay, "Wait this long before recording starts")
	flag.DurationVar(&cfg.Timed, "timed", cfg.Timed, "Stop recording after this long (0 = until toggled)")
	flag.BoolVar(&cfg.TerminateOnProcExit, "terminate-on-proc-exit", cfg.TerminateOnProcExit, "Quit when the last target process exits")

	// Console
	flag.BoolVar(&cfg.SimpleConsole, "simple-console", cfg.SimpleConsole, "Suppress the live statistics redraw")
	flag.BoolVar(&cfg.TUIEnabled, "tui", cfg.TUIEnabled, "Enable live terminal dashboard (use -tui=false to disable)")

	// Observability
	flag.StringVar(&cfg.MetricsAddr, "metrics", cfg.MetricsAddr, "Prometheus metrics address")
	flag.StringVar(&cfg.HostWsURL, "host-ws", cfg.HostWsURL, "Forward console/CSV host-export frames to this websocket URL")
	flag.BoolVar(&cfg.Verbose, "v", cfg.Verbose, "Verbose logging")
	flag.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, `Log format: "json" or "text"`)

	// Diagnostics
	flag.BoolVar(&cfg.SkipPreflight, "skip-preflight", cfg.SkipPreflight, "Skip preflight checks")

	flag.Parse()

	cfg.TargetPid = uint32(targetPid)
	cfg.TargetNames = targetNames
	cfg.ExcludeNames = excludeNames

	return cfg, nil
}

// printFlagCategory prints flags matching the given names (helper for usage).
func printFlagCategory(names []string) {
	flag.VisitAll(func(f *flag.Flag) {
		for _, name := range names {
			if f.Name == name {
				fmt.Fprintf(os.Stderr, "  -%s\n    \t%s", f.Name, f.Usage)
				if f.DefValue != "" && f.DefValue != "false" && f.DefValue != "0" && f.DefValue != "0s" && f.DefValue != "[]" {
					fmt.Fprintf(os.Stderr, " (default %s)", f.DefValue)
				}
				fmt.Fprintln(os.Stderr)
				return
			}
		}
	})
}
