// brokerctl is an interactive console for a [lockbroker.Broker] instance,
// useful for exploring lock contention scenarios by hand.
//
// Usage:
//
//	brokerctl [flags] [command]
//
// Commands:
//
//	repl     Start the interactive lock console (default)
//	stats    Print current broker statistics and exit
//	config   Print the resolved configuration and exit
//
// Flags:
//
//	-C, --cwd            Run as if started in dir
//	-c, --config         Use specified config file
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	lockbroker "github.com/lockbroker/broker"
	"github.com/lockbroker/broker/internal/fs"
	flag "github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args, os.Stdout, os.Stderr))
}

func run(args []string, out, errOut *os.File) int {
	flags := flag.NewFlagSet("brokerctl", flag.ContinueOnError)
	flags.SetInterspersed(false)
	flags.SetOutput(&strings.Builder{})

	flagCwd := flags.StringP("cwd", "C", "", "run as if started in `dir`")
	flagConfig := flags.StringP("config", "c", "", "use specified config `file`")
	flagHelp := flags.BoolP("help", "h", false, "show help")

	if err := flags.Parse(args[1:]); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	if *flagHelp {
		printUsage(out)
		return 0
	}

	workDir := *flagCwd
	if workDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		workDir = wd
	}

	cfg, err := LoadConfig(workDir, *flagConfig)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	command := "repl"
	if rest := flags.Args(); len(rest) > 0 {
		command = rest[0]
	}

	fsys := fs.NewReal()

	switch command {
	case "config":
		formatted, err := FormatConfig(cfg)
		if err != nil {
			fmt.Fprintln(errOut, "error:", err)
			return 1
		}
		fmt.Fprint(out, formatted)
		return 0

	case "stats":
		return runStats(cfg, fsys, out, errOut)

	case "repl":
		return runRepl(cfg, fsys, out, errOut)

	default:
		fmt.Fprintf(errOut, "error: unknown command %q\n", command)
		printUsage(errOut)
		return 1
	}
}

func runStats(cfg Config, fsys fs.FS, out, errOut *os.File) int {
	interval, err := cfg.reclaimInterval()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	reclaimer := lockbroker.NewReclaimer(interval)
	defer reclaimer.Close()

	broker := lockbroker.New[string, int](lockbroker.WithReclaimer[string, int](reclaimer))
	defer broker.Shutdown()

	stats := broker.Stats()
	fmt.Fprintf(out, "outstanding permits: %d\n", stats.OutstandingPermits)

	if cfg.SnapshotPath == "" {
		return 0
	}

	if err := writeSnapshot(fsys, cfg.SnapshotPath, stats, time.Now()); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	return 0
}

func runRepl(cfg Config, fsys fs.FS, out, errOut *os.File) int {
	interval, err := cfg.reclaimInterval()
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	reclaimer := lockbroker.NewReclaimer(interval)
	defer reclaimer.Close()

	broker := lockbroker.New[string, int](lockbroker.WithReclaimer[string, int](reclaimer))
	defer broker.Shutdown()

	repl := &REPL{broker: broker, fsys: fsys, cfg: cfg}
	if err := repl.Run(); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	return 0
}

func printUsage(w *os.File) {
	fmt.Fprintln(w, "Usage: brokerctl [flags] [command]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  repl     Start the interactive lock console (default)")
	fmt.Fprintln(w, "  stats    Print current broker statistics and exit")
	fmt.Fprintln(w, "  config   Print the resolved configuration and exit")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -C, --cwd dir       run as if started in dir")
	fmt.Fprintln(w, "  -c, --config file   use specified config file")
}
