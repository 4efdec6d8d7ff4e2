package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	lockbroker "github.com/lockbroker/broker"
	"github.com/lockbroker/broker/internal/fs"
	"github.com/peterh/liner"
)

// REPL is brokerctl's interactive command loop, driving a single
// [lockbroker.Broker] instance with ordinary-lock tokens named by the
// operator at the prompt.
type REPL struct {
	broker *lockbroker.Broker[string, int]
	fsys   fs.FS
	cfg    Config

	liner   *liner.State
	permits map[string]*lockbroker.Permit[string, int]
}

// historyFile returns the path to brokerctl's readline history file.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".brokerctl_history")
}

// Run starts the REPL loop, blocking until the operator exits.
func (r *REPL) Run() error {
	r.permits = make(map[string]*lockbroker.Permit[string, int])

	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		_, _ = r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Println("brokerctl - granular lock broker console")
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("brokerctl> ")
		if err != nil {
			if err == liner.ErrPromptAborted || err == io.EOF {
				fmt.Println("\nBye!")
				break
			}
			return fmt.Errorf("reading input: %w", err)
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		r.liner.AppendHistory(line)

		parts := strings.Fields(line)
		cmd := strings.ToLower(parts[0])
		args := parts[1:]

		switch cmd {
		case "exit", "quit", "q":
			fmt.Println("Bye!")
			r.saveHistory()
			return nil

		case "help", "?":
			r.printHelp()

		case "rlock":
			r.cmdAcquire(args, lockbroker.Read, true)

		case "wlock":
			r.cmdAcquire(args, lockbroker.Write, true)

		case "tryrlock":
			r.cmdAcquire(args, lockbroker.Read, false)

		case "trywlock":
			r.cmdAcquire(args, lockbroker.Write, false)

		case "release":
			r.cmdRelease(args)

		case "held":
			r.cmdHeld()

		case "stats":
			r.cmdStats()

		case "shutdown":
			r.broker.Shutdown()
			fmt.Println("broker shut down; further acquires will fail")

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()
	return nil
}

func (r *REPL) saveHistory() {
	path := historyFile()
	if path == "" {
		return
	}
	if f, err := os.Create(path); err == nil {
		_, _ = r.liner.WriteHistory(f)
		f.Close()
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{"rlock", "wlock", "tryrlock", "trywlock", "release", "held", "stats", "shutdown", "help", "exit"}
	var matches []string
	for _, c := range commands {
		if strings.HasPrefix(c, line) {
			matches = append(matches, c)
		}
	}
	return matches
}

func (r *REPL) printHelp() {
	fmt.Println(`Commands:
  rlock <label> <key>      Acquire a blocking read lock, stored under <label>
  wlock <label> <key>      Acquire a blocking write lock, stored under <label>
  tryrlock <label> <key>   Acquire a non-blocking read lock
  trywlock <label> <key>   Acquire a non-blocking write lock
  release <label>          Release the permit stored under <label>
  held                     List currently held permits
  stats                    Print and snapshot broker statistics
  shutdown                 Reject all future acquisitions
  help                     Show this help
  exit / quit / q          Exit`)
}

func (r *REPL) cmdAcquire(args []string, mode lockbroker.Mode, blocking bool) {
	if len(args) != 2 {
		fmt.Println("usage: <cmd> <label> <key>")
		return
	}

	label, key := args[0], args[1]
	if _, exists := r.permits[label]; exists {
		fmt.Printf("label %q already holds a permit; release it first\n", label)
		return
	}

	token := lockbroker.NewToken[string, int](key)

	var (
		p   *lockbroker.Permit[string, int]
		err error
	)

	switch {
	case blocking && mode == lockbroker.Read:
		p, err = r.broker.ReadLock(context.Background(), token)
	case blocking && mode == lockbroker.Write:
		p, err = r.broker.WriteLock(context.Background(), token)
	case !blocking && mode == lockbroker.Read:
		p, err = r.broker.TryReadLock(token)
	default:
		p, err = r.broker.TryWriteLock(token)
	}

	if err != nil {
		fmt.Println("error:", err)
		return
	}

	r.permits[label] = p
	fmt.Printf("acquired %s lock on %q as %q\n", modeName(mode), key, label)
}

func (r *REPL) cmdRelease(args []string) {
	if len(args) != 1 {
		fmt.Println("usage: release <label>")
		return
	}

	label := args[0]
	p, ok := r.permits[label]
	if !ok {
		fmt.Printf("no permit held under label %q\n", label)
		return
	}

	if err := r.broker.Release(p); err != nil {
		fmt.Println("error:", err)
		return
	}

	delete(r.permits, label)
	fmt.Printf("released %q\n", label)
}

func (r *REPL) cmdHeld() {
	if len(r.permits) == 0 {
		fmt.Println("(no permits held)")
		return
	}
	for label, p := range r.permits {
		fmt.Printf("%s: %s lock on %v\n", label, modeName(p.Mode()), p.Token())
	}
}

func (r *REPL) cmdStats() {
	stats := r.broker.Stats()
	fmt.Printf("outstanding permits: %d\n", stats.OutstandingPermits)

	if r.cfg.SnapshotPath == "" {
		return
	}

	if err := writeSnapshot(r.fsys, r.cfg.SnapshotPath, stats, time.Now()); err != nil {
		fmt.Println("snapshot error:", err)
		return
	}
	fmt.Printf("snapshot written to %s\n", r.cfg.SnapshotPath)
}

func modeName(m lockbroker.Mode) string {
	if m == lockbroker.Write {
		return "write"
	}
	return "read"
}
