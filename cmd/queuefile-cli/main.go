// queuefile-cli is an interactive REPL for inspecting and manipulating a
// queuefile.QueueFile on disk.
//
// Usage:
//
//	queuefile-cli [--create] [--config PATH] <queue-file>
//
// Commands (in REPL):
//
//	add <text>             Append a UTF-8 record
//	add-hex <hex>          Append raw bytes given as hex
//	peek                   Show the head record (length + hex preview)
//	remove                 Pop the head record
//	size                   Show element count
//	stat                   Show file length, used/free bytes, head/tail offsets
//	inject-fail-write      Make every later write fail (stays armed for the session)
//	inject-fail-sync       Make every later sync fail (stays armed for the session)
//	clear                  Truncate the queue back to empty
//	help                   Show this help
//	exit / quit / q        Exit
package main

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"

	"github.com/diskq/queuefile"
	"github.com/diskq/queuefile/internal/fileio"
	"github.com/diskq/queuefile/queuefileconfig"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	fs := pflag.NewFlagSet("queuefile-cli", pflag.ContinueOnError)

	create := fs.Bool("create", false, "create the queue file if it doesn't exist")
	configPath := fs.String("config", "", "explicit config file path")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: queuefile-cli [--create] [--config PATH] <queue-file>\n\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		return err
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	cfg, _, err := queuefileconfig.Load(workDir, *configPath, queuefileconfig.Config{}, os.Environ())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	path := cfg.DefaultQueuePath
	if fs.NArg() >= 1 {
		path = fs.Arg(0)
	}

	if path == "" {
		fs.Usage()

		return errors.New("missing queue file path")
	}

	if !*create {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("queue file does not exist: %s (pass --create to create it)", path)
		}
	}

	real, err := fileio.OpenReal(path)
	if err != nil {
		return fmt.Errorf("opening queue file: %w", err)
	}

	fault := fileio.Wrap(real)

	opts := queuefile.DefaultOpenOptions()
	if cfg.InitialLength != 0 {
		opts.InitialLength = cfg.InitialLength
	}

	if cfg.MaxFileLength != 0 {
		opts.MaxFileLength = cfg.MaxFileLength
	}

	q, err := queuefile.OpenFile(fault, opts)
	if err != nil {
		_ = real.Close()

		return fmt.Errorf("opening queue: %w", err)
	}
	defer q.Close()

	repl := &REPL{q: q, fault: fault, path: path}

	return repl.Run()
}

// REPL is the interactive command loop.
type REPL struct {
	q     *queuefile.QueueFile
	fault *fileio.Fault
	path  string
	liner *liner.State
}

func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".queuefile_history")
}

// Run starts the REPL loop.
func (r *REPL) Run() error {
	r.liner = liner.NewLiner()
	defer r.liner.Close()

	r.liner.SetCtrlCAborts(true)
	r.liner.SetCompleter(r.completer)

	if f, err := os.Open(historyFile()); err == nil {
		r.liner.ReadHistory(f)
		f.Close()
	}

	fmt.Printf("queuefile-cli - %s\n", r.path)
	fmt.Println("Type 'help' for available commands.")
	fmt.Println()

	for {
		line, err := r.liner.Prompt("queuefile> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
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

		case "add":
			r.cmdAdd(args)

		case "add-hex":
			r.cmdAddHex(args)

		case "peek":
			r.cmdPeek()

		case "remove", "rm":
			r.cmdRemove()

		case "size", "len":
			r.cmdSize()

		case "stat":
			r.cmdStat()

		case "inject-fail-write":
			r.fault.SetFailWrites(true)
			fmt.Println("armed: next writes will fail")

		case "inject-fail-sync":
			r.fault.SetFailSync(true)
			fmt.Println("armed: next syncs will fail")

		case "clear":
			r.cmdClear()

		case "config-init":
			r.cmdConfigInit()

		default:
			fmt.Printf("Unknown command: %s (type 'help' for commands)\n", cmd)
		}
	}

	r.saveHistory()

	return nil
}

func (r *REPL) saveHistory() {
	if path := historyFile(); path != "" {
		if f, err := os.Create(path); err == nil {
			r.liner.WriteHistory(f)
			f.Close()
		}
	}
}

func (r *REPL) completer(line string) []string {
	commands := []string{
		"add", "add-hex", "peek", "remove", "rm", "size", "len",
		"stat", "inject-fail-write", "inject-fail-sync", "clear",
		"config-init", "help", "exit", "quit", "q",
	}

	var completions []string

	lower := strings.ToLower(line)
	for _, cmd := range commands {
		if strings.HasPrefix(cmd, lower) {
			completions = append(completions, cmd)
		}
	}

	return completions
}

func (r *REPL) printHelp() {
	fmt.Println("Commands:")
	fmt.Println("  add <text>             Append a UTF-8 record")
	fmt.Println("  add-hex <hex>          Append raw bytes given as hex")
	fmt.Println("  peek                   Show the head record (length + hex preview)")
	fmt.Println("  remove                 Pop the head record")
	fmt.Println("  size                   Show element count")
	fmt.Println("  stat                   Show file length, used/free bytes, head/tail offsets")
	fmt.Println("  inject-fail-write      Make every later write fail (stays armed for the session)")
	fmt.Println("  inject-fail-sync       Make every later sync fail (stays armed for the session)")
	fmt.Println("  clear                  Truncate the queue back to empty")
	fmt.Println("  config-init            Write a project .queuefile.json5 with this queue's path")
	fmt.Println("  help                   Show this help")
	fmt.Println("  exit / quit / q        Exit")
}

func (r *REPL) cmdAdd(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: add <text>")

		return
	}

	text := strings.Join(args, " ")
	if err := r.q.Add([]byte(text)); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("added %d bytes\n", len(text))
}

func (r *REPL) cmdAddHex(args []string) {
	if len(args) < 1 {
		fmt.Println("Usage: add-hex <hex>")

		return
	}

	data, err := hex.DecodeString(args[0])
	if err != nil {
		fmt.Printf("Error decoding hex: %v\n", err)

		return
	}

	if err := r.q.Add(data); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("added %d bytes\n", len(data))
}

func (r *REPL) cmdPeek() {
	data, ok, err := r.q.Peek()
	if err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	if !ok {
		fmt.Println("(empty)")

		return
	}

	const preview = 64

	shown := data
	truncated := false

	if len(shown) > preview {
		shown = shown[:preview]
		truncated = true
	}

	fmt.Printf("length: %d\n", len(data))
	fmt.Printf("hex:    %s%s\n", hex.EncodeToString(shown), truncatedSuffix(truncated))
}

func truncatedSuffix(truncated bool) string {
	if truncated {
		return "..."
	}

	return ""
}

func (r *REPL) cmdRemove() {
	if err := r.q.Remove(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("removed")
}

func (r *REPL) cmdSize() {
	fmt.Printf("size: %d\n", r.q.Size())
}

func (r *REPL) cmdStat() {
	stat := r.q.Stat()

	fmt.Printf("file length:   %d\n", stat.FileLength)
	fmt.Printf("used bytes:    %d\n", stat.UsedBytes)
	fmt.Printf("free bytes:    %d\n", stat.FreeBytes)
	fmt.Printf("element count: %d\n", stat.ElementCount)
	fmt.Printf("first offset:  %d\n", stat.FirstPos)
	fmt.Printf("last offset:   %d\n", stat.LastPos)
}

func (r *REPL) cmdClear() {
	if err := r.q.Clear(); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Println("cleared")
}

func (r *REPL) cmdConfigInit() {
	cfg := queuefileconfig.Config{DefaultQueuePath: r.path}

	if err := queuefileconfig.Save(queuefileconfig.ConfigFileName, cfg); err != nil {
		fmt.Printf("Error: %v\n", err)

		return
	}

	fmt.Printf("wrote %s\n", queuefileconfig.ConfigFileName)
}
