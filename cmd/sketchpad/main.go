// Package main is the entry point for the Sketchpad drawing editor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/gdamore/tcell/v2"

	"github.com/dshills/sketchpad/internal/app"
	"github.com/dshills/sketchpad/internal/config"
	"github.com/dshills/sketchpad/internal/storage"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

type cliOptions struct {
	app.Options
	script string
	open   string
	save   string
	list   bool
}

func main() {
	os.Exit(run())
}

func run() int {
	opts := parseFlags()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Create application
	application, err := app.New(opts.Options)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize: %v\n", err)
		return 1
	}

	// Ensure cleanup on all exit paths
	defer application.Close()

	if opts.list {
		return listDocuments(application)
	}

	if opts.open != "" {
		if err := openDocument(ctx, application, opts.open); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
	}

	if opts.script != "" {
		return runScript(ctx, application, opts)
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to create terminal: %v\n", err)
		return 1
	}
	if err := screen.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to initialize terminal: %v\n", err)
		return 1
	}
	defer screen.Fini()

	if err := application.RunUI(ctx, screen); err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// openDocument treats arguments that look like paths as files and
// everything else as a stored document name. A name with no stored
// document starts a new drawing under that name.
func openDocument(ctx context.Context, application *app.Application, target string) error {
	if isPath(target) {
		return application.OpenFile(ctx, target)
	}
	err := application.Open(ctx, target)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	return err
}

func isPath(target string) bool {
	if strings.ContainsRune(target, filepath.Separator) {
		return true
	}
	switch strings.ToLower(filepath.Ext(target)) {
	case ".json", ".yaml", ".yml":
		return true
	}
	return false
}

func runScript(ctx context.Context, application *app.Application, opts cliOptions) int {
	if err := application.RunScript(ctx, opts.script, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	if opts.save == "" {
		return 0
	}
	path, err := application.SaveAs(opts.save)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Println(path)
	return 0
}

func listDocuments(application *app.Application) int {
	docs, err := application.Documents()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	for _, d := range docs {
		fmt.Printf("%-24s %-5s %4d objects  %s\n", d.Name, d.Format, d.Objects, d.SavedAt.Format("2006-01-02 15:04"))
	}
	return 0
}

func parseFlags() cliOptions {
	var opts cliOptions
	var showVersion bool
	var showHelp bool

	flag.StringVar(&opts.ConfigPath, "config", config.DefaultPath(), "Path to configuration file")
	flag.StringVar(&opts.ConfigPath, "c", config.DefaultPath(), "Path to configuration file (shorthand)")
	flag.StringVar(&opts.LogLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flag.StringVar(&opts.LogFormat, "log-format", "", "Log format (text, json)")
	flag.BoolVar(&opts.Watch, "watch", true, "Reload the configuration file when it changes")
	flag.StringVar(&opts.open, "open", "", "Document name or file to open")
	flag.StringVar(&opts.open, "o", "", "Document name or file to open (shorthand)")
	flag.StringVar(&opts.script, "script", "", "Run a Lua script instead of the editor")
	flag.StringVar(&opts.script, "s", "", "Run a Lua script instead of the editor (shorthand)")
	flag.StringVar(&opts.save, "save", "", "Save the drawing under this name after -script")
	flag.BoolVar(&opts.list, "list", false, "List stored documents")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showVersion, "v", false, "Show version information (shorthand)")
	flag.BoolVar(&showHelp, "help", false, "Show help message")
	flag.BoolVar(&showHelp, "h", false, "Show help message (shorthand)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Sketchpad - terminal drawing canvas with undo/redo\n\n")
		fmt.Fprintf(os.Stderr, "Usage: sketchpad [options] [document]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  sketchpad                         Start with an empty canvas\n")
		fmt.Fprintf(os.Stderr, "  sketchpad plan                    Open the stored document \"plan\"\n")
		fmt.Fprintf(os.Stderr, "  sketchpad -o ./plan.yaml          Open a file\n")
		fmt.Fprintf(os.Stderr, "  sketchpad -s draw.lua -save plan  Run a script and save the result\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("Sketchpad %s\n", version)
		fmt.Printf("Commit: %s\n", commit)
		fmt.Printf("Built: %s\n", date)
		os.Exit(0)
	}

	// Validate log level
	if opts.LogLevel != "" {
		if _, err := app.ParseLogLevel(opts.LogLevel); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid log level %q (must be debug, info, warn, or error)\n", opts.LogLevel)
			os.Exit(1)
		}
	}

	// The first remaining argument names the document to open and save.
	if args := flag.Args(); len(args) > 0 && opts.open == "" {
		opts.open = args[0]
	}
	if opts.open != "" && !isPath(opts.open) {
		opts.Document = opts.open
	}

	opts.Interactive = opts.script == "" && !opts.list
	return opts
}
