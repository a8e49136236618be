package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/lesterapp/lester/internal/config"
	"github.com/lesterapp/lester/internal/db"
	"github.com/lesterapp/lester/internal/logger"
	"github.com/lesterapp/lester/internal/mcp"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"workspace": true, "bookmark": true, "tags": true, "tag-cloud": true,
	"jobs": true, "suggest": true, "merge": true, "export-ops": true,
	"worker": true, "serve": true, "mcp": true,
	"help": true,
}

// isCLIMode determines if we should run CLI vs MCP server.
func isCLIMode() bool {
	if len(os.Args) < 2 {
		return false // No args → MCP server
	}
	arg := os.Args[1]
	if cliCommands[arg] {
		return true
	}
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v"
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
  _           _
 | | ___  ___| |_ ___ _ __
 | |/ _ \/ __| __/ _ \ '__|
 | |  __/\__ \ ||  __/ |
 |_|\___||___/\__\___|_|

  Personal bookmark manager

  Usage: lester <command> [options]
         lester --help

  MCP server mode requires piped input.`)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	os.Exit(1)
}

func main() {
	// No args + interactive terminal → show banner and exit
	if len(os.Args) < 2 && isTerminal() {
		printBanner()
		return
	}

	// Handle --help/--version before DB init (no DB needed)
	if isHelpOrVersion() {
		app := newCLIApp(nil)
		if err := app.Run(os.Args); err != nil {
			fail("%v", err)
		}
		return
	}

	baseDir, err := config.BaseDir()
	if err != nil {
		fail("could not determine base directory: %v", err)
	}

	cfg, err := config.Load(baseDir)
	if err != nil {
		fail("failed to load config: %v", err)
	}

	log := logger.New(logger.Config{
		Format: cfg.LogFormat,
		Level:  logger.ParseLevel(cfg.LogLevel),
	})

	dbPath := cfg.ResolveDBPath(baseDir)
	database, err := db.Open(dbPath)
	if err != nil {
		fail("failed to initialize database: %v", err)
	}
	defer database.Close()
	db.ConfigurePool(database, cfg)

	deps := &appDeps{
		db:      database,
		dbPath:  dbPath,
		baseDir: baseDir,
		cfg:     cfg,
		log:     log,
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		app := newCLIApp(deps)
		err := app.RunContext(ctx, os.Args)
		stop()
		if err != nil {
			database.Close()
			fail("%v", err)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		database.Close()
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'lester --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(database, cfg, log, Version); err != nil {
		database.Close()
		fail("%v", err)
	}
}
