package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/hpungsan/rolodex/internal/config"
	"github.com/hpungsan/rolodex/internal/db"
	"github.com/hpungsan/rolodex/internal/device"
	"github.com/hpungsan/rolodex/internal/devicesync"
	"github.com/hpungsan/rolodex/internal/logging"
	"github.com/hpungsan/rolodex/internal/mcp"
	"github.com/hpungsan/rolodex/internal/ops"
	"github.com/hpungsan/rolodex/internal/reminder"
	"github.com/hpungsan/rolodex/internal/store"
)

// Version is set via -ldflags at build time.
var Version = "dev"

// cliCommands contains known CLI subcommands.
var cliCommands = map[string]bool{
	"add": true, "get": true, "update": true, "delete": true,
	"list": true, "search": true, "note": true, "remind": true,
	"sync": true, "export": true, "import": true, "serve": true,
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
	if arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" {
		return true
	}
	return false
}

// isHelpOrVersion returns true if the user is requesting help or version info.
func isHelpOrVersion() bool {
	if len(os.Args) < 2 {
		return false
	}
	arg := os.Args[1]
	return arg == "--help" || arg == "-h" || arg == "--version" || arg == "-v" || arg == "help"
}

// isLongLived reports whether the process keeps running and so needs armed reminders.
func isLongLived() bool {
	return !isCLIMode() || os.Args[1] == "serve"
}

// isTerminal returns true if stdin is a terminal (not piped).
func isTerminal() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) != 0
}

// printBanner displays a friendly banner when run interactively without args.
func printBanner() {
	fmt.Println(`
   ____       _           _
  |  _ \ ___ | | ___   __| | _____  __
  | |_) / _ \| |/ _ \ / _' |/ _ \ \/ /
  |  _ < (_) | | (_) | (_| |  __/>  <
  |_| \_\___/|_|\___/ \__,_|\___/_/\_\

  Personal contact book

  Usage: rolodex <command> [options]
         rolodex --help

  MCP server mode requires piped input.`)
}

// newEnv wires the store, reminder scheduler and device sync engine.
func newEnv(database *sql.DB, cfg *config.Config, logger *zap.Logger) *ops.Env {
	db.ConfigurePool(database, cfg)

	env := &ops.Env{
		Store:     store.New(database, logger),
		Config:    cfg,
		Reminders: reminder.NewCronScheduler(reminder.LogNotifier{Logger: logger.Named("reminder")}, logger),
		Logger:    logger,
	}

	if cfg.DeviceDirectoryPath != "" {
		dir := device.NewVCardDirectory(cfg.DeviceDirectoryPath, device.DBPermissions{DB: database},
			syncPrompt(cfg.DeviceDirectoryPath), logger)
		env.Sync = devicesync.NewEngine(dir, env.Store, devicesync.DBSettings{DB: database},
			devicesync.OptionsFromConfig(cfg), logger)
	}
	return env
}

// syncPrompt asks on the terminal before the first sync of an interactive
// CLI run. Other modes get no prompt: the configured path counts as consent
// and "sync permission deny" revokes it.
func syncPrompt(path string) device.PromptFunc {
	if !isCLIMode() || !isTerminal() {
		return nil
	}
	return device.NewTerminalPrompt(os.Stdin, os.Stderr, path)
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
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: could not determine home directory: %v\n", err)
		os.Exit(1)
	}
	baseDir := filepath.Join(homeDir, config.DirName)

	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}
	cfg, err := config.LoadWithRepo(baseDir, cwd)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to build logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	database, err := db.Init(baseDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: failed to initialize database: %v\n", err)
		os.Exit(1)
	}
	defer database.Close()

	env := newEnv(database, cfg, logger)

	if isLongLived() {
		if sched, ok := env.Reminders.(*reminder.CronScheduler); ok {
			sched.Start()
			defer sched.Stop()
		}
		n, err := ops.RearmReminders(context.Background(), env)
		if err != nil {
			logger.Warn("rearming reminders failed", zap.Error(err))
		} else if n > 0 {
			logger.Info("reminders rearmed", zap.Int("count", n))
		}

		watchCtx, stopWatch := context.WithCancel(context.Background())
		defer stopWatch()
		go func() {
			if err := ops.WatchReminders(watchCtx, env); err != nil {
				logger.Warn("reminder watch stopped", zap.Error(err))
			}
		}()
	}

	// CLI mode: known subcommand
	if isCLIMode() {
		app := newCLIApp(env)
		if err := app.Run(os.Args); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	// Unknown argument + terminal → show error (don't start MCP server)
	if len(os.Args) >= 2 && isTerminal() {
		fmt.Fprintf(os.Stderr, "error: unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "Run 'rolodex --help' for usage.\n")
		os.Exit(1)
	}

	// MCP server mode (default)
	if err := mcp.Run(env, Version); err != nil {
		logger.Error("mcp server stopped", zap.Error(err))
		os.Exit(1)
	}
}
