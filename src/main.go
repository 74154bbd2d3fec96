package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"texwatch/src/features/announce"
	"texwatch/src/features/compiling"
	"texwatch/src/features/config"
	"texwatch/src/features/ignore"
	"texwatch/src/features/logging"
	"texwatch/src/features/manifest"
	"texwatch/src/features/watching"
	"texwatch/src/infra/notify"
)

// version is overridden at build time via -ldflags.
var version = "dev"

var opts = config.Options{}

var rootCmd = &cobra.Command{
	Use:   "texwatch <main-file>",
	Short: "Watch a LaTeX project and compile it remotely on every change.",
	Long: `Watch a LaTeX project directory and send its files to a compilation
server whenever they change. The resulting PDF is written next to the main
file. A .latexignore file (gitignore syntax) controls what gets shipped.`,
	Args:          cobra.ExactArgs(1),
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts.MainFile = args[0]
		if !cmd.Flags().Changed("server") {
			opts.Server = ""
		}
		if !cmd.Flags().Changed("debounce") {
			opts.Debounce = 0
		}

		cfg, err := config.Load(opts)
		if err != nil {
			return err
		}
		slog.SetDefault(logging.SetupLogger(cfg))
		return run(cfg)
	},
}

func init() {
	rootCmd.Flags().StringVarP(&opts.Server, "server", "s", "http://localhost:9080", "URL of the compilation server")
	rootCmd.Flags().StringVarP(&opts.Directory, "directory", "d", "", "Directory to watch (defaults to the main file's directory)")
	rootCmd.Flags().Float64VarP(&opts.Debounce, "debounce", "b", 1.0, "Seconds to wait after the last change before compiling")
	rootCmd.Flags().BoolVarP(&opts.CompileOnStart, "compile-on-start", "c", false, "Compile immediately on start")
	rootCmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Enable verbose logging")
}

func run(cfg *config.Config) error {
	rules := ignore.Compile(ignore.DefaultRules, ignore.ReadUserFile(cfg.WatchDir))
	client := compiling.NewClient(cfg)

	slog.Info("Checking server", "url", cfg.Server)
	if err := client.Probe(context.Background()); err != nil {
		return fmt.Errorf("cannot connect to server at %s (is the compilation server running?): %w", cfg.Server, err)
	}

	events := make(chan watching.ChangeEvent, 64)
	watcher, err := notify.NewWatcher(cfg.WatchDir, rules.IsIncluded, events)
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	window := time.Duration(cfg.DebounceSeconds * float64(time.Second))
	scheduler := watching.NewScheduler(window, events)
	collector := manifest.NewCollector(cfg.WatchDir, cfg.MainFile, rules)
	writer := compiling.NewArtifactWriter(cfg.MainFile)

	var announcer watching.Announcer
	if cfg.Telegram.Enabled {
		a, err := announce.NewTelegramAnnouncer(cfg)
		if err != nil {
			slog.Warn("Telegram announcements unavailable", "error", err)
		} else {
			announcer = a
		}
	}

	orchestrator := watching.NewOrchestrator(collector, client, writer, announcer, scheduler.Triggers())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go scheduler.Run(ctx)
	if err := watcher.Start(ctx); err != nil {
		return fmt.Errorf("failed to start file watcher: %w", err)
	}
	defer watcher.Stop()

	slog.Info("Watching for changes", "dir", cfg.WatchDir, "main", cfg.MainFile, "server", cfg.Server, "debounce", cfg.DebounceSeconds)

	done := make(chan error, 1)
	go func() {
		done <- orchestrator.Run(ctx, cfg.CompileOnStart)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case <-quit:
		slog.Info("Shutting down")
		// Cancel the debounce timer first so no trigger fires after this
		// point; an in-flight upload then runs out on its own timeout.
		cancel()
		watcher.Stop()
		return <-done
	case err := <-done:
		return err
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
