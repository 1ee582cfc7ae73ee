package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rfoley/tapedeck/internal/app"
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "override config path (default ~/.config/tapedeck/config.toml)")
	prefsPath := flag.String("prefs", "", "override prefs path (default ~/.config/tapedeck/prefs.toml)")
	pollEvery := flag.Duration("poll", 0, "override delta-poll interval (e.g. 5m)")
	debugLog := flag.String("debug-log", "", "write background logs to this file instead of the terminal")
	flag.Parse()

	if *debugLog != "" {
		f, err := tea.LogToFile(*debugLog, "tapedeck")
		if err != nil {
			fmt.Fprintf(os.Stderr, "tapedeck: open debug log: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	opts := app.Options{
		ConfigPath: *configPath,
		PrefsPath:  *prefsPath,
	}
	if *pollEvery > 0 {
		opts.PollEvery = *pollEvery
	}

	if err := app.Run(ctx, opts); err != nil {
		fmt.Fprintf(os.Stderr, "tapedeck: %v\n", err)
		return 1
	}
	return 0
}
