package main

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aluiziolira/go-fiction-books/pipeline"
)

var (
	version = "dev"
	commit  = "none"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		slog.Error("run failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func printSummary(res *pipeline.Result, dbPath, table, chartFile, exportFile string) {
	separator := "--------------------------------------------------"
	fmt.Println("\n" + separator)
	fmt.Println("Run complete")

	if res.Fetched > 0 || res.Clean.Input > 0 {
		fmt.Printf("  Fetched:       %d\n", res.Fetched)
		fmt.Printf("  Cleaned:       %d\n", res.Clean.Output)
		fmt.Printf("  Dropped:       %d\n", res.Clean.TotalDropped())
		if len(res.Clean.Dropped) > 0 {
			fmt.Printf("  Drop reasons:  %v\n", res.Clean.Dropped)
		}
	}
	fmt.Printf("  Stored rows:   %d (%s:%s)\n", res.Stored, dbPath, table)
	fmt.Printf("  Years plotted: %d\n", len(res.Histogram))
	fmt.Printf("  Chart file:    %s\n", chartFile)
	if exportFile != "" {
		fmt.Printf("  Export file:   %s\n", exportFile)
	}
	fmt.Printf("  Duration:      %v\n", res.Duration().Round(time.Millisecond))
	fmt.Println(separator)
}

func newLogger(verbose bool) (*slog.Logger, *slog.LevelVar) {
	level := &slog.LevelVar{}
	if verbose {
		level.Set(slog.LevelDebug)
	} else {
		level.Set(slog.LevelInfo)
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if isTerminal(os.Stdout) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	return slog.New(handler), level
}

func isTerminal(f *os.File) bool {
	info, err := f.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
