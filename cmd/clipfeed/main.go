package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/lmittmann/tint"
)

const usage = `Usage:
  clipfeed feed [-preset train-rgb] [-config feed.yaml] [-steps N] [-run name] [-debug]
  clipfeed extract -out dir -manifest list.txt [-labels 0,1,...] [-workers N] video...
  clipfeed similar -config feed.yaml -run name -video id -start N [-k 5]`

func newLogger(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println(usage)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "feed":
		err = feedCmd(ctx, os.Args[2:])
	case "extract":
		err = extractCmd(ctx, os.Args[2:])
	case "similar":
		err = similarCmd(ctx, os.Args[2:])
	default:
		fmt.Println(usage)
		os.Exit(1)
	}

	if err != nil {
		slog.Error("clipfeed failed", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}
