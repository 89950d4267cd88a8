package main

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/lmittmann/tint"

	"github.com/bdougie/clipfeed/internal/duplicate"
)

func main() {
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	)

	if len(os.Args) != 3 {
		fmt.Println("Usage: duplicate <template-file-stem> <N>")
		os.Exit(1)
	}

	stem := os.Args[1]
	n, err := strconv.Atoi(os.Args[2])
	if err != nil {
		logger.Error("copy count must be an integer", "value", os.Args[2])
		os.Exit(1)
	}

	paths, err := duplicate.Run(stem, n)
	if err != nil {
		logger.Error("duplication failed", "template", duplicate.TemplatePath(stem), "error", err)
		os.Exit(1)
	}
	logger.Info("wrote copies", "template", duplicate.TemplatePath(stem), "copies", len(paths))
}
