package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joseph-ayodele/tracklist-extractor/internal/common"
	"github.com/joseph-ayodele/tracklist-extractor/internal/logging"
	"github.com/joseph-ayodele/tracklist-extractor/internal/ocr"
)

func main() {
	logger, closer, err := logging.New(logging.Options{Level: os.Getenv("LOG_LEVEL"), Console: os.Stderr})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closer.Close()

	if len(os.Args) < 2 {
		logger.Error("usage", "cmd", "runocr <file.pdf> [max-pages]")
		os.Exit(2)
	}
	path := os.Args[1]

	cfg, _, err := common.LoadConfig(os.Getenv("TRACKLIST_CONFIG"))
	if err != nil {
		logger.Error("load config", "error", err)
		os.Exit(1)
	}
	maxPages := cfg.PDF.MaxPages
	if len(os.Args) >= 3 {
		n, err := strconv.Atoi(os.Args[2])
		if err != nil || n < 1 {
			logger.Error("invalid max pages", "arg", os.Args[2])
			os.Exit(2)
		}
		maxPages = n
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	x := ocr.NewExtractor(ocr.ConfigFromPDF(cfg.PDF), logger)

	start := time.Now()
	res, err := x.ExtractFile(ctx, path, maxPages)
	dur := time.Since(start)
	if err != nil {
		logger.Error("text extraction failed", "path", path, "error", err, "duration_ms", dur.Milliseconds())
		os.Exit(1)
	}

	logger.Info("text extraction OK",
		"path", path,
		"method", res.Method,
		"language", res.Language,
		"pages", res.Pages,
		"chars", len([]rune(res.Text)),
		"warnings", len(res.Warnings),
		"duration_ms", dur.Milliseconds(),
	)
	fmt.Println(res.Text)
}
