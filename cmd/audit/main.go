// Command audit scores a batch of documents offline and writes one NDJSON
// record per input document.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/zombar/geoanalyzer/internal/config"
	"github.com/zombar/geoanalyzer/internal/ioformats"
)

func main() {
	in := flag.String("input", "", "input file (csv with 'content' column, ndjson, .html, .md or .txt)")
	out := flag.String("output", "", "output NDJSON file (default stdout)")
	concurrency := flag.Int("concurrency", 8, "number of documents analyzed in parallel")
	configPath := flag.String("config", os.Getenv("ANALYSIS_CONFIG"), "YAML analysis config file (env: ANALYSIS_CONFIG)")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	if *in == "" {
		fmt.Fprintln(os.Stderr, "missing -input")
		flag.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, *in, *out, *configPath, *concurrency); err != nil {
		logger.Error("audit failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, in, out, configPath string, concurrency int) error {
	a, err := config.NewAnalyzer(configPath)
	if err != nil {
		return fmt.Errorf("load analysis config: %w", err)
	}

	docs, err := ioformats.ReadDocuments(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	start := time.Now()
	results := a.AnalyzeBatch(ctx, docs, concurrency)

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
			logger.Warn("document failed", "id", r.ID, "error", r.Err)
		}
	}
	logger.Info("audit finished",
		"documents", len(docs),
		"failed", failed,
		"profile", a.Config().Profile,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var w io.Writer = os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		w = f
	}
	if err := ioformats.WriteNDJSON(w, ioformats.Records(results)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return ctx.Err()
}
