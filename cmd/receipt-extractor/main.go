package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/receipts-extractor/internal/batch"
	"github.com/joseph-ayodele/receipts-extractor/internal/bootstrap"
	"github.com/joseph-ayodele/receipts-extractor/internal/export"
	"github.com/joseph-ayodele/receipts-extractor/internal/imaging"
)

var banner = strings.Repeat("=", 50)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func usage() {
	printError("Usage:\n  receipt-extractor <image_path>\n  receipt-extractor -dir <folder> [-out receipts.xlsx] [-workers N]\n\nFlags:\n")
	flag.PrintDefaults()
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		dir        = flag.String("dir", "", "directory of receipt images to process in batch")
		out        = flag.String("out", "", "output XLSX file for batch mode (defaults to <parent of dir>/receipts.xlsx)")
		workers    = flag.Int("workers", 2, "concurrent extractions in batch mode")
		timeout    = flag.Duration("item-timeout", 5*time.Minute, "upper bound per image, retries included (0 = none)")
		skipHidden = flag.Bool("skip-hidden", true, "skip dot-files and dot-directories in batch mode")
	)
	flag.Usage = usage
	flag.Parse()

	if *dir == "" && flag.NArg() != 1 {
		usage()
		return 2
	}

	// Logs go to stderr so stdout carries only the extracted data.
	deps, err := bootstrap.Load(os.Stderr)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	if err := deps.Config.LLM.RequireAPIKey(); err != nil {
		printError("Error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *dir == "" {
		return runSingle(ctx, deps, flag.Arg(0))
	}
	return runBatch(ctx, deps, *dir, *out, *workers, *timeout, *skipHidden)
}

func runSingle(ctx context.Context, deps *bootstrap.Deps, path string) int {
	text, err := deps.Client.Extract(ctx, imaging.FromPath(path))
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	fmt.Println("\n" + banner)
	fmt.Println("EXTRACTED RECEIPT DATA:")
	fmt.Println(banner)
	fmt.Println(text)
	fmt.Println(banner)
	return 0
}

func runBatch(ctx context.Context, deps *bootstrap.Deps, dir, out string, workers int, timeout time.Duration, skipHidden bool) int {
	logger := deps.Logger
	if out == "" {
		out = filepath.Join(filepath.Dir(filepath.Clean(dir)), "receipts.xlsx")
	}

	paths, stats, err := batch.Scan(dir, skipHidden)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}
	logger.Info("scan complete",
		"dir", dir,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"skipped", stats.Skipped,
		"unreadable", stats.Unreadable,
	)
	if len(paths) == 0 {
		printError("Error: no receipt images found in %s\n", dir)
		return 1
	}

	runner := batch.NewRunner(deps.Client, logger, batch.WithWorkers(workers), batch.WithItemTimeout(timeout))
	results := runner.Run(ctx, paths)

	var sheets []export.Sheet
	failures := 0
	for _, res := range results {
		if res.Err != nil {
			failures++
			printError("- %s: %v\n", res.Path, res.Err)
			continue
		}
		sheets = append(sheets, export.Sheet{Name: filepath.Base(res.Path), Text: res.Text})
	}
	if len(sheets) == 0 {
		printError("Error: every extraction failed; nothing to export\n")
		return 1
	}

	xlsx, err := export.NewService(logger).WorkbookXLSX(ctx, sheets)
	if err != nil {
		printError("Error: export failed: %v\n", err)
		return 1
	}
	if err := os.WriteFile(out, xlsx, 0o644); err != nil {
		printError("Error: write %s: %v\n", out, err)
		return 1
	}

	logger.Info("batch processing complete",
		"files_found", len(paths),
		"files_processed", len(sheets),
		"failures", failures,
		"output_file", out)

	fmt.Printf("Batch processing complete!\n")
	fmt.Printf("- Files found: %d\n", len(paths))
	fmt.Printf("- Files processed: %d\n", len(sheets))
	fmt.Printf("- Failures: %d\n", failures)
	fmt.Printf("- Output: %s\n", out)
	return 0
}
