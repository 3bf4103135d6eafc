package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/assemble"
	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ingest"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr/engines"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pipeline"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
	repo "github.com/joseph-ayodele/invoice-reconciler/internal/repository"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

const (
	exitOK    = 0
	exitFatal = 1
	exitUsage = 2
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	var (
		packagePath   = flag.String("package", "", "existing invoice package PDF (required)")
		candidateDir  = flag.String("candidates", "", "directory of candidate PDFs (required)")
		outPath       = flag.String("out", "", "updated package PDF to write (required)")
		templatePath  = flag.String("template", "", "template TOML (default $TEMPLATE_PATH)")
		storeDSN      = flag.String("store", "", "run store DSN: postgres URL or sqlite path (default $STORE_DSN)")
		reportXLSX    = flag.String("report-xlsx", "", "write the plan and diagnostics as XLSX")
		reportJSON    = flag.String("report-json", "", "write the plan and diagnostics as JSON")
		dropUnmatched = flag.Bool("drop-unmatched", false, "drop outdated invoices with no replacement")
		insertOrder   = flag.String("insert-order", "", "order of inserted invoices: encounter|invoice_number")
		allowEmpty    = flag.Bool("allow-empty-package", false, "treat a package with no pages as empty")
		workers       = flag.Int("workers", 0, "concurrent OCR calls (default $OCR_WORKERS)")
		engine        = flag.String("engine", "", "OCR engine: tesseract|gosseract|azure (default $OCR_ENGINE)")
		envFile       = flag.String("env-file", "", "load environment from this file (default .env if present)")
		watch         = flag.Bool("watch", false, "re-run whenever the candidate directory changes")
		watchDebounce = flag.Duration("watch-debounce", 0, "quiet period before a watched change re-runs (default $WATCH_DEBOUNCE)")
		debug         = flag.Bool("debug", false, "debug logging")
	)
	flag.Parse()

	if *packagePath == "" || *candidateDir == "" || *outPath == "" {
		printError("Error: --package, --candidates and --out are required\n")
		flag.Usage()
		return exitUsage
	}

	level := slog.LevelInfo
	if *debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := common.LoadEnvFile(*envFile); err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}
	cfg := common.LoadConfig()
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "template":
			cfg.TemplatePath = *templatePath
		case "store":
			cfg.Store.DSN = *storeDSN
		case "report-xlsx":
			cfg.Report.XLSXPath = *reportXLSX
		case "report-json":
			cfg.Report.JSONPath = *reportJSON
		case "drop-unmatched":
			cfg.Plan.DropUnmatched = *dropUnmatched
		case "insert-order":
			cfg.Plan.InsertOrder = *insertOrder
		case "allow-empty-package":
			cfg.Plan.AllowEmptyPackage = *allowEmpty
		case "workers":
			cfg.OCR.Workers = *workers
		case "engine":
			cfg.OCR.Engine = strings.ToLower(*engine)
		case "watch-debounce":
			cfg.Watch.Debounce = *watchDebounce
		}
	})
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}

	tmpl, err := template.Load(cfg.TemplatePath)
	if err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := os.MkdirAll(cfg.OCR.ArtifactCacheDir, 0o755); err != nil {
		logger.Error("failed to create artifact cache dir", "dir", cfg.OCR.ArtifactCacheDir, "error", err)
		return exitFatal
	}

	runner := ocr.NewExecRunner(logger)
	recognizer, err := engines.New(cfg.OCR, runner, logger)
	if err != nil {
		printError("Error: %v\n", err)
		return exitUsage
	}

	pool := async.NewPool(logger, async.WithWorkers(cfg.OCR.Workers))
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		pool.Shutdown(sctx)
	}()

	extractOpts := []extract.Option{
		extract.WithPool(pool),
		extract.WithLogger(logger),
		extract.WithCallTimeout(cfg.OCR.CallTimeout),
		extract.WithEnhance(cfg.OCR.Enhance),
		extract.WithTextLayer(cfg.OCR.TextLayer),
		extract.WithSnippetDir(cfg.OCR.SnippetDir),
	}
	var procOpts []pipeline.Option

	if cfg.Store.DSN != "" {
		store, err := repo.Open(ctx, repo.Config{
			DSN:             cfg.Store.DSN,
			MaxConns:        cfg.Store.MaxConns,
			MaxConnLifetime: cfg.Store.MaxConnLifetime,
			DialTimeout:     cfg.Store.DialTimeout,
		}, logger)
		if err != nil {
			logger.Error("failed to open run store", "error", err)
			return exitFatal
		}
		defer store.Close()
		if err := store.Migrate(ctx); err != nil {
			logger.Error("failed to migrate run store", "error", err)
			return exitFatal
		}
		extractOpts = append(extractOpts, extract.WithCache(repo.NewFieldCache(store, logger)))
		procOpts = append(procOpts, pipeline.WithRunStore(repo.NewRunRepository(store, logger)))
	}

	source := pages.NewSource(pages.Config{
		Pdftoppm:  cfg.OCR.Pdftoppm,
		DPI:       cfg.OCR.DPI,
		CacheDir:  cfg.OCR.ArtifactCacheDir,
		TextLayer: cfg.OCR.TextLayer,
	}, runner, logger)
	extractor := extract.New(recognizer, extractOpts...)
	processor := pipeline.NewProcessor(logger, source, extractor, assemble.New(logger), procOpts...)

	req := pipeline.Request{
		PackagePath:  *packagePath,
		CandidateDir: *candidateDir,
		OutputPath:   *outPath,
		Template:     tmpl,
		Plan: reconcile.Options{
			DropUnmatched: cfg.Plan.DropUnmatched,
			InsertOrder:   constants.InsertOrder(cfg.Plan.InsertOrder),
		},
		AllowEmptyPackage: cfg.Plan.AllowEmptyPackage,
		ReportXLSX:        cfg.Report.XLSXPath,
		ReportJSON:        cfg.Report.JSONPath,
	}

	code := reconcileOnce(ctx, processor, req)
	if !*watch {
		return code
	}
	return watchCandidates(ctx, logger, processor, req, cfg.Watch.Debounce)
}

func reconcileOnce(ctx context.Context, p *pipeline.Processor, req pipeline.Request) int {
	res, err := p.Run(ctx, req)
	if err != nil {
		printError("Error: %v\n", err)
		if errors.Is(err, common.ErrValidation) {
			return exitUsage
		}
		return exitFatal
	}
	printSummary(os.Stdout, req, res)
	return exitOK
}

// watchCandidates re-runs the reconciliation after each settled batch of changes in the
// candidate directory until ctx is canceled.
func watchCandidates(ctx context.Context, logger *slog.Logger, p *pipeline.Processor, req pipeline.Request, debounce time.Duration) int {
	cfg := ingest.WatchConfig{Roots: []string{req.CandidateDir}, Debounce: debounce}
	batches, errs, err := ingest.Watch(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to watch candidates", "dir", req.CandidateDir, "error", err)
		return exitFatal
	}
	logger.Info("watching candidates", "dir", req.CandidateDir)

	code := exitOK
	for {
		select {
		case <-ctx.Done():
			return code
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch error", "error", err)
		case batch, ok := <-batches:
			if !ok {
				return code
			}
			logger.Info("candidates changed", "files", batch)
			code = reconcileOnce(ctx, p, req)
		}
	}
}

func printSummary(w io.Writer, req pipeline.Request, res *pipeline.Result) {
	_, _ = fmt.Fprintf(w, "run %s: %s -> %s\n", res.RunID, req.PackagePath, req.OutputPath)
	_, _ = fmt.Fprintf(w, "  existing units: %d, candidate units: %d, pages written: %d\n",
		res.Summary.ExistingUnits, res.Summary.CandidateUnits, res.PagesWritten)
	for _, k := range []constants.DecisionKind{
		constants.DecisionKeep, constants.DecisionReplace, constants.DecisionInsert, constants.DecisionDrop,
	} {
		_, _ = fmt.Fprintf(w, "  %-8s %d\n", strings.ToLower(string(k)), res.Summary.Decisions[k])
	}

	if len(res.Diagnostics) == 0 {
		return
	}
	byCode := make(map[constants.DiagnosticCode][]string)
	for _, d := range res.Diagnostics {
		label := d.InvoiceNumber
		if label == "" {
			label = d.Source
		}
		byCode[d.Code] = append(byCode[d.Code], label)
	}
	codes := make([]string, 0, len(byCode))
	for c := range byCode {
		codes = append(codes, string(c))
	}
	sort.Strings(codes)
	_, _ = fmt.Fprintln(w, "  diagnostics:")
	for _, c := range codes {
		labels := byCode[constants.DiagnosticCode(c)]
		_, _ = fmt.Fprintf(w, "    %s (%d): %s\n", c, len(labels), strings.Join(labels, ", "))
	}
}
