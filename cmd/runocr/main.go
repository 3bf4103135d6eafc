package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
	"github.com/joseph-ayodele/invoice-reconciler/internal/match"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr/engines"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

type fieldOut struct {
	Raw        string  `json:"raw"`
	Value      string  `json:"value,omitempty"`
	Confidence float64 `json:"confidence"`
	Method     string  `json:"method"`
	Error      string  `json:"error,omitempty"`
}

type pageOut struct {
	Page          int                 `json:"page"`
	InvoiceNumber string              `json:"invoice_number"`
	Fields        map[string]fieldOut `json:"fields"`
	Match         entity.MatchReport  `json:"match"`
}

// runocr reads every template field from every page of one PDF and prints what was
// recognized and how each page scores against the template.
func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	var (
		templatePath = flag.String("template", "", "template TOML (default $TEMPLATE_PATH)")
		snippets     = flag.String("snippets", "", "save each cropped field image to this directory")
		engine       = flag.String("engine", "", "OCR engine: tesseract|gosseract|azure (default $OCR_ENGINE)")
	)
	flag.Parse()
	if flag.NArg() != 1 {
		logger.Error("usage", "cmd", "runocr [-template t.toml] [-snippets dir] <file.pdf>")
		os.Exit(2)
	}
	path := flag.Arg(0)

	if err := common.LoadEnvFile(""); err != nil {
		logger.Error("load env", "error", err)
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	if *templatePath != "" {
		cfg.TemplatePath = *templatePath
	}
	if *engine != "" {
		cfg.OCR.Engine = *engine
	}
	if *snippets != "" {
		cfg.OCR.SnippetDir = *snippets
		if err := os.MkdirAll(*snippets, 0o755); err != nil {
			logger.Error("create snippet dir", "dir", *snippets, "error", err)
			os.Exit(1)
		}
	}

	tmpl, err := template.Load(cfg.TemplatePath)
	if err != nil {
		logger.Error("load template", "path", cfg.TemplatePath, "error", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	if err := os.MkdirAll(cfg.OCR.ArtifactCacheDir, 0o755); err != nil {
		logger.Error("create artifact cache dir", "error", err)
		os.Exit(1)
	}
	runner := ocr.NewExecRunner(logger)
	rec, err := engines.New(cfg.OCR, runner, logger)
	if err != nil {
		logger.Error("ocr engine", "error", err)
		os.Exit(2)
	}

	source := pages.NewSource(pages.Config{
		Pdftoppm:  cfg.OCR.Pdftoppm,
		DPI:       cfg.OCR.DPI,
		CacheDir:  cfg.OCR.ArtifactCacheDir,
		TextLayer: cfg.OCR.TextLayer,
	}, runner, logger)
	doc, err := source.Open(ctx, path)
	if err != nil {
		logger.Error("open pdf", "path", path, "error", err)
		os.Exit(1)
	}
	defer func() { _ = doc.Close() }()

	if tmpl.ComparesLayout() {
		fp, err := referenceLayout(ctx, source, tmpl.ReferencePDF)
		if err != nil {
			logger.Error("reference layout", "path", tmpl.ReferencePDF, "error", err)
			os.Exit(1)
		}
		tmpl = tmpl.WithLayout(fp)
	}

	x := extract.New(rec,
		extract.WithLogger(logger),
		extract.WithCallTimeout(cfg.OCR.CallTimeout),
		extract.WithEnhance(cfg.OCR.Enhance),
		extract.WithTextLayer(cfg.OCR.TextLayer),
		extract.WithSnippetDir(cfg.OCR.SnippetDir),
	)
	defer x.Close(context.Background())

	start := time.Now()
	fields, err := x.ExtractPages(ctx, doc.Pages, tmpl)
	if err != nil {
		logger.Error("extract", "error", err)
		os.Exit(1)
	}

	m := match.New(tmpl)
	out := make([]pageOut, 0, len(fields))
	for _, pf := range fields {
		po := pageOut{
			Page:          pf.Page.Number(),
			InvoiceNumber: pf.InvoiceNumber(),
			Fields:        make(map[string]fieldOut, len(pf.Fields)),
			Match:         m.ScorePage(pf.Fields, pf.Layout),
		}
		for name, f := range pf.Fields {
			fo := fieldOut{Raw: f.RawText, Confidence: f.Confidence, Method: f.Method, Error: f.ErrorMessage()}
			if f.OK() {
				fo.Value = f.Value.Canonical()
			}
			po.Fields[name] = fo
		}
		out = append(out, po)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		logger.Error("encode", "error", err)
		os.Exit(1)
	}
	logger.Info("runocr ok", "pages", len(out), "engine", rec.Name(), "duration_ms", time.Since(start).Milliseconds())
}

// referenceLayout fingerprints the first page of the template's reference PDF.
func referenceLayout(ctx context.Context, source *pages.Source, path string) (layout.Fingerprint, error) {
	doc, err := source.Open(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = doc.Close() }()
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("%s has no pages", path)
	}
	img, err := doc.Pages[0].Image()
	if err != nil {
		return nil, err
	}
	return layout.FromImage(img), nil
}
