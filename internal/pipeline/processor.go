// Package pipeline runs one reconciliation end to end: read the package and the
// candidates, plan, write the updated package and record the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/export"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/reconcile"
	"github.com/joseph-ayodele/invoice-reconciler/internal/repository"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

// PageSource opens a PDF into pages.
type PageSource interface {
	Open(ctx context.Context, path string) (*pages.Document, error)
}

// FieldExtractor reads every template field of every page, in page order.
type FieldExtractor interface {
	ExtractPages(ctx context.Context, pgs []*pages.Page, tmpl *template.Template) ([]entity.PageFields, error)
}

// Assembler writes the planned page order to a PDF and returns the page count written.
type Assembler interface {
	Assemble(ctx context.Context, order []entity.PageRef, outPath string) (int, error)
}

// Request describes one run.
type Request struct {
	PackagePath       string
	CandidateDir      string
	OutputPath        string
	Template          *template.Template
	Plan              reconcile.Options
	AllowEmptyPackage bool
	ReportXLSX        string
	ReportJSON        string
}

// Validate checks paths before any work starts.
func (r Request) Validate() error {
	v := common.NewValidator().
		Field("package", r.PackagePath, common.Required, common.FileExists, common.Extension("pdf")).
		Field("candidates", r.CandidateDir, common.Required, common.DirExists).
		Field("output", r.OutputPath, common.Required, common.Extension("pdf")).
		Field("report_xlsx", r.ReportXLSX, common.Extension("xlsx")).
		Field("report_json", r.ReportJSON, common.Extension("json"))
	if r.Template == nil {
		v.Field("template", nil, common.Required)
	}
	return v.Error()
}

// Result is what a successful run produced.
type Result struct {
	RunID        uuid.UUID
	Plan         *reconcile.Plan
	Existing     []entity.InvoiceUnit
	Candidates   []entity.InvoiceUnit
	Diagnostics  []entity.Diagnostic
	Summary      entity.RunSummary
	PagesWritten int
}

type Processor struct {
	logger    *slog.Logger
	source    PageSource
	extractor FieldExtractor
	assembler Assembler
	runs      repository.RunRepository
	reports   *export.Service
	openLimit int
}

type Option func(*Processor)

// WithRunStore records every run. Without it runs are not persisted.
func WithRunStore(r repository.RunRepository) Option {
	return func(p *Processor) { p.runs = r }
}

// WithOpenLimit bounds how many candidate files are read at once. Default 2.
func WithOpenLimit(n int) Option {
	return func(p *Processor) {
		if n > 0 {
			p.openLimit = n
		}
	}
}

func NewProcessor(logger *slog.Logger, source PageSource, extractor FieldExtractor, assembler Assembler, opts ...Option) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Processor{
		logger:    logger,
		source:    source,
		extractor: extractor,
		assembler: assembler,
		reports:   export.NewService(logger),
		openLimit: 2,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Run reconciles req.PackagePath against req.CandidateDir and writes req.OutputPath.
func (p *Processor) Run(ctx context.Context, req Request) (*Result, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	runID := uuid.New()
	if p.runs != nil {
		run, err := p.runs.Start(ctx, req.PackagePath, req.CandidateDir, req.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("record run start: %w", err)
		}
		runID = run.ID
	}
	ctx = common.WithRunID(ctx, runID.String())
	log := common.LoggerFrom(ctx, p.logger)
	start := time.Now()

	res, err := p.run(ctx, req, runID)
	if p.runs != nil {
		// the run row is closed even when ctx was canceled
		fctx := context.WithoutCancel(ctx)
		if err != nil {
			if ferr := p.runs.FinishFailure(fctx, runID, err.Error()); ferr != nil {
				log.Error("pipeline.run.record_failed", "error", ferr)
			}
		} else if ferr := p.runs.Finish(fctx, runID, res.Summary); ferr != nil {
			log.Error("pipeline.run.record_failed", "error", ferr)
		}
	}
	if err != nil {
		log.Error("pipeline.run.failed", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return nil, err
	}

	log.Info("pipeline.run.ok",
		"existing_units", res.Summary.ExistingUnits,
		"candidate_units", res.Summary.CandidateUnits,
		"decisions", res.Plan.Len(),
		"diagnostics", len(res.Diagnostics),
		"pages_written", res.PagesWritten,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return res, nil
}

func (p *Processor) run(ctx context.Context, req Request, runID uuid.UUID) (*Result, error) {
	log := common.LoggerFrom(ctx, p.logger)

	tmpl, err := p.resolveReferences(ctx, req.Template)
	if err != nil {
		return nil, err
	}

	existing, diags, err := p.loadPackage(ctx, req, tmpl)
	if err != nil {
		return nil, err
	}
	candidates, cdiags, err := p.loadCandidates(ctx, req.CandidateDir, tmpl)
	if err != nil {
		return nil, err
	}
	diags = append(diags, cdiags...)

	plan := reconcile.NewPlanner(req.Plan).Plan(existing, candidates)
	diags = append(diags, plan.Diagnostics()...)

	written := 0
	if order := plan.PageOrder(); len(order) > 0 {
		written, err = p.assembler.Assemble(ctx, order, req.OutputPath)
		if err != nil {
			return nil, fmt.Errorf("write %s: %w", req.OutputPath, err)
		}
	} else {
		log.Warn("pipeline.output.skipped", "reason", "plan contains no pages", "output", req.OutputPath)
	}

	res := &Result{
		RunID:        runID,
		Plan:         plan,
		Existing:     existing,
		Candidates:   candidates,
		Diagnostics:  diags,
		PagesWritten: written,
		Summary: entity.RunSummary{
			ExistingUnits:  len(existing),
			CandidateUnits: len(candidates),
			Decisions:      plan.Counts(),
			Diagnostics:    countDiagnostics(diags),
			PagesWritten:   written,
		},
	}
	if err := p.writeReports(ctx, req, res); err != nil {
		return nil, err
	}
	return res, nil
}

func (p *Processor) writeReports(ctx context.Context, req Request, res *Result) error {
	if req.ReportXLSX == "" && req.ReportJSON == "" {
		return nil
	}
	report := export.Report{
		RunID:        res.RunID,
		PackagePath:  req.PackagePath,
		CandidateDir: req.CandidateDir,
		OutputPath:   req.OutputPath,
		GeneratedAt:  time.Now().UTC(),
		Plan:         res.Plan,
		Diagnostics:  res.Diagnostics,
		Summary:      res.Summary,
	}
	if req.ReportXLSX != "" {
		b, err := p.reports.ExportXLSX(ctx, report)
		if err != nil {
			return fmt.Errorf("xlsx report: %w", err)
		}
		if err := os.WriteFile(req.ReportXLSX, b, 0o644); err != nil {
			return fmt.Errorf("xlsx report: %w", err)
		}
	}
	if req.ReportJSON != "" {
		b, err := p.reports.ExportJSON(report)
		if err != nil {
			return fmt.Errorf("json report: %w", err)
		}
		if err := os.WriteFile(req.ReportJSON, b, 0o644); err != nil {
			return fmt.Errorf("json report: %w", err)
		}
	}
	return nil
}

func countDiagnostics(diags []entity.Diagnostic) map[constants.DiagnosticCode]int {
	out := make(map[constants.DiagnosticCode]int)
	for _, d := range diags {
		out[d.Code]++
	}
	return out
}
