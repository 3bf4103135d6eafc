package pipeline

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/extract"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ingest"
	"github.com/joseph-ayodele/invoice-reconciler/internal/match"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/segment"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

// loadPackage reads and segments the existing package. Any failure other than a bad
// template or cancellation makes the package unreadable.
func (p *Processor) loadPackage(ctx context.Context, req Request, tmpl *template.Template) ([]entity.InvoiceUnit, []entity.Diagnostic, error) {
	ctx = common.WithSource(ctx, req.PackagePath)
	log := common.LoggerFrom(ctx, p.logger)

	doc, err := p.source.Open(ctx, req.PackagePath)
	if err != nil {
		if ctx.Err() != nil {
			return nil, nil, ctx.Err()
		}
		return nil, nil, &common.UnreadablePackageError{Path: req.PackagePath, Reason: "cannot open", Cause: err}
	}
	defer func() { _ = doc.Close() }()

	if len(doc.Pages) == 0 {
		if req.AllowEmptyPackage {
			log.Warn("pipeline.package.empty")
			return nil, nil, nil
		}
		return nil, nil, &common.UnreadablePackageError{Path: req.PackagePath, Reason: "package has no pages"}
	}

	units, diags, err := p.readUnits(ctx, req.PackagePath, doc.Pages, tmpl)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRegion) || ctx.Err() != nil {
			return nil, nil, err
		}
		return nil, nil, &common.UnreadablePackageError{Path: req.PackagePath, Reason: "cannot read pages", Cause: err}
	}
	if len(units) == 0 {
		return nil, nil, &common.UnreadablePackageError{Path: req.PackagePath, Reason: "no invoice units found"}
	}
	log.Info("pipeline.package.loaded", "pages", len(doc.Pages), "units", len(units))
	return units, diags, nil
}

type candidateResult struct {
	units []entity.InvoiceUnit
	diags []entity.Diagnostic
}

// loadCandidates reads every candidate file, at most openLimit at a time, and returns
// their units in discovery order. Unreadable candidates are skipped with a diagnostic.
func (p *Processor) loadCandidates(ctx context.Context, dir string, tmpl *template.Template) ([]entity.InvoiceUnit, []entity.Diagnostic, error) {
	log := common.LoggerFrom(ctx, p.logger)

	found, err := ingest.Discover(ctx, dir, log)
	if err != nil {
		return nil, nil, fmt.Errorf("discover candidates: %w", err)
	}

	results := make([]candidateResult, len(found.Candidates))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.openLimit)
	for i, c := range found.Candidates {
		i, c := i, c
		g.Go(func() error {
			r, err := p.loadCandidate(gctx, c.Path, tmpl)
			if err != nil {
				return err
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	diags := found.Diagnostics
	var units []entity.InvoiceUnit
	for _, r := range results {
		units = append(units, r.units...)
		diags = append(diags, r.diags...)
	}
	log.Info("pipeline.candidates.loaded", "files", len(found.Candidates), "units", len(units))
	return units, diags, nil
}

func (p *Processor) loadCandidate(ctx context.Context, path string, tmpl *template.Template) (candidateResult, error) {
	ctx = common.WithSource(ctx, path)
	log := common.LoggerFrom(ctx, p.logger)
	unreadable := func(err error) candidateResult {
		log.Warn("pipeline.candidate.unreadable", "error", err)
		return candidateResult{diags: []entity.Diagnostic{{
			Code:     constants.DiagUnreadableCandidate,
			Severity: constants.SeverityWarning,
			Source:   path,
			Message:  err.Error(),
		}}}
	}

	doc, err := p.source.Open(ctx, path)
	if err != nil {
		if ctx.Err() != nil {
			return candidateResult{}, ctx.Err()
		}
		return unreadable(err), nil
	}
	defer func() { _ = doc.Close() }()

	units, diags, err := p.readUnits(ctx, path, doc.Pages, tmpl)
	if err != nil {
		if errors.Is(err, common.ErrInvalidRegion) || ctx.Err() != nil {
			return candidateResult{}, err
		}
		return unreadable(err), nil
	}
	return candidateResult{units: units, diags: diags}, nil
}

// readUnits extracts and segments one document's pages.
func (p *Processor) readUnits(ctx context.Context, source string, pgs []*pages.Page, tmpl *template.Template) ([]entity.InvoiceUnit, []entity.Diagnostic, error) {
	fields, err := p.extractor.ExtractPages(ctx, pgs, tmpl)
	if err != nil {
		return nil, nil, err
	}
	diags := recognitionDiagnostics(source, fields, tmpl)
	seg := segment.New(match.New(tmpl), common.LoggerFrom(ctx, p.logger)).Segment(source, fields)
	return seg.Units, append(diags, seg.Diagnostics...), nil
}

// recognitionDiagnostics reports pages where the OCR engine failed on a required field.
func recognitionDiagnostics(source string, fields []entity.PageFields, tmpl *template.Template) []entity.Diagnostic {
	var out []entity.Diagnostic
	for _, pf := range fields {
		for _, tf := range tmpl.Fields {
			f, ok := pf.Fields[tf.Name]
			if !ok || !tf.Required || !errors.Is(f.Err, extract.ErrRecognition) {
				continue
			}
			out = append(out, entity.Diagnostic{
				Code:     constants.DiagRecognitionFailed,
				Severity: constants.SeverityWarning,
				Source:   source,
				Pages:    []int{pf.Page.Number()},
				Message:  fmt.Sprintf("field %s: %v", tf.Name, f.Err),
			})
		}
	}
	return out
}
