package pipeline

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

// resolveReferences fills reference values missing from the template with the fields read
// from the first page of its reference PDF, and fingerprints that page when the template
// compares layouts. The invoice number is never taken from the reference document since
// it differs on every invoice.
func (p *Processor) resolveReferences(ctx context.Context, tmpl *template.Template) (*template.Template, error) {
	needValues := !tmpl.HasAllReferences()
	needLayout := tmpl.ComparesLayout() && tmpl.Layout == nil
	if tmpl.ReferencePDF == "" || (!needValues && !needLayout) {
		return tmpl, nil
	}
	ctx = common.WithSource(ctx, tmpl.ReferencePDF)
	log := common.LoggerFrom(ctx, p.logger)

	doc, err := p.source.Open(ctx, tmpl.ReferencePDF)
	if err != nil {
		return nil, fmt.Errorf("open reference pdf: %w", err)
	}
	defer func() { _ = doc.Close() }()
	if len(doc.Pages) == 0 {
		return nil, fmt.Errorf("reference pdf %s has no pages", tmpl.ReferencePDF)
	}
	first := doc.Pages[0]

	out := tmpl
	if needLayout {
		img, err := first.Image()
		if err != nil {
			return nil, fmt.Errorf("read reference pdf raster: %w", err)
		}
		fp := layout.FromImage(img)
		if fp == nil {
			return nil, fmt.Errorf("reference pdf %s: first page has zero area", tmpl.ReferencePDF)
		}
		out = out.WithLayout(fp)
		log.Info("pipeline.template.layout", "weight", out.LayoutWeight, "threshold", out.LayoutThreshold)
	}
	if !needValues {
		return out, nil
	}

	fields, err := p.extractor.ExtractPages(ctx, doc.Pages[:1], out)
	if err != nil {
		return nil, fmt.Errorf("read reference pdf: %w", err)
	}

	values := make(map[string]string)
	for name, f := range fields[0].Fields {
		if name == constants.InvoiceNumberField || f.Err != nil {
			continue
		}
		values[name] = f.RawText
	}
	out = out.WithReferences(values)
	log.Info("pipeline.template.references", "read", len(values), "complete", out.HasAllReferences())
	return out, nil
}
