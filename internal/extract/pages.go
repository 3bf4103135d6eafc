package extract

import (
	"context"
	"fmt"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/layout"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

type fieldResult struct {
	field entity.ExtractedField
	err   error
}

// pageFuture collects the per-field results of one dispatched page.
type pageFuture struct {
	page    *pages.Page
	results chan fieldResult
}

// ExtractPages reads every template field of every page and returns them in page order.
// Pages also get a layout fingerprint when the template has a reference layout.
// Cancellation stops dispatch of further pages; pages already dispatched run to completion
// and the completed prefix is returned with ctx.Err().
func (e *Extractor) ExtractPages(ctx context.Context, pgs []*pages.Page, tmpl *template.Template) ([]entity.PageFields, error) {
	if len(pgs) == 0 {
		return nil, ctx.Err()
	}
	norm := tmpl.Normalizer()
	nFields := len(tmpl.Fields)
	withLayout := tmpl.ComparesLayout() && tmpl.Layout != nil

	dctx, stop := context.WithCancel(ctx)
	defer stop()
	detached := context.WithoutCancel(ctx)

	futures := make(chan *pageFuture, e.pool.Workers())
	go func() {
		defer close(futures)
		for _, p := range pgs {
			if dctx.Err() != nil {
				return
			}
			f := &pageFuture{page: p, results: make(chan fieldResult, nFields)}
			for _, fld := range tmpl.Fields {
				p, fld := p, fld
				run := func(tctx context.Context) {
					ef, err := e.extract(tctx, p, fld, norm)
					f.results <- fieldResult{field: ef, err: err}
				}
				name := fmt.Sprintf("%s#%d/%s", p.Ref.Source, p.Ref.Number(), fld.Name)
				if err := e.pool.Submit(detached, name, run); err != nil {
					f.results <- fieldResult{field: entity.ExtractedField{Name: fld.Name, Kind: fld.Kind}, err: err}
				}
			}
			futures <- f
		}
	}()

	out := make([]entity.PageFields, 0, len(pgs))
	var fatal error
	for f := range futures {
		pf := entity.PageFields{Page: f.page.Ref, Fields: make(map[string]entity.ExtractedField, nFields)}
		for i := 0; i < nFields; i++ {
			r := <-f.results
			if r.err != nil && fatal == nil {
				fatal = r.err
				stop()
			}
			pf.Fields[r.field.Name] = r.field
		}
		if fatal == nil {
			if withLayout {
				pf.Layout = pageLayout(f.page)
			}
			out = append(out, pf)
		}
	}

	if fatal != nil {
		return out, fatal
	}
	if len(out) < len(pgs) {
		return out, ctx.Err()
	}
	e.logger.Debug("extract.pages.done", "pages", len(out), "fields", nFields)
	return out, nil
}

// pageLayout fingerprints p's raster; a page that cannot be decoded has no layout.
func pageLayout(p *pages.Page) layout.Fingerprint {
	img, err := p.Image()
	if err != nil {
		return nil
	}
	return layout.FromImage(img)
}
