// Package assemble writes a planned page order out as a single PDF.
package assemble

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
)

// ErrNoPages is returned when the plan contains no pages to write.
var ErrNoPages = errors.New("assemble: no pages to write")

// Run is a stretch of consecutive output pages taken from one source file.
type Run struct {
	Source string
	Pages  []int // 0-based
}

// Runs groups order into maximal runs of the same source.
func Runs(order []entity.PageRef) []Run {
	var out []Run
	for _, ref := range order {
		if n := len(out); n > 0 && out[n-1].Source == ref.Source {
			out[n-1].Pages = append(out[n-1].Pages, ref.Index)
			continue
		}
		out = append(out, Run{Source: ref.Source, Pages: []int{ref.Index}})
	}
	return out
}

type Assembler struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Assembler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Assembler{logger: logger}
}

// Assemble writes the pages of order, in order, to outPath and returns the verified page count.
// The output only appears once it has been fully written and re-counted.
func (a *Assembler) Assemble(ctx context.Context, order []entity.PageRef, outPath string) (int, error) {
	if len(order) == 0 {
		return 0, ErrNoPages
	}
	dir := filepath.Dir(outPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("create output dir: %w", err)
	}
	work, err := os.MkdirTemp(dir, ".assemble-*")
	if err != nil {
		return 0, fmt.Errorf("create work dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(work) }()

	conf := pages.PDFConfig()
	runs := Runs(order)
	parts := make([]string, 0, len(runs))
	for i, r := range runs {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		part := filepath.Join(work, fmt.Sprintf("part-%04d.pdf", i))
		if err := api.CollectFile(r.Source, part, selection(r.Pages), conf); err != nil {
			return 0, fmt.Errorf("collect pages %v of %s: %w", r.Pages, r.Source, err)
		}
		parts = append(parts, part)
	}

	merged := parts[0]
	if len(parts) > 1 {
		merged = filepath.Join(work, "merged.pdf")
		if err := api.MergeCreateFile(parts, merged, false, conf); err != nil {
			return 0, fmt.Errorf("merge %d parts: %w", len(parts), err)
		}
	}

	n, err := pages.CountPages(merged)
	if err != nil {
		return 0, fmt.Errorf("verify output: %w", err)
	}
	if n != len(order) {
		return 0, fmt.Errorf("verify output: wrote %d pages, planned %d", n, len(order))
	}
	if err := os.Rename(merged, outPath); err != nil {
		return 0, fmt.Errorf("move output into place: %w", err)
	}

	a.logger.Info("assemble.done", "output", outPath, "pages", n, "runs", len(runs))
	return n, nil
}

// selection renders 0-based indices as pdfcpu's 1-based page selection.
func selection(idx []int) []string {
	out := make([]string, len(idx))
	for i, p := range idx {
		out[i] = strconv.Itoa(p + 1)
	}
	return out
}
