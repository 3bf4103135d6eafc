// Package testutil builds fixture documents for package tests.
package testutil

import (
	"context"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/go-pdf/fpdf"
	"github.com/stretchr/testify/require"
)

// WritePDF writes a Letter-size PDF with one page per entry. Each entry is printed near the top-left corner.
func WritePDF(t testing.TB, path string, pages ...string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetFont("Helvetica", "", 14)
	for _, text := range pages {
		doc.AddPage()
		if text != "" {
			doc.Text(72, 72, text)
		}
	}
	require.NoError(t, doc.OutputFileAndClose(path))
	return path
}

// BlankImage returns a white w x h raster.
func BlankImage(w, h int) image.Image {
	return imaging.New(w, h, color.White)
}

// FakeRasterizer answers pdftoppm invocations by writing blank PNGs for pages 1..-l.
type FakeRasterizer struct {
	Width, Height int

	mu    sync.Mutex
	calls [][]string
}

// Calls returns the recorded argument lists.
func (f *FakeRasterizer) Calls() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.calls...)
}

func (f *FakeRasterizer) Run(ctx context.Context, _ string, args ...string) ([]byte, []byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	f.mu.Lock()
	f.calls = append(f.calls, args)
	f.mu.Unlock()

	last := 1
	for i := 0; i+1 < len(args); i++ {
		if args[i] == "-l" {
			last, _ = strconv.Atoi(args[i+1])
		}
	}
	prefix := args[len(args)-1]
	w, h := f.Width, f.Height
	if w == 0 {
		w, h = 850, 1100
	}
	for p := 1; p <= last; p++ {
		if err := imaging.Save(BlankImage(w, h), prefix+"-"+strconv.Itoa(p)+".png"); err != nil {
			return nil, nil, err
		}
	}
	return nil, nil, nil
}
