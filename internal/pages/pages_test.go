package pages

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
	"github.com/joseph-ayodele/invoice-reconciler/internal/testutil"
)

func TestSortByPageNumber(t *testing.T) {
	paths := []string{"/d/page-10.png", "/d/page-2.png", "/d/page-1.png"}
	sortByPageNumber(paths)
	assert.Equal(t, []string{"/d/page-1.png", "/d/page-2.png", "/d/page-10.png"}, paths)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.bin")
	b := filepath.Join(dir, "b.bin")
	require.NoError(t, os.WriteFile(a, []byte("same"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same"), 0o644))

	ha, err := HashFile(a)
	require.NoError(t, err)
	hb, err := HashFile(b)
	require.NoError(t, err)
	assert.Equal(t, ha, hb)
	assert.Len(t, ha, 64)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}

func TestCountPages(t *testing.T) {
	path := testutil.WritePDF(t, filepath.Join(t.TempDir(), "three.pdf"), "INV-1", "", "INV-2")
	n, err := CountPages(path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	bad := filepath.Join(t.TempDir(), "bad.pdf")
	require.NoError(t, os.WriteFile(bad, []byte("not a pdf"), 0o644))
	_, err = CountPages(bad)
	assert.Error(t, err)
}

func TestSourceOpen(t *testing.T) {
	path := testutil.WritePDF(t, filepath.Join(t.TempDir(), "pkg.pdf"), "INV-100", "continued")
	runner := &testutil.FakeRasterizer{Width: 200, Height: 260}
	src := NewSource(Config{DPI: 72, CacheDir: t.TempDir()}, runner, nil)

	doc, err := src.Open(context.Background(), path)
	require.NoError(t, err)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, entity.PageRef{Source: path, Index: 1}, doc.Pages[1].Ref)
	assert.Nil(t, doc.Pages[0].Text)

	w, h, err := doc.Pages[0].Size()
	require.NoError(t, err)
	assert.Equal(t, 200, w)
	assert.Equal(t, 260, h)

	calls := runner.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"-r", "72", "-png", "-f", "1", "-l", "2", path}, calls[0][:8])

	dir := filepath.Dir(doc.Pages[0].ImagePath())
	require.NoError(t, doc.Close())
	_, err = os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestSourceOpen_RastersEveryPage(t *testing.T) {
	path := testutil.WritePDF(t, filepath.Join(t.TempDir(), "pkg.pdf"), "a", "b", "c", "d", "e")
	src := NewSource(Config{CacheDir: t.TempDir()}, &testutil.FakeRasterizer{}, nil)

	doc, err := src.Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()
	require.Len(t, doc.Pages, 5)
	for i, p := range doc.Pages {
		assert.Equal(t, i, p.Ref.Index)
	}
}

func TestSourceOpen_WithTextLayer(t *testing.T) {
	path := testutil.WritePDF(t, filepath.Join(t.TempDir(), "pkg.pdf"), "INV-100")
	src := NewSource(Config{CacheDir: t.TempDir(), TextLayer: true}, &testutil.FakeRasterizer{}, nil)

	doc, err := src.Open(context.Background(), path)
	require.NoError(t, err)
	defer func() { _ = doc.Close() }()
	require.Len(t, doc.Pages, 1)
	require.NotNil(t, doc.Pages[0].Text)

	got := doc.Pages[0].Text.TextIn(template.Region{X1: 0, Y1: 0, X2: 0.5, Y2: 0.2})
	assert.Contains(t, got, "INV-100")
	assert.Empty(t, doc.Pages[0].Text.TextIn(template.Region{X1: 0.5, Y1: 0.5, X2: 1, Y2: 1}))
}

func TestTextIn(t *testing.T) {
	layer := &TextLayer{
		Width:  100,
		Height: 100,
		Glyphs: []Glyph{
			{X: 10, Y: 90, W: 5, FontSize: 10, S: "INV"},
			{X: 15, Y: 90, W: 5, FontSize: 10, S: "-7"},
			{X: 30, Y: 90, W: 10, FontSize: 10, S: "Acme"},
			{X: 10, Y: 75, W: 10, FontSize: 10, S: "second"},
			{X: 80, Y: 10, W: 10, FontSize: 10, S: "footer"},
		},
	}

	assert.Equal(t, "INV-7 Acme second", layer.TextIn(template.Region{X1: 0, Y1: 0, X2: 0.5, Y2: 0.5}))
	assert.Equal(t, "footer", layer.TextIn(template.Region{X1: 0.5, Y1: 0.5, X2: 1, Y2: 1}))
	assert.Empty(t, layer.TextIn(template.Region{X1: 0.5, Y1: 0, X2: 1, Y2: 0.5}))

	var nilLayer *TextLayer
	assert.Empty(t, nilLayer.TextIn(template.Region{X2: 1, Y2: 1}))
}

func TestNewImagePage(t *testing.T) {
	p := NewImagePage(entity.PageRef{Source: "x.pdf"}, testutil.BlankImage(30, 40))
	w, h, err := p.Size()
	require.NoError(t, err)
	assert.Equal(t, 30, w)
	assert.Equal(t, 40, h)

	missing := NewFilePage(entity.PageRef{Source: "x.pdf"}, filepath.Join(t.TempDir(), "nope.png"))
	_, _, err = missing.Size()
	assert.Error(t, err)
}
