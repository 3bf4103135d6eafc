package assemble

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
	"github.com/joseph-ayodele/invoice-reconciler/internal/testutil"
)

func TestRuns(t *testing.T) {
	order := []entity.PageRef{
		{Source: "a.pdf", Index: 0},
		{Source: "a.pdf", Index: 1},
		{Source: "b.pdf", Index: 0},
		{Source: "a.pdf", Index: 3},
	}
	assert.Equal(t, []Run{
		{Source: "a.pdf", Pages: []int{0, 1}},
		{Source: "b.pdf", Pages: []int{0}},
		{Source: "a.pdf", Pages: []int{3}},
	}, Runs(order))
	assert.Nil(t, Runs(nil))
}

func TestSelection(t *testing.T) {
	assert.Equal(t, []string{"3", "4", "1"}, selection([]int{2, 3, 0}))
}

func TestAssemble(t *testing.T) {
	dir := t.TempDir()
	pkg := testutil.WritePDF(t, filepath.Join(dir, "pkg.pdf"), "PKG-1", "PKG-2", "PKG-3")
	cand := testutil.WritePDF(t, filepath.Join(dir, "cand.pdf"), "CAND-1")
	out := filepath.Join(dir, "out", "result.pdf")

	order := []entity.PageRef{
		{Source: pkg, Index: 0},
		{Source: cand, Index: 0},
		{Source: pkg, Index: 2},
		{Source: pkg, Index: 1},
	}
	n, err := New(nil).Assemble(context.Background(), order, out)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	count, err := pages.CountPages(out)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	layers, err := pages.LoadTextLayers(out)
	require.NoError(t, err)
	require.Len(t, layers, 4)
	top := template.Region{X1: 0, Y1: 0, X2: 0.6, Y2: 0.2}
	for i, want := range []string{"PKG-1", "CAND-1", "PKG-3", "PKG-2"} {
		require.NotNil(t, layers[i], "page %d", i+1)
		assert.Contains(t, layers[i].TextIn(top), want, "page %d", i+1)
	}

	entries, err := os.ReadDir(filepath.Dir(out))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "work files are removed")
}

func TestAssemble_SingleRun(t *testing.T) {
	dir := t.TempDir()
	pkg := testutil.WritePDF(t, filepath.Join(dir, "pkg.pdf"), "A", "B")
	out := filepath.Join(dir, "single.pdf")

	n, err := New(nil).Assemble(context.Background(), []entity.PageRef{{Source: pkg, Index: 1}}, out)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestAssemble_Errors(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.pdf")

	_, err := New(nil).Assemble(context.Background(), nil, out)
	assert.ErrorIs(t, err, ErrNoPages)

	_, err = New(nil).Assemble(context.Background(), []entity.PageRef{{Source: filepath.Join(dir, "missing.pdf")}}, out)
	assert.Error(t, err)
	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr), "no partial output")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	pkg := testutil.WritePDF(t, filepath.Join(dir, "pkg.pdf"), "A")
	_, err = New(nil).Assemble(ctx, []entity.PageRef{{Source: pkg}}, out)
	assert.ErrorIs(t, err, context.Canceled)
}
