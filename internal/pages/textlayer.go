package pages

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/joseph-ayodele/invoice-reconciler/internal/normalize"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

// Letter size in points, used when a page carries no MediaBox.
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// Glyph is a positioned run of text in PDF user space (origin bottom-left).
type Glyph struct {
	X, Y     float64
	W        float64
	FontSize float64
	S        string
}

// TextLayer is the embedded text of one page.
type TextLayer struct {
	Width, Height float64
	Glyphs        []Glyph
}

// TextIn returns the text whose glyphs fall inside the region, read top-down then left-to-right.
func (t *TextLayer) TextIn(r template.Region) string {
	if t == nil || t.Width <= 0 || t.Height <= 0 {
		return ""
	}
	x1, x2 := r.X1*t.Width, r.X2*t.Width
	// regions are top-left based, PDF space is bottom-left based
	yTop, yBot := t.Height*(1-r.Y1), t.Height*(1-r.Y2)

	var in []Glyph
	for _, g := range t.Glyphs {
		cx := g.X + g.W/2
		if cx < x1 || cx > x2 || g.Y < yBot || g.Y > yTop {
			continue
		}
		in = append(in, g)
	}
	if len(in) == 0 {
		return ""
	}

	sort.SliceStable(in, func(i, j int) bool {
		if math.Abs(in[i].Y-in[j].Y) > lineTolerance(in[i], in[j]) {
			return in[i].Y > in[j].Y
		}
		return in[i].X < in[j].X
	})

	var b strings.Builder
	prev := in[0]
	b.WriteString(prev.S)
	for _, g := range in[1:] {
		switch {
		case math.Abs(g.Y-prev.Y) > lineTolerance(g, prev):
			b.WriteByte(' ')
		case g.X-(prev.X+prev.W) > prev.FontSize*0.25:
			b.WriteByte(' ')
		}
		b.WriteString(g.S)
		prev = g
	}
	return normalize.CollapseSpace(b.String())
}

func lineTolerance(a, b Glyph) float64 {
	fs := math.Max(a.FontSize, b.FontSize)
	if fs <= 0 {
		return 2
	}
	return fs / 2
}

// LoadTextLayers reads every page's text layer. Pages that cannot be decoded get a nil entry.
func LoadTextLayers(path string) ([]*TextLayer, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open text layer: %w", err)
	}
	defer func() { _ = f.Close() }()

	n := r.NumPage()
	layers := make([]*TextLayer, n)
	for i := 1; i <= n; i++ {
		layers[i-1] = readPage(r.Page(i))
	}
	return layers, nil
}

func readPage(p pdf.Page) (layer *TextLayer) {
	if p.V.IsNull() {
		return nil
	}
	// the content parser panics on some malformed streams
	defer func() {
		if recover() != nil {
			layer = nil
		}
	}()

	w, h := mediaBox(p)
	layer = &TextLayer{Width: w, Height: h}
	for _, t := range p.Content().Text {
		if strings.TrimSpace(t.S) == "" {
			continue
		}
		layer.Glyphs = append(layer.Glyphs, Glyph{X: t.X, Y: t.Y, W: t.W, FontSize: t.FontSize, S: t.S})
	}
	if len(layer.Glyphs) == 0 {
		return nil
	}
	return layer
}

func mediaBox(p pdf.Page) (float64, float64) {
	box := p.V.Key("MediaBox")
	for parent := p.V.Key("Parent"); box.IsNull() && !parent.IsNull(); parent = parent.Key("Parent") {
		box = parent.Key("MediaBox")
	}
	if box.Len() != 4 {
		return defaultPageWidth, defaultPageHeight
	}
	w := box.Index(2).Float64() - box.Index(0).Float64()
	h := box.Index(3).Float64() - box.Index(1).Float64()
	if w <= 0 || h <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return w, h
}
