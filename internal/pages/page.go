// Package pages turns PDF files into page handles with a raster and an optional text layer.
package pages

import (
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
)

// Page is one page of a source document. The raster is decoded on first use.
type Page struct {
	Ref  entity.PageRef
	Hash string     // sha256 of the source file; empty for in-memory pages
	Text *TextLayer // nil when the page has no usable text layer

	imagePath string
	once      sync.Once
	img       image.Image
	err       error
}

// NewFilePage returns a page whose raster is read lazily from path.
func NewFilePage(ref entity.PageRef, path string) *Page {
	return &Page{Ref: ref, imagePath: path}
}

// NewImagePage wraps an already decoded raster.
func NewImagePage(ref entity.PageRef, img image.Image) *Page {
	p := &Page{Ref: ref, img: img}
	p.once.Do(func() {})
	return p
}

// Image returns the decoded raster. Safe for concurrent use.
func (p *Page) Image() (image.Image, error) {
	p.once.Do(func() {
		p.img, p.err = imaging.Open(p.imagePath)
		if p.err != nil {
			p.err = fmt.Errorf("open page raster %s: %w", p.imagePath, p.err)
		}
	})
	return p.img, p.err
}

// Size returns the raster dimensions in pixels.
func (p *Page) Size() (int, int, error) {
	img, err := p.Image()
	if err != nil {
		return 0, 0, err
	}
	if img == nil {
		return 0, 0, nil
	}
	b := img.Bounds()
	return b.Dx(), b.Dy(), nil
}

// ImagePath is the raster file backing the page, if any.
func (p *Page) ImagePath() string { return p.imagePath }
