// Package gosseract recognizes regions in-process through libtesseract.
package gosseract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
)

// Config mirrors the tesseract CLI knobs that apply to the library.
type Config struct {
	Lang        string
	TessdataDir string
	PSM         int
	DPI         int
}

// Engine creates one client per call; gosseract clients are not safe for concurrent use.
type Engine struct {
	cfg           Config
	clientFactory func() *gosseract.Client
}

func New(cfg Config) *Engine {
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Engine{cfg: cfg, clientFactory: gosseract.NewClient}
}

func (e *Engine) Name() string { return "gosseract" }

func (e *Engine) Fingerprint() string {
	return fmt.Sprintf("lang=%s;psm=%d;dpi=%d", e.cfg.Lang, e.cfg.PSM, e.cfg.DPI)
}

// Recognize runs OCR on img. libtesseract cannot be interrupted, so on cancellation
// the call returns immediately and the worker goroutine finishes in the background.
func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return ocr.Result{}, fmt.Errorf("encode region: %w", err)
	}

	type outcome struct {
		res ocr.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := e.recognize(buf.Bytes())
		done <- outcome{res, err}
	}()

	select {
	case <-ctx.Done():
		return ocr.Result{}, ctx.Err()
	case o := <-done:
		return o.res, o.err
	}
}

func (e *Engine) recognize(data []byte) (ocr.Result, error) {
	c := e.clientFactory()
	defer func() { _ = c.Close() }()

	if e.cfg.TessdataDir != "" {
		if err := c.SetTessdataPrefix(e.cfg.TessdataDir); err != nil {
			return ocr.Result{}, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	if err := c.SetLanguage(strings.Split(e.cfg.Lang, "+")...); err != nil {
		return ocr.Result{}, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.PSM > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PSM)); err != nil {
			return ocr.Result{}, fmt.Errorf("set psm: %w", err)
		}
	}
	if e.cfg.DPI > 0 {
		if err := c.SetVariable(gosseract.SettableVariable("user_defined_dpi"), fmt.Sprint(e.cfg.DPI)); err != nil {
			return ocr.Result{}, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		return ocr.Result{}, fmt.Errorf("set image: %w", err)
	}

	text, err := c.Text()
	if err != nil {
		return ocr.Result{}, fmt.Errorf("recognize text: %w", err)
	}
	return ocr.Result{Text: ocr.CleanText(text), Confidence: meanWordConfidence(c)}, nil
}

func meanWordConfidence(c *gosseract.Client) float64 {
	boxes, err := c.GetBoundingBoxes(gosseract.RIL_WORD)
	if err != nil || len(boxes) == 0 {
		return 0
	}
	var sum float64
	var n int
	for _, b := range boxes {
		if strings.TrimSpace(b.Word) == "" {
			continue
		}
		sum += b.Confidence / 100.0
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
