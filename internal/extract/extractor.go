package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-reconciler/constants"
	"github.com/joseph-ayodele/invoice-reconciler/internal/async"
	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/normalize"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/pages"
	"github.com/joseph-ayodele/invoice-reconciler/internal/template"
)

// TextLayerConfidence is reported for values read from the embedded text layer.
const TextLayerConfidence = 0.95

// ErrRecognition marks fields whose OCR call failed or timed out.
var ErrRecognition = errors.New("recognition failed")

type Extractor struct {
	rec        ocr.Recognizer
	logger     *slog.Logger
	pool       *async.Pool
	ownPool    bool
	timeout    time.Duration
	enhance    bool
	textLayer  bool
	snippetDir string
	cache      FieldCache
	norm       normalize.Normalizer
	settings   string
}

type Option func(*Extractor)

// WithCallTimeout bounds each recognize call. Default 30s.
func WithCallTimeout(d time.Duration) Option {
	return func(e *Extractor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithEnhance(on bool) Option { return func(e *Extractor) { e.enhance = on } }
func WithTextLayer(on bool) Option { return func(e *Extractor) { e.textLayer = on } }
func WithSnippetDir(dir string) Option { return func(e *Extractor) { e.snippetDir = dir } }
func WithCache(c FieldCache) Option { return func(e *Extractor) { e.cache = c } }
func WithPool(p *async.Pool) Option { return func(e *Extractor) { e.pool = p } }
func WithLogger(l *slog.Logger) Option {
	return func(e *Extractor) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithNormalizer sets the normalizer used by Extract. ExtractPages uses the template's own.
func WithNormalizer(n normalize.Normalizer) Option { return func(e *Extractor) { e.norm = n } }

func New(rec ocr.Recognizer, opts ...Option) *Extractor {
	e := &Extractor{
		rec:       rec,
		logger:    slog.Default(),
		timeout:   30 * time.Second,
		textLayer: true,
		norm:      normalize.Default,
	}
	for _, o := range opts {
		o(e)
	}
	if e.pool == nil {
		e.pool = async.NewPool(e.logger)
		e.ownPool = true
	}
	e.settings = fmt.Sprintf("%s;enhance=%t", ocr.Fingerprint(rec), e.enhance)
	return e
}

// Close releases the worker pool when the extractor created it.
func (e *Extractor) Close(ctx context.Context) {
	if e.ownPool {
		e.pool.Shutdown(ctx)
	}
}

// Extract reads one field from one page. Recognition problems are reported on the
// returned field; only geometry and raster failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, page *pages.Page, field template.Field) (entity.ExtractedField, error) {
	return e.extract(ctx, page, field, e.norm)
}

func (e *Extractor) extract(ctx context.Context, page *pages.Page, field template.Field, norm normalize.Normalizer) (entity.ExtractedField, error) {
	out := entity.ExtractedField{Name: field.Name, Kind: field.Kind, Method: constants.MethodNone}
	if reason := field.Region.Validate(); reason != "" {
		return out, &common.InvalidRegionError{Field: field.Name, Region: field.Region.Array(), Reason: reason}
	}

	img, err := page.Image()
	if err != nil {
		return out, fmt.Errorf("page %d of %s: %w", page.Ref.Number(), page.Ref.Source, err)
	}
	if img == nil || img.Bounds().Empty() {
		return out, &common.InvalidRegionError{Field: field.Name, Region: field.Region.Array(), Reason: "page has zero area"}
	}
	b := img.Bounds()
	rect := field.Region.Pixels(b.Dx(), b.Dy()).Add(b.Min)

	key := CacheKey{
		FileHash: page.Hash,
		Page:     page.Ref.Index,
		Field:    field.Name,
		Region:   field.Region.String(),
		Crop:     fmt.Sprintf("%d,%d,%d,%d", rect.Min.X, rect.Min.Y, rect.Max.X, rect.Max.Y),
		Engine:   e.rec.Name(),
		Settings: e.settings,
	}

	switch {
	case e.cachedInto(ctx, key, &out):
	case e.textLayerInto(page, field, &out):
	default:
		e.recognizeInto(ctx, page, field, img, rect, &out)
		if out.Err == nil {
			e.store(ctx, key, out)
		}
	}

	if out.Err != nil {
		return out, nil
	}
	out.Value, out.Err = norm.Normalize(field.Kind, out.RawText)
	return out, nil
}

func (e *Extractor) cachedInto(ctx context.Context, key CacheKey, out *entity.ExtractedField) bool {
	if e.cache == nil || key.FileHash == "" {
		return false
	}
	v, ok, err := e.cache.Get(ctx, key)
	if err != nil {
		e.logger.Warn("extract.cache.get_failed", "field", key.Field, "page", key.Page, "error", err)
		return false
	}
	if !ok {
		return false
	}
	out.RawText, out.Confidence, out.Method = v.Text, v.Confidence, constants.MethodCache
	return true
}

func (e *Extractor) store(ctx context.Context, key CacheKey, f entity.ExtractedField) {
	if e.cache == nil || key.FileHash == "" {
		return
	}
	if err := e.cache.Put(ctx, key, CachedText{Text: f.RawText, Confidence: f.Confidence}); err != nil {
		e.logger.Warn("extract.cache.put_failed", "field", key.Field, "page", key.Page, "error", err)
	}
}

func (e *Extractor) textLayerInto(page *pages.Page, field template.Field, out *entity.ExtractedField) bool {
	if !e.textLayer || page.Text == nil {
		return false
	}
	txt := page.Text.TextIn(field.Region)
	if txt == "" {
		return false
	}
	out.RawText, out.Confidence, out.Method = txt, TextLayerConfidence, constants.MethodTextLayer
	return true
}

func (e *Extractor) recognizeInto(ctx context.Context, page *pages.Page, field template.Field, img image.Image, rect image.Rectangle, out *entity.ExtractedField) {
	crop := image.Image(imaging.Crop(img, rect))
	if e.enhance {
		crop = enhance(crop)
	}
	e.saveSnippet(page.Ref, field.Name, crop)

	out.Method = constants.MethodOCR
	cctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.rec.Recognize(cctx, crop)
	if err != nil {
		out.Confidence = 0
		out.Err = fmt.Errorf("%w: %s: %w", ErrRecognition, e.rec.Name(), err)
		e.logger.Warn("extract.recognize.failed",
			"source", page.Ref.Source, "page", page.Ref.Number(), "field", field.Name,
			"duration_ms", time.Since(start).Milliseconds(), "error", err)
		return
	}

	out.RawText = ocr.CleanText(res.Text)
	out.Confidence = res.Confidence
	if strings.TrimSpace(out.RawText) == "" {
		out.Confidence = 0
	}
	e.logger.Debug("extract.recognize.ok",
		"source", page.Ref.Source, "page", page.Ref.Number(), "field", field.Name,
		"chars", len(out.RawText), "confidence", out.Confidence,
		"duration_ms", time.Since(start).Milliseconds())
}

// enhance prepares a crop for OCR: grayscale, more contrast, light sharpening.
func enhance(img image.Image) image.Image {
	g := imaging.Grayscale(img)
	g = imaging.AdjustContrast(g, 30)
	return imaging.Sharpen(g, 1.0)
}

func (e *Extractor) saveSnippet(ref entity.PageRef, field string, img image.Image) {
	if e.snippetDir == "" {
		return
	}
	if err := os.MkdirAll(e.snippetDir, 0o755); err != nil {
		e.logger.Warn("extract.snippet.mkdir_failed", "dir", e.snippetDir, "error", err)
		return
	}
	path := filepath.Join(e.snippetDir, SnippetName(ref, field))
	if err := imaging.Save(img, path); err != nil {
		e.logger.Warn("extract.snippet.save_failed", "path", path, "error", err)
	}
}

// SnippetName is <file>_p<NNN>_<field>.png, with a 1-based page number.
func SnippetName(ref entity.PageRef, field string) string {
	base := strings.TrimSuffix(filepath.Base(ref.Source), filepath.Ext(ref.Source))
	return fmt.Sprintf("%s_p%03d_%s.png", base, ref.Number(), field)
}
