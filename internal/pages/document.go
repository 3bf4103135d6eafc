package pages

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/joseph-ayodele/invoice-reconciler/internal/entity"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
)

// Document is an opened source file. Close removes its rasters.
type Document struct {
	Path  string
	Hash  string
	Pages []*Page

	dir string
}

// Close removes the document's working directory.
func (d *Document) Close() error {
	if d == nil || d.dir == "" {
		return nil
	}
	return os.RemoveAll(d.dir)
}

// Config controls rasterization.
type Config struct {
	Pdftoppm  string // binary name or absolute path; if empty -> "pdftoppm"
	DPI       int    // default 300
	CacheDir  string // parent of per-document raster directories; default "./tmp"
	TextLayer bool   // also read the embedded text layer
}

// Source opens PDFs into Documents.
type Source struct {
	cfg    Config
	runner ocr.Runner
	logger *slog.Logger
}

func NewSource(cfg Config, runner ocr.Runner, logger *slog.Logger) *Source {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = ocr.NewExecRunner(logger)
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = "./tmp"
	}
	return &Source{cfg: cfg, runner: runner, logger: logger}
}

// Open hashes, counts, rasterizes and (optionally) reads the text layer of path.
func (s *Source) Open(ctx context.Context, path string) (*Document, error) {
	hash, err := HashFile(path)
	if err != nil {
		return nil, err
	}
	n, err := CountPages(path)
	if err != nil {
		return nil, err
	}
	doc := &Document{Path: path, Hash: hash}
	if n == 0 {
		return doc, nil
	}

	if err := os.MkdirAll(s.cfg.CacheDir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache dir: %w", err)
	}
	dir, err := os.MkdirTemp(s.cfg.CacheDir, "pages-"+hash[:12]+"-*")
	if err != nil {
		return nil, fmt.Errorf("create page dir: %w", err)
	}
	doc.dir = dir

	images, err := s.rasterize(ctx, path, dir, n)
	if err != nil {
		_ = doc.Close()
		return nil, err
	}

	var layers []*TextLayer
	if s.cfg.TextLayer {
		layers, err = LoadTextLayers(path)
		if err != nil {
			s.logger.Warn("pages.text_layer.unavailable", "path", path, "error", err)
		}
	}

	for i, img := range images {
		p := NewFilePage(entity.PageRef{Source: path, Index: i}, img)
		p.Hash = hash
		if i < len(layers) {
			p.Text = layers[i]
		}
		doc.Pages = append(doc.Pages, p)
	}
	s.logger.Debug("pages.opened", "path", path, "pages", len(doc.Pages), "dpi", s.cfg.DPI, "text_layer", len(layers) > 0)
	return doc, nil
}

func (s *Source) rasterize(ctx context.Context, path, dir string, n int) ([]string, error) {
	prefix := filepath.Join(dir, "page")
	// pdftoppm -r 300 -png -f 1 -l N <in.pdf> <dir/page>
	_, errb, err := s.runner.Run(ctx, s.cfg.Pdftoppm,
		"-r", strconv.Itoa(s.cfg.DPI), "-png", "-f", "1", "-l", strconv.Itoa(n), path, prefix)
	if err != nil {
		return nil, fmt.Errorf("pdftoppm: %w: %s", err, ocr.Truncate(strings.TrimSpace(string(errb)), 512))
	}

	matches, _ := filepath.Glob(prefix + "-*.png")
	sortByPageNumber(matches)
	if len(matches) != n {
		return nil, fmt.Errorf("pdftoppm rendered %d of %d pages", len(matches), n)
	}
	return matches, nil
}

// sortByPageNumber orders pdftoppm outputs (page-1.png, page-02.png, ...) numerically.
func sortByPageNumber(paths []string) {
	num := func(p string) int {
		base := strings.TrimSuffix(filepath.Base(p), ".png")
		i := strings.LastIndex(base, "-")
		n, _ := strconv.Atoi(base[i+1:])
		return n
	}
	sort.SliceStable(paths, func(i, j int) bool { return num(paths[i]) < num(paths[j]) })
}

var configOnce sync.Once

// PDFConfig is the pdfcpu configuration shared by every PDF operation. It never reads
// or writes the user config dir and emits classic xref tables.
func PDFConfig() *model.Configuration {
	configOnce.Do(api.DisableConfigDir)
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false
	return conf
}

// CountPages reads the page count with pdfcpu.
func CountPages(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	n, err := api.PageCount(f, PDFConfig())
	if err != nil {
		return 0, fmt.Errorf("count pages of %s: %w", path, err)
	}
	return n, nil
}

// HashFile returns the hex sha256 of the file at path.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
