package ocr

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// TesseractConfig configures the tesseract CLI engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	Lang        string // default "eng"
	TessdataDir string
	PSM         int // 7 = single text line, suits field regions
	OEM         int // leave 0 to use default
	DPI         int // resolution hint for cropped regions
	TempDir     string
}

// Tesseract shells out to the tesseract binary in TSV mode.
type Tesseract struct {
	cfg    TesseractConfig
	runner Runner
	logger *slog.Logger
}

func NewTesseract(cfg TesseractConfig, runner Runner, logger *slog.Logger) *Tesseract {
	if logger == nil {
		logger = slog.Default()
	}
	if runner == nil {
		runner = NewExecRunner(logger)
	}
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	if cfg.Lang == "" {
		cfg.Lang = "eng"
	}
	return &Tesseract{cfg: cfg, runner: runner, logger: logger}
}

func (t *Tesseract) Name() string { return "tesseract" }

// Fingerprint covers every option passed to the binary except paths.
func (t *Tesseract) Fingerprint() string {
	return fmt.Sprintf("lang=%s;psm=%d;oem=%d;dpi=%d", t.cfg.Lang, t.cfg.PSM, t.cfg.OEM, t.cfg.DPI)
}

// Recognize writes img to a temporary PNG and reads words and confidences from TSV output.
func (t *Tesseract) Recognize(ctx context.Context, img image.Image) (Result, error) {
	f, err := os.CreateTemp(t.cfg.TempDir, "region-*.png")
	if err != nil {
		return Result{}, fmt.Errorf("create temp image: %w", err)
	}
	path := f.Name()
	defer func() {
		if err := os.Remove(path); err != nil {
			t.logger.Warn("failed to remove temp image", "path", path, "error", err)
		}
	}()
	if err := png.Encode(f, img); err != nil {
		_ = f.Close()
		return Result{}, fmt.Errorf("encode region: %w", err)
	}
	if err := f.Close(); err != nil {
		return Result{}, fmt.Errorf("close temp image: %w", err)
	}

	out, errb, err := t.runner.Run(ctx, t.cfg.Binary, t.args(path)...)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, fmt.Errorf("tesseract: %w: %s", err, Truncate(strings.TrimSpace(string(errb)), 512))
	}
	text, conf := ParseTSV(out)
	return Result{Text: CleanText(text), Confidence: conf}, nil
}

// tesseract <file> stdout -l <lang> [--psm N] [--oem N] [--dpi N] [--tessdata-dir D] tsv
func (t *Tesseract) args(path string) []string {
	args := []string{path, "stdout", "-l", t.cfg.Lang}
	if t.cfg.PSM > 0 {
		args = append(args, "--psm", strconv.Itoa(t.cfg.PSM))
	}
	if t.cfg.OEM > 0 {
		args = append(args, "--oem", strconv.Itoa(t.cfg.OEM))
	}
	if t.cfg.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(t.cfg.DPI))
	}
	if t.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", t.cfg.TessdataDir)
	}
	return append(args, "tsv")
}

// ParseTSV rebuilds the text from tesseract TSV rows and returns the mean word confidence in 0..1.
// Columns: level page block par line word left top width height conf text.
func ParseTSV(out []byte) (string, float64) {
	var (
		lines   []string
		cur     []string
		lineKey string
		sum, n  float64
	)
	for i, ln := range strings.Split(string(out), "\n") {
		if i == 0 || len(ln) == 0 {
			continue
		} // skip header
		cols := strings.Split(strings.TrimRight(ln, "\r"), "\t")
		if len(cols) < 12 || cols[0] != "5" {
			continue
		}
		word := strings.TrimSpace(cols[11])
		conf, err := strconv.ParseFloat(cols[10], 64)
		if word == "" || err != nil || conf < 0 {
			continue
		}
		key := cols[2] + "/" + cols[3] + "/" + cols[4]
		if key != lineKey && len(cur) > 0 {
			lines = append(lines, strings.Join(cur, " "))
			cur = nil
		}
		lineKey = key
		cur = append(cur, word)
		sum += conf
		n++
	}
	if len(cur) > 0 {
		lines = append(lines, strings.Join(cur, " "))
	}
	if n == 0 {
		return "", 0
	}
	return strings.Join(lines, "\n"), sum / n / 100.0
}
