// Package engines builds the configured OCR engine. It links every engine,
// including the cgo-backed gosseract one, so only binaries import it.
package engines

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr/azure"
	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr/gosseract"
)

// New returns the recognizer named by cfg.Engine.
func New(cfg common.OCRConfig, runner ocr.Runner, logger *slog.Logger) (ocr.Recognizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch strings.ToLower(cfg.Engine) {
	case "", "tesseract":
		return ocr.NewTesseract(ocr.TesseractConfig{
			Binary:      cfg.Tesseract,
			Lang:        cfg.Lang,
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			OEM:         cfg.OEM,
			DPI:         cfg.DPI,
			TempDir:     cfg.ArtifactCacheDir,
		}, runner, logger), nil
	case "gosseract":
		return gosseract.New(gosseract.Config{
			Lang:        cfg.Lang,
			TessdataDir: cfg.TessdataDir,
			PSM:         cfg.PSM,
			DPI:         cfg.DPI,
		}), nil
	case "azure":
		if cfg.AzureEndpoint == "" || cfg.AzureKey == "" {
			return nil, common.NewAppError("CONFIG_ERROR", "azure engine needs AZURE_VISION_ENDPOINT and AZURE_VISION_KEY", common.ErrInvalidInput)
		}
		return azure.New(cfg.AzureEndpoint, cfg.AzureKey, logger), nil
	default:
		return nil, common.NewAppError("CONFIG_ERROR", fmt.Sprintf("unknown OCR engine %q", cfg.Engine), common.ErrInvalidInput)
	}
}
