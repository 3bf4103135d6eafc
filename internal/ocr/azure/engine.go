// Package azure recognizes regions with the Azure Computer Vision OCR API.
package azure

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/invoice-reconciler/internal/ocr"
)

// minSide is the smallest image edge the OCR endpoint accepts.
const minSide = 50

// Engine calls RecognizePrintedTextInStream for each region. The API reports no
// confidence, so confidence is estimated from the recognized text.
type Engine struct {
	client computervision.BaseClient
	logger *slog.Logger
}

func New(endpoint, apiKey string, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(apiKey)
	return &Engine{client: client, logger: logger}
}

func (e *Engine) Name() string { return "azure" }

func (e *Engine) Recognize(ctx context.Context, img image.Image) (ocr.Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, padToMinimum(img)); err != nil {
		return ocr.Result{}, fmt.Errorf("encode region: %w", err)
	}

	result, err := e.client.RecognizePrintedTextInStream(
		ctx,
		false,
		io.NopCloser(&buf),
		computervision.OcrLanguages(computervision.En),
	)
	if err != nil {
		return ocr.Result{}, fmt.Errorf("azure ocr: %w", err)
	}

	text := ocr.CleanText(textFromResult(result))
	return ocr.Result{Text: text, Confidence: ocr.HeuristicConfidence(text)}, nil
}

// padToMinimum centers img on a white canvas when either side is below minSide.
func padToMinimum(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w >= minSide && h >= minSide {
		return img
	}
	canvas := imaging.New(max(w, minSide), max(h, minSide), color.White)
	return imaging.PasteCenter(canvas, img)
}

// textFromResult joins words per line and lines in reading order.
func textFromResult(result computervision.OcrResult) string {
	if result.Regions == nil {
		return ""
	}
	var lines []string
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			if line.Words == nil {
				continue
			}
			var words []string
			for _, word := range *line.Words {
				if word.Text != nil {
					words = append(words, *word.Text)
				}
			}
			if len(words) > 0 {
				lines = append(lines, strings.Join(words, " "))
			}
		}
	}
	return strings.Join(lines, "\n")
}
