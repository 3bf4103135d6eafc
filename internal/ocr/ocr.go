// Package ocr recognizes text in cropped page regions.
package ocr

import (
	"context"
	"image"
)

// Result is the recognized text of one region with a confidence in [0,1].
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer is the OCR collaborator. Implementations must honor ctx cancellation.
type Recognizer interface {
	Name() string
	Recognize(ctx context.Context, img image.Image) (Result, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, img image.Image) (Result, error)

func (f RecognizerFunc) Name() string { return "func" }

func (f RecognizerFunc) Recognize(ctx context.Context, img image.Image) (Result, error) {
	return f(ctx, img)
}

// Fingerprinter is implemented by engines whose settings change what they read.
type Fingerprinter interface {
	Fingerprint() string
}

// Fingerprint identifies rec together with its settings.
func Fingerprint(rec Recognizer) string {
	if f, ok := rec.(Fingerprinter); ok {
		return rec.Name() + ":" + f.Fingerprint()
	}
	return rec.Name()
}
