package azure

import (
	"image"
	"testing"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/stretchr/testify/assert"
)

func words(ws ...string) *[]computervision.OcrWord {
	out := make([]computervision.OcrWord, len(ws))
	for i := range ws {
		out[i] = computervision.OcrWord{Text: &ws[i]}
	}
	return &out
}

func TestTextFromResult(t *testing.T) {
	result := computervision.OcrResult{
		Regions: &[]computervision.OcrRegion{
			{Lines: &[]computervision.OcrLine{
				{Words: words("Invoice", "#")},
				{Words: words("INV-1001")},
				{Words: nil},
			}},
			{Lines: nil},
		},
	}
	assert.Equal(t, "Invoice #\nINV-1001", textFromResult(result))
	assert.Equal(t, "", textFromResult(computervision.OcrResult{}))
}

func TestPadToMinimum(t *testing.T) {
	small := image.NewGray(image.Rect(0, 0, 120, 20))
	padded := padToMinimum(small)
	assert.Equal(t, 120, padded.Bounds().Dx())
	assert.Equal(t, minSide, padded.Bounds().Dy())

	big := image.NewGray(image.Rect(0, 0, 200, 80))
	assert.Same(t, big, padToMinimum(big))
}

func TestNew(t *testing.T) {
	e := New("https://example.cognitiveservices.azure.com/", "key", nil)
	assert.Equal(t, "azure", e.Name())
	assert.NotNil(t, e.client.Authorizer)
}
