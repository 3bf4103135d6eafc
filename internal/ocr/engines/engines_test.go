package engines

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/invoice-reconciler/internal/common"
)

func TestNew(t *testing.T) {
	cases := []struct {
		engine string
		name   string
	}{
		{"", "tesseract"},
		{"tesseract", "tesseract"},
		{"Gosseract", "gosseract"},
	}
	for _, tc := range cases {
		rec, err := New(common.OCRConfig{Engine: tc.engine, Lang: "eng"}, nil, nil)
		require.NoError(t, err, tc.engine)
		assert.Equal(t, tc.name, rec.Name())
	}

	rec, err := New(common.OCRConfig{Engine: "azure", AzureEndpoint: "https://example.cognitiveservices.azure.com/", AzureKey: "k"}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "azure", rec.Name())
}

func TestNew_Errors(t *testing.T) {
	_, err := New(common.OCRConfig{Engine: "azure"}, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = New(common.OCRConfig{Engine: "easyocr"}, nil, nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}
