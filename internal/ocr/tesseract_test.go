package ocr

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTSV = "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
	"1\t1\t0\t0\t0\t0\t0\t0\t300\t40\t-1\t\n" +
	"4\t1\t1\t1\t1\t0\t2\t2\t200\t30\t-1\t\n" +
	"5\t1\t1\t1\t1\t1\t2\t2\t80\t30\t96.5\tInvoice\n" +
	"5\t1\t1\t1\t1\t2\t90\t2\t100\t30\t90.5\tINV-1001\n" +
	"5\t1\t1\t1\t2\t1\t2\t40\t100\t30\t-1\t\n" +
	"5\t1\t1\t1\t2\t2\t2\t40\t100\t30\t80\tdue\n"

type fakeRunner struct {
	name   string
	args   []string
	stdout []byte
	stderr []byte
	err    error
	seen   bool // whether the input file existed during the call
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.name, f.args = name, args
	if len(args) > 0 {
		_, err := os.Stat(args[0])
		f.seen = err == nil
	}
	return f.stdout, f.stderr, f.err
}

func testImage() image.Image {
	img := image.NewGray(image.Rect(0, 0, 20, 10))
	img.Set(5, 5, color.White)
	return img
}

func TestParseTSV(t *testing.T) {
	text, conf := ParseTSV([]byte(sampleTSV))
	assert.Equal(t, "Invoice INV-1001\ndue", text)
	assert.InDelta(t, (96.5+90.5+80)/3/100, conf, 1e-9)

	text, conf = ParseTSV([]byte("level\tpage_num\n"))
	assert.Equal(t, "", text)
	assert.Equal(t, 0.0, conf)
}

func TestTesseract_Recognize(t *testing.T) {
	runner := &fakeRunner{stdout: []byte(sampleTSV)}
	eng := NewTesseract(TesseractConfig{PSM: 7, DPI: 300, TessdataDir: "/td", TempDir: t.TempDir()}, runner, nil)

	res, err := eng.Recognize(context.Background(), testImage())
	require.NoError(t, err)

	assert.Equal(t, "Invoice INV-1001 due", res.Text)
	assert.InDelta(t, 0.89, res.Confidence, 1e-9)
	assert.Equal(t, "tesseract", runner.name)
	assert.True(t, runner.seen, "region image exists while tesseract runs")
	assert.Equal(t, []string{"stdout", "-l", "eng", "--psm", "7", "--dpi", "300", "--tessdata-dir", "/td", "tsv"}, runner.args[1:])

	_, err = os.Stat(runner.args[0])
	assert.True(t, os.IsNotExist(err), "temp image is removed")
}

func TestFingerprint(t *testing.T) {
	a := NewTesseract(TesseractConfig{PSM: 7, DPI: 300}, &fakeRunner{}, nil)
	b := NewTesseract(TesseractConfig{PSM: 6, DPI: 300}, &fakeRunner{}, nil)

	assert.Equal(t, "tesseract:lang=eng;psm=7;oem=0;dpi=300", Fingerprint(a))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))

	plain := RecognizerFunc(func(context.Context, image.Image) (Result, error) { return Result{}, nil })
	assert.Equal(t, "func", Fingerprint(plain))
}

func TestTesseract_Failure(t *testing.T) {
	runner := &fakeRunner{stderr: []byte("Error opening data file"), err: errors.New("exit status 1")}
	eng := NewTesseract(TesseractConfig{TempDir: t.TempDir()}, runner, nil)

	_, err := eng.Recognize(context.Background(), testImage())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Error opening data file")
}

func TestTesseract_CanceledContext(t *testing.T) {
	runner := &fakeRunner{err: errors.New("signal: killed")}
	eng := NewTesseract(TesseractConfig{TempDir: t.TempDir()}, runner, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := eng.Recognize(ctx, testImage())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCleanText(t *testing.T) {
	tests := map[string]string{
		"":                         "",
		"  INV-1001  \n":           "INV-1001",
		"|INV-1001|":               "INV-1001",
		"Acme\r\n\r\n  Corp\tLtd ": "Acme Corp Ltd",
		"-----\n1,234.50\n_____":   "1,234.50",
	}
	for in, want := range tests {
		assert.Equal(t, want, CleanText(in), "input %q", in)
	}
}

func TestHeuristicConfidence(t *testing.T) {
	assert.Equal(t, 0.0, HeuristicConfidence("  "))
	plain := HeuristicConfidence("Acme Corp")
	assert.InDelta(t, 0.5, plain, 1e-9)
	assert.Greater(t, HeuristicConfidence("INV-1001"), plain)
	assert.Greater(t, HeuristicConfidence("$1,234.50"), plain)
	assert.LessOrEqual(t, HeuristicConfidence("INV-1001 03/14/2024 $1,234.50"), 1.0)
	assert.Less(t, HeuristicConfidence("~~~^^^"), 0.5)
}
