package document

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/coursegrader/internal/storage"
)

type fakeOCR struct {
	got []byte
}

func (f *fakeOCR) ImageText(_ context.Context, image []byte) (string, error) {
	f.got = image
	return "scanned worksheet", nil
}

func TestContentExtractorReadsTextFiles(t *testing.T) {
	ctx := context.Background()
	files := storage.NewMemoryStorage()
	require.NoError(t, files.Upload(ctx, "owner/doc.md", strings.NewReader("# Cells\nMitochondria."), "text/markdown"))

	text, err := NewContentExtractor(files, nil).ExtractText(ctx, "owner/doc.md", "")
	require.NoError(t, err)
	require.Contains(t, text, "Mitochondria.")
}

func TestContentExtractorRoutesImagesToOCR(t *testing.T) {
	ctx := context.Background()
	files := storage.NewMemoryStorage()
	require.NoError(t, files.Upload(ctx, "owner/scan.png", strings.NewReader("PNGDATA"), "image/png"))

	ocr := &fakeOCR{}
	text, err := NewContentExtractor(files, ocr).ExtractText(ctx, "owner/scan.png", "image/png")
	require.NoError(t, err)
	require.Equal(t, "scanned worksheet", text)
	require.Equal(t, []byte("PNGDATA"), ocr.got)

	_, err = NewContentExtractor(files, nil).ExtractText(ctx, "owner/scan.png", "image/png")
	require.ErrorContains(t, err, "no OCR engine")
}

func TestContentExtractorRejectsMissingLocator(t *testing.T) {
	_, err := NewContentExtractor(storage.NewMemoryStorage(), nil).ExtractText(context.Background(), "", "")
	require.Error(t, err)
}
