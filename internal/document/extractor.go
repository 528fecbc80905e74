package document

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"github.com/nikhilbhutani/coursegrader/internal/storage"
	"github.com/nikhilbhutani/coursegrader/pkg/textextract"
)

// maxFileSize bounds how much of an object is read into memory for extraction.
const maxFileSize = 50 << 20

// ContentExtractor resolves a stored file into plain text.
type ContentExtractor interface {
	ExtractText(ctx context.Context, locator, mimeType string) (string, error)
}

type storageExtractor struct {
	storage storage.Storage
	ocr     OCR
}

// NewContentExtractor reads files from store. Images are only accepted when
// ocr is non-nil.
func NewContentExtractor(store storage.Storage, ocr OCR) ContentExtractor {
	return &storageExtractor{storage: store, ocr: ocr}
}

func (e *storageExtractor) ExtractText(ctx context.Context, locator, mimeType string) (string, error) {
	if locator == "" {
		return "", fmt.Errorf("document has neither content nor file")
	}

	fileType := mimeType
	if fileType == "" {
		fileType = filepath.Ext(locator)
	}

	reader, err := e.storage.Download(ctx, locator)
	if err != nil {
		return "", err
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, maxFileSize+1))
	if err != nil {
		return "", fmt.Errorf("read file: %w", err)
	}
	if len(data) > maxFileSize {
		return "", fmt.Errorf("file %s exceeds %d bytes", locator, maxFileSize)
	}

	if isImage(fileType) {
		if e.ocr == nil {
			return "", fmt.Errorf("no OCR engine for image %s", locator)
		}
		text, err := e.ocr.ImageText(ctx, data)
		if err != nil {
			return "", fmt.Errorf("ocr: %w", err)
		}
		return text, nil
	}

	extracted, err := textextract.Extract(bytes.NewReader(data), int64(len(data)), fileType)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return extracted.Content, nil
}
