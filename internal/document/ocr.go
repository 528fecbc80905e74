package document

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// OCR turns an image into text.
type OCR interface {
	ImageText(ctx context.Context, image []byte) (string, error)
}

// TesseractOCR shells out to the tesseract binary, streaming the image
// through stdin.
type TesseractOCR struct {
	path     string
	language string
}

// NewTesseractOCR returns nil when tesseract is not on PATH.
func NewTesseractOCR(language string) *TesseractOCR {
	path, err := exec.LookPath("tesseract")
	if err != nil {
		return nil
	}
	if language == "" {
		language = "eng"
	}
	return &TesseractOCR{path: path, language: language}
}

func (o *TesseractOCR) ImageText(ctx context.Context, image []byte) (string, error) {
	cmd := exec.CommandContext(ctx, o.path, "stdin", "stdout", "-l", o.language)
	cmd.Stdin = bytes.NewReader(image)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	out, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("tesseract: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return strings.TrimSpace(string(out)), nil
}

func isImage(fileType string) bool {
	switch strings.ToLower(fileType) {
	case "image/png", "image/jpeg", "image/tiff", ".png", ".jpg", ".jpeg", ".tif", ".tiff":
		return true
	}
	return false
}
