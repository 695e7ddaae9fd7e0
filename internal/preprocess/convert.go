package preprocess

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	"image/png"
	"strings"

	"github.com/gen2brain/go-fitz"
	"github.com/gen2brain/heic"
)

// Decode turns an uploaded document into an image. PDFs are rendered from
// their first page (receipts are almost always single page), HEIC/HEIF is
// decoded with a pure Go decoder since the standard image package does not
// support it, and everything else goes through image.Decode.
func Decode(data []byte, contentType string) (image.Image, error) {
	mimeType := strings.ToLower(strings.TrimSpace(contentType))

	if mimeType == "application/pdf" {
		return pdfPage(data)
	}
	if isHEIC(data) || strings.Contains(mimeType, "heic") || strings.Contains(mimeType, "heif") {
		img, err := heic.Decode(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("decoding HEIC image: %w", err)
		}
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		if strings.Contains(err.Error(), "unknown format") || strings.Contains(err.Error(), "unsupported") {
			return nil, fmt.Errorf("unsupported image format (supported: JPEG, PNG, GIF, HEIC, HEIF, PDF): %w", err)
		}
		return nil, fmt.Errorf("decoding image: %w", err)
	}
	return img, nil
}

// pdfPage renders the first PDF page to an image.
func pdfPage(data []byte) (image.Image, error) {
	doc, err := fitz.NewFromMemory(data)
	if err != nil {
		return nil, fmt.Errorf("opening PDF: %w", err)
	}
	defer doc.Close()

	img, err := doc.Image(0)
	if err != nil {
		return nil, fmt.Errorf("rendering PDF page: %w", err)
	}
	return img, nil
}

// EncodePNG encodes an image for transmission to an engine.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encoding PNG: %w", err)
	}
	return buf.Bytes(), nil
}

// isHEIC sniffs the ftyp box brands HEIC containers start with.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
