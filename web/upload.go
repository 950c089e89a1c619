package web

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // Keep for decoding pngs
	"log"

	_ "github.com/chai2010/webp" // Keep for decoding webps
	"github.com/nfnt/resize"
)

// maxUploadDimension matches the Seedream dimension limit; bigger sources
// are downscaled before hosting so the edit call never references an image
// the service would reject.
const maxUploadDimension = 4096

// processUpload downsizes an uploaded edit source to fit the dimension limit
// and converts PNG and WebP input to JPEG.
func processUpload(imgBytes []byte) ([]byte, error) {
	img, format, err := image.Decode(bytes.NewReader(imgBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	log.Printf("Decoded upload format: %s", format)

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	needsResize := width > maxUploadDimension || height > maxUploadDimension
	needsConversion := format == "png" || format == "webp"

	if !needsResize && !needsConversion {
		return imgBytes, nil
	}

	processed := img
	if needsResize {
		log.Printf("Upload original size: %dx%d. Resizing to max %d.", width, height, maxUploadDimension)
		processed = resize.Thumbnail(maxUploadDimension, maxUploadDimension, img, resize.Lanczos3)
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, processed, &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode image to jpeg: %w", err)
	}

	if needsResize {
		log.Printf("Upload resized to: %dx%d", processed.Bounds().Dx(), processed.Bounds().Dy())
	}
	if needsConversion {
		log.Printf("Converted %s upload to JPEG.", format)
	}

	return buf.Bytes(), nil
}
