package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
)

// CropResult contains an encoded crop of a plate image.
type CropResult struct {
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	OriginX     int    `json:"origin_x"`
	OriginY     int    `json:"origin_y"`
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// cropScaled crops rect out of img, intersected with the image bounds, and
// resizes it by scale when scale is positive and not 1.
func cropScaled(img image.Image, rect image.Rectangle, scale float64) (*image.NRGBA, image.Rectangle, error) {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return nil, rect, fmt.Errorf("crop region lies outside image bounds %v", img.Bounds())
	}

	cropped := imaging.Crop(img, rect)
	if scale != 1.0 && scale > 0 {
		newWidth := max(1, int(float64(cropped.Bounds().Dx())*scale))
		newHeight := max(1, int(float64(cropped.Bounds().Dy())*scale))
		cropped = imaging.Resize(cropped, newWidth, newHeight, imaging.Lanczos)
	}
	return cropped, rect, nil
}

// encodeCrop PNG-encodes img into a CropResult.
func encodeCrop(img image.Image, origin image.Point) (*CropResult, error) {
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return &CropResult{
		Width:       img.Bounds().Dx(),
		Height:      img.Bounds().Dy(),
		OriginX:     origin.X,
		OriginY:     origin.Y,
		ImageBase64: base64.StdEncoding.EncodeToString(buf.Bytes()),
		MimeType:    "image/png",
	}, nil
}
