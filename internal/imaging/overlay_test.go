package imaging

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/FabioSangalli/nTLCanalyzer/internal/chrom"
	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

func decodePreview(t *testing.T, r *PreviewResult) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(r.ImageBase64)
	if err != nil {
		t.Fatalf("failed to decode base64: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("failed to decode png: %v", err)
	}
	return img
}

func TestLanePreview(t *testing.T) {
	img := createInMemoryImage(100, 100, color.RGBA{0, 0, 0, 255})
	line := chrom.ProfileLine{Points: []chrom.Point{{X: 50, Y: 80}, {X: 50, Y: 20}}, BandWidth: 10}

	result, err := LanePreview(img, line, PreviewOptions{Color: "#00FF00", Margin: 5})
	if err != nil {
		t.Fatalf("LanePreview failed: %v", err)
	}
	if result.MimeType != "image/png" {
		t.Errorf("MimeType: got %s, want image/png", result.MimeType)
	}
	// band spans x 45..55 and y 15..85, plus the margin
	if result.OriginX != 40 || result.OriginY != 10 {
		t.Errorf("origin: got (%d,%d), want (40,10)", result.OriginX, result.OriginY)
	}
	if result.Lane.LengthPixels != 60 {
		t.Errorf("lane length: got %v, want 60", result.Lane.LengthPixels)
	}

	preview := decodePreview(t, result)
	_, g, _, _ := preview.At(50-result.OriginX, 50-result.OriginY).RGBA()
	if g>>8 != 255 {
		t.Errorf("path pixel should be green, got g=%d", g>>8)
	}
	r, g, b, _ := preview.At(45-result.OriginX, 50-result.OriginY).RGBA()
	if r>>8 == 0 && g>>8 == 0 && b>>8 == 0 {
		t.Error("band edge should be drawn")
	}

	// source untouched
	if sr, sg, sb, _ := img.At(50, 50).RGBA(); sr|sg|sb != 0 {
		t.Error("LanePreview modified its source image")
	}
}

func TestLanePreview_Scale(t *testing.T) {
	img := createInMemoryImage(60, 60, color.White)
	line := chrom.ProfileLine{Points: []chrom.Point{{X: 10, Y: 10}, {X: 20, Y: 10}}}

	plain, err := LanePreview(img, line, PreviewOptions{Margin: 2})
	if err != nil {
		t.Fatalf("LanePreview failed: %v", err)
	}
	scaled, err := LanePreview(img, line, PreviewOptions{Margin: 2, Scale: 2})
	if err != nil {
		t.Fatalf("LanePreview failed: %v", err)
	}
	if scaled.Width != plain.Width*2 || scaled.Height != plain.Height*2 {
		t.Errorf("scaled preview: got %dx%d, want %dx%d", scaled.Width, scaled.Height, plain.Width*2, plain.Height*2)
	}
}

func TestLanePreview_Invalid(t *testing.T) {
	img := createInMemoryImage(20, 20, color.White)

	tests := []struct {
		name string
		line chrom.ProfileLine
	}{
		{"single point", chrom.ProfileLine{Points: []chrom.Point{{X: 1, Y: 1}}}},
		{"outside plate", chrom.ProfileLine{Points: []chrom.Point{{X: 500, Y: 500}, {X: 600, Y: 500}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LanePreview(img, tt.line, PreviewOptions{})
			if !apperrors.IsType(err, apperrors.ErrorTypeInvalidGeometry) {
				t.Errorf("want INVALID_GEOMETRY, got %v", err)
			}
		})
	}
}
