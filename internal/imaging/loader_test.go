package imaging

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// createTestImage writes a solid PNG into the test's temp dir and returns its path.
func createTestImage(t *testing.T, width, height int, c color.Color) string {
	t.Helper()
	return writePNG(t, "plate.png", createInMemoryImage(width, height, c))
}

func writePNG(t *testing.T, name string, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode image: %v", err)
	}
	return path
}

func TestNewImageCache(t *testing.T) {
	cache := NewImageCache()
	if cache == nil {
		t.Fatal("NewImageCache returned nil")
	}
	if cache.Len() != 0 {
		t.Fatalf("new cache has %d entries", cache.Len())
	}
}

func TestImageCache_Load(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 100, 60, color.RGBA{255, 0, 0, 255})

	img1, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	bounds := img1.Bounds()
	if bounds.Dx() != 100 || bounds.Dy() != 60 {
		t.Errorf("unexpected dimensions: got %dx%d, want 100x60", bounds.Dx(), bounds.Dy())
	}

	img2, err := cache.Load(imgPath)
	if err != nil {
		t.Fatalf("second Load failed: %v", err)
	}
	if img1 != img2 {
		t.Error("second Load did not return cached image")
	}
}

func TestImageCache_Load_Errors(t *testing.T) {
	invalid := filepath.Join(t.TempDir(), "invalid.png")
	if err := os.WriteFile(invalid, []byte("not an image"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		path string
	}{
		{"non-existent", "/nonexistent/path/to/plate.png"},
		{"invalid data", invalid},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewImageCache().Load(tt.path)
			if !apperrors.IsType(err, apperrors.ErrorTypeIO) {
				t.Errorf("want IO error, got %v", err)
			}
		})
	}
}

func TestImageCache_LoadPlate_Despeckled(t *testing.T) {
	img := createInMemoryImage(21, 21, color.RGBA{200, 200, 200, 255}).(*image.RGBA)
	img.Set(10, 10, color.RGBA{0, 0, 0, 255}) // dust speck
	path := writePNG(t, "speck.png", img)

	cache := NewImageCache()
	raw, err := cache.LoadPlate(path, 0)
	if err != nil {
		t.Fatalf("LoadPlate failed: %v", err)
	}
	clean, err := cache.LoadPlate(path, 1)
	if err != nil {
		t.Fatalf("LoadPlate with median failed: %v", err)
	}

	if r, _, _, _ := raw.At(10, 10).RGBA(); r>>8 != 0 {
		t.Errorf("raw speck should stay black, got %d", r>>8)
	}
	if r, _, _, _ := clean.At(10, 10).RGBA(); r>>8 < 150 {
		t.Errorf("median should remove the speck, got %d", r>>8)
	}
	if cache.Len() != 2 {
		t.Errorf("expected raw and despeckled entries, got %d", cache.Len())
	}

	again, _ := cache.LoadPlate(path, 1)
	if again != clean {
		t.Error("despeckled variant was not cached")
	}
}

func TestImageCache_Evict(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 20, 20, color.RGBA{0, 0, 255, 255})

	if _, err := cache.LoadPlate(imgPath, 1); err != nil {
		t.Fatalf("LoadPlate failed: %v", err)
	}
	other := createTestImage(t, 10, 10, color.RGBA{0, 255, 0, 255})
	if _, err := cache.Load(other); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cache.Evict(imgPath)
	if cache.Len() != 1 {
		t.Errorf("Evict should remove the image and its variants, %d entries remain", cache.Len())
	}

	cache.Evict("/nonexistent/path") // must not panic
	if cache.Len() != 1 {
		t.Errorf("Evict of an unknown path changed the cache: %d entries", cache.Len())
	}
}

func TestImageCache_ConcurrentAccess(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 50, 50, color.RGBA{128, 128, 128, 255})

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := cache.LoadPlate(imgPath, float64(i%2)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("concurrent Load error: %v", err)
	}
}

func TestLoadPlateInfo(t *testing.T) {
	cache := NewImageCache()
	imgPath := createTestImage(t, 200, 150, color.RGBA{255, 128, 64, 255})

	info, err := LoadPlateInfo(cache, imgPath)
	if err != nil {
		t.Fatalf("LoadPlateInfo failed: %v", err)
	}
	if info.Width != 200 || info.Height != 150 {
		t.Errorf("dimensions: got %dx%d, want 200x150", info.Width, info.Height)
	}
	if info.Format != "png" {
		t.Errorf("Format: got %s, want png", info.Format)
	}
	if info.FileSizeBytes <= 0 {
		t.Error("FileSizeBytes should be positive")
	}
}

func TestLoadPlateInfo_Gray16(t *testing.T) {
	img := image.NewGray16(image.Rect(0, 0, 8, 8))
	path := writePNG(t, "scan.png", img)

	info, err := LoadPlateInfo(NewImageCache(), path)
	if err != nil {
		t.Fatalf("LoadPlateInfo failed: %v", err)
	}
	if !info.Grayscale || info.ColorDepth != "16-bit" {
		t.Errorf("got grayscale=%v depth=%s, want true 16-bit", info.Grayscale, info.ColorDepth)
	}
}

func TestLoadPlateInfo_FormatDetection(t *testing.T) {
	tests := []struct {
		ext    string
		format string
	}{
		{".png", "png"},
		{".jpg", "jpeg"},
		{".jpeg", "jpeg"},
		{".gif", "gif"},
		{".TIF", "tiff"},
		{".bmp", "bmp"},
		{".xyz", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.ext, func(t *testing.T) {
			// PNG content regardless of extension; decoding sniffs the data.
			path := writePNG(t, "plate"+tt.ext, image.NewRGBA(image.Rect(0, 0, 10, 10)))

			info, err := LoadPlateInfo(NewImageCache(), path)
			if err != nil {
				t.Fatalf("LoadPlateInfo failed: %v", err)
			}
			if info.Format != tt.format {
				t.Errorf("Format for %s: got %s, want %s", tt.ext, info.Format, tt.format)
			}
		})
	}
}
