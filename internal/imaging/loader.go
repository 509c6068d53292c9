package imaging

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/anthonynsimon/bild/effect"
	"github.com/disintegration/imaging"

	apperrors "github.com/FabioSangalli/nTLCanalyzer/internal/errors"
)

// ImageCache provides thread-safe caching of loaded plate images.
//
// The cache stores decoded image.Image objects keyed by their file path, and
// despeckled variants keyed by path and median radius. Cached images are never
// modified, so the same plate can be shared by any number of concurrent
// pipeline runs.
//
// # Memory Management
//
// Cached images remain in memory until removed via Evict(), which also drops
// every despeckled variant of the path. Evict a plate whose file changed on
// disk to reload it.
//
// # Example Usage
//
//	cache := imaging.NewImageCache()
//	img, err := cache.LoadPlate("/plates/run-12.png", 1.5)
//	if err != nil {
//	    return err
//	}
//	field, err := imaging.NewImageField(img, imaging.ReductionMean, "")
type ImageCache struct {
	mu     sync.RWMutex
	images map[string]image.Image
}

// NewImageCache creates and initializes a new empty image cache.
func NewImageCache() *ImageCache {
	return &ImageCache{
		images: make(map[string]image.Image),
	}
}

// Load retrieves an image from the cache or decodes it from disk.
//
// Parameters:
//   - path: File path to the image. PNG, JPEG, GIF, BMP and TIFF are supported.
//
// Returns:
//   - image.Image: The decoded image. JPEG photographs are rotated according to
//     their EXIF orientation so lanes are sampled in display coordinates.
//   - error: An IO AppError if the file cannot be opened or decoded.
func (c *ImageCache) Load(path string) (image.Image, error) {
	if img, ok := c.get(path); ok {
		return img, nil
	}

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "failed to open plate image", err).
			WithDetail("path", path)
	}

	c.put(path, img)
	return img, nil
}

// LoadPlate loads an image and, when medianRadius > 0, returns a despeckled
// copy produced by Despeckle. Both versions are cached.
func (c *ImageCache) LoadPlate(path string, medianRadius float64) (image.Image, error) {
	if medianRadius <= 0 {
		return c.Load(path)
	}

	key := variantKey(path, medianRadius)
	if img, ok := c.get(key); ok {
		return img, nil
	}

	src, err := c.Load(path)
	if err != nil {
		return nil, err
	}
	img := Despeckle(src, medianRadius)
	c.put(key, img)
	return img, nil
}

// Despeckle removes isolated dust and sensor noise from a plate photograph with
// a median filter of the given radius in pixels.
func Despeckle(img image.Image, radius float64) image.Image {
	return effect.Median(img, radius)
}

func (c *ImageCache) get(key string) (image.Image, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[key]
	return img, ok
}

func (c *ImageCache) put(key string, img image.Image) {
	c.mu.Lock()
	c.images[key] = img
	c.mu.Unlock()
}

func variantKey(path string, medianRadius float64) string {
	return fmt.Sprintf("%s?median=%g", path, medianRadius)
}

// Evict removes an image and all of its despeckled variants.
// If the path is not in the cache, this method does nothing.
func (c *ImageCache) Evict(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.images, path)
	prefix := path + "?"
	for key := range c.images {
		if strings.HasPrefix(key, prefix) {
			delete(c.images, key)
		}
	}
}

// Len returns the number of cached entries, variants included.
func (c *ImageCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.images)
}

// PlateInfo contains metadata about a loaded plate image.
type PlateInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	// Format is detected from the file extension: "png", "jpeg", "gif",
	// "bmp", "tiff" or "unknown".
	Format string `json:"format"`

	// ColorDepth is "8-bit" or "16-bit" per channel.
	ColorDepth string `json:"color_depth"`

	// Grayscale is true for single-channel images, where every reduction
	// policy except luminance yields the same intensities.
	Grayscale bool `json:"grayscale"`

	HasAlpha      bool  `json:"has_alpha"`
	FileSizeBytes int64 `json:"file_size_bytes"`
}

// LoadPlateInfo loads an image into the cache and describes it.
//
// # Color Depth Detection
//
// Color depth is determined by the Go image type:
//   - *image.RGBA64, *image.NRGBA64, *image.Gray16 -> "16-bit"
//   - All other types -> "8-bit"
func LoadPlateInfo(cache *ImageCache, path string) (*PlateInfo, error) {
	img, err := cache.Load(path)
	if err != nil {
		return nil, err
	}

	stat, err := os.Stat(path)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrorTypeIO, "failed to stat file", err)
	}

	format := "unknown"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		format = "png"
	case ".jpg", ".jpeg":
		format = "jpeg"
	case ".gif":
		format = "gif"
	case ".bmp":
		format = "bmp"
	case ".tif", ".tiff":
		format = "tiff"
	}

	info := &PlateInfo{
		Width:         img.Bounds().Dx(),
		Height:        img.Bounds().Dy(),
		Format:        format,
		ColorDepth:    "8-bit",
		FileSizeBytes: stat.Size(),
	}
	switch img.(type) {
	case *image.RGBA, *image.NRGBA:
		info.HasAlpha = true
	case *image.RGBA64, *image.NRGBA64:
		info.HasAlpha = true
		info.ColorDepth = "16-bit"
	case *image.Gray:
		info.Grayscale = true
	case *image.Gray16:
		info.Grayscale = true
		info.ColorDepth = "16-bit"
	}
	return info, nil
}
