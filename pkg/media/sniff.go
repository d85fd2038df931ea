package media

import (
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"

	_ "golang.org/x/image/webp"
)

// sniffImage decodes just the image header of path and returns the matching
// extension and content type, or empty strings when it is not a known image.
func sniffImage(path string) (string, string) {
	fh, err := os.Open(path)
	if err != nil {
		return "", ""
	}
	defer fh.Close()

	cfg, format, err := image.DecodeConfig(fh)
	if err != nil || cfg.Width <= 0 || cfg.Height <= 0 {
		return "", ""
	}
	switch format {
	case "jpeg":
		return ".jpg", "image/jpeg"
	case "png":
		return ".png", "image/png"
	case "gif":
		return ".gif", "image/gif"
	case "webp":
		return ".webp", "image/webp"
	default:
		return "", ""
	}
}
