package media

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

const fallbackExt = ".bin"

// preferredExt pins the extension for common media types; mime's table can
// return several (".jpe", ".jfif") in platform-dependent order.
var preferredExt = map[string]string{
	"image/jpeg":      ".jpg",
	"image/png":       ".png",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/heic":      ".heic",
	"video/mp4":       ".mp4",
	"video/quicktime": ".mov",
	"video/webm":      ".webm",
}

// InferExt picks a file extension: URL path suffix first, then the declared
// content type, then ".bin".
func InferExt(rawURL, contentType string) string {
	if u, err := url.Parse(strings.TrimSpace(rawURL)); err == nil {
		ext := strings.ToLower(path.Ext(u.Path))
		if validURLExt(ext) {
			return ext
		}
	}

	ct := mediaType(contentType)
	if ct != "" {
		if ext, ok := preferredExt[ct]; ok {
			return ext
		}
		if exts, err := mime.ExtensionsByType(ct); err == nil && len(exts) > 0 {
			return exts[0]
		}
	}
	return fallbackExt
}

func validURLExt(ext string) bool {
	if len(ext) < 2 || len(ext) > 6 {
		return false
	}
	switch ext {
	case ".php", ".asp", ".aspx", ".cgi", ".jsp", ".html", ".htm":
		return false
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

func mediaType(contentType string) string {
	ct := strings.TrimSpace(contentType)
	if ct == "" {
		return ""
	}
	if mt, _, err := mime.ParseMediaType(ct); err == nil {
		return strings.ToLower(mt)
	}
	return strings.ToLower(strings.TrimSpace(strings.Split(ct, ";")[0]))
}

func isImageExt(ext string) bool {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".heic", ".avif":
		return true
	default:
		return false
	}
}
