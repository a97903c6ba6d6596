package utils

import (
	"path/filepath"
	"strings"
)

const (
	// MimeTypeJPEG is regular jpgs.
	MimeTypeJPEG = "image/jpeg"

	// MimeTypePNG is regular pngs.
	MimeTypePNG = "image/png"

	// MimeTypeQOI is for .qoi "Quite OK Image" for lossless, fast encoding/decoding.
	MimeTypeQOI = "image/qoi"

	// MimeTypePPM is for binary portable pixmaps.
	MimeTypePPM = "image/x-portable-pixmap"

	// MimeTypeBMP is for windows bitmaps.
	MimeTypeBMP = "image/bmp"

	// MimeTypeTIFF is for tiffs.
	MimeTypeTIFF = "image/tiff"

	// MimeTypeWEBP is for webp images. They can be decoded but not encoded.
	MimeTypeWEBP = "image/webp"
)

var extensionMimeTypes = map[string]string{
	".jpg":  MimeTypeJPEG,
	".jpeg": MimeTypeJPEG,
	".png":  MimeTypePNG,
	".qoi":  MimeTypeQOI,
	".ppm":  MimeTypePPM,
	".bmp":  MimeTypeBMP,
	".tif":  MimeTypeTIFF,
	".tiff": MimeTypeTIFF,
	".webp": MimeTypeWEBP,
}

// MimeTypeFromPath returns the image mime type matching the extension of path, or "" if the
// extension is not an image type we know.
func MimeTypeFromPath(path string) string {
	return extensionMimeTypes[strings.ToLower(filepath.Ext(path))]
}

// ExtensionForMimeType returns the file extension, with its dot, used when writing mimeType.
func ExtensionForMimeType(mimeType string) string {
	switch mimeType {
	case MimeTypeJPEG:
		return ".jpg"
	case MimeTypePNG:
		return ".png"
	case MimeTypeQOI:
		return ".qoi"
	case MimeTypePPM:
		return ".ppm"
	case MimeTypeBMP:
		return ".bmp"
	case MimeTypeTIFF:
		return ".tiff"
	case MimeTypeWEBP:
		return ".webp"
	}
	return ""
}
