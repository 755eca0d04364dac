package util

import (
	"mime"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// DetectContentType sniffs the MIME type of the given data
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}

// NormalizeMIME strips parameters and lowercases a Content-Type value
func NormalizeMIME(contentType string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		return mediaType
	}
	return strings.ToLower(strings.TrimSpace(contentType))
}

// IsImageMIME checks if the MIME type is an image format the extractors can open
func IsImageMIME(contentType string) bool {
	switch NormalizeMIME(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/webp", "image/gif", "image/tiff", "image/bmp", "image/heif", "image/heic", "image/avif":
		return true
	default:
		return false
	}
}

// GetImageExtension returns the file extension for a given MIME type
func GetImageExtension(contentType string) string {
	switch NormalizeMIME(contentType) {
	case "image/jpeg", "image/jpg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	case "image/tiff":
		return ".tiff"
	case "image/bmp":
		return ".bmp"
	case "image/heif", "image/heic":
		return ".heif"
	case "image/avif":
		return ".avif"
	default:
		return ".bin"
	}
}

// GetMIMEFromExtension returns the MIME type for a file extension
func GetMIMEFromExtension(ext string) string {
	return mime.TypeByExtension(ext)
}
