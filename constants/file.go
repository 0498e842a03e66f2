package constants

import (
	"mime"
	"strings"
)

// Document formats understood by the extraction chain.
const (
	PDF   = "PDF"
	IMAGE = "IMAGE"
)

// FileTypes holds the allowed values for the format column.
var FileTypes = []string{PDF, IMAGE}

// AllowedMIMETypes is the upload allow-list.
var AllowedMIMETypes = map[string]string{
	"application/pdf": PDF,
	"image/jpeg":      IMAGE,
	"image/png":       IMAGE,
	"image/tiff":      IMAGE,
}

// AllowedExtensions maps accepted file extensions to their canonical MIME type.
var AllowedExtensions = map[string]string{
	"pdf":  "application/pdf",
	"jpg":  "image/jpeg",
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"tif":  "image/tiff",
	"tiff": "image/tiff",
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

// NormalizeMIME lowercases a MIME type and drops parameters ("; charset=...").
// image/jpg and image/tif are common misspellings and are folded into the canonical names.
func NormalizeMIME(m string) string {
	m = strings.TrimSpace(m)
	if mt, _, err := mime.ParseMediaType(m); err == nil {
		m = mt
	}
	m = strings.ToLower(m)
	switch m {
	case "image/jpg", "image/pjpeg":
		return "image/jpeg"
	case "image/tif":
		return "image/tiff"
	}
	return m
}

// IsAllowedMIME reports whether m is on the upload allow-list.
func IsAllowedMIME(m string) bool {
	_, ok := AllowedMIMETypes[NormalizeMIME(m)]
	return ok
}

// MapMIMEToFormat returns PDF or IMAGE, or "" for anything off the allow-list.
func MapMIMEToFormat(m string) string {
	return AllowedMIMETypes[NormalizeMIME(m)]
}

// MIMEFromExt returns the canonical MIME type for a file extension, or "".
func MIMEFromExt(ext string) string {
	return AllowedExtensions[NormalizeExt(ext)]
}

// ExtFromMIME returns a file extension (without dot) for an allowed MIME type.
func ExtFromMIME(m string) string {
	switch NormalizeMIME(m) {
	case "application/pdf":
		return "pdf"
	case "image/jpeg":
		return "jpg"
	case "image/png":
		return "png"
	case "image/tiff":
		return "tiff"
	}
	return "bin"
}
