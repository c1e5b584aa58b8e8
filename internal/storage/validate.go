package storage

import (
	"errors"
	"net/http"
	"path/filepath"
	"strings"
)

var ErrUnsupportedImage = errors.New("only JPG, PNG, GIF and WEBP images are supported")

var allowedExt = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedMime = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// ValidateImage checks the extension and the sniffed content type of
// head against the image whitelist and returns the detected mime type.
func ValidateImage(filename string, head []byte) (string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedExt[ext] {
		return "", ErrUnsupportedImage
	}

	detected := http.DetectContentType(head)
	if allowedMime[detected] {
		return detected, nil
	}
	return "", ErrUnsupportedImage
}
