package utils

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// MaxEvidenceImageBytes bounds a decoded evidence image.
const MaxEvidenceImageBytes = 8 << 20

var ErrInvalidDataURL = errors.New("invalid data URL")

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

// DecodeDataURL splits a base64 data URL into its content type and bytes.
// A missing media type defaults to image/jpeg.
func DecodeDataURL(dataURL string) (string, []byte, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, ErrInvalidDataURL
	}
	mediaType, isBase64 := strings.CutSuffix(meta, ";base64")
	if !isBase64 {
		return "", nil, fmt.Errorf("%w: only base64 payloads are accepted", ErrInvalidDataURL)
	}
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidDataURL, err)
	}
	if len(data) > MaxEvidenceImageBytes {
		return "", nil, fmt.Errorf("%w: image is %d bytes, limit %d", ErrInvalidDataURL, len(data), MaxEvidenceImageBytes)
	}
	return mediaType, data, nil
}

// EncodeDataURL builds a data URL from raw bytes, sniffing the content type.
func EncodeDataURL(data []byte) string {
	return "data:" + http.DetectContentType(data) + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// ReadImageAsDataURL loads an image file for evidence submission.
func ReadImageAsDataURL(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.Size() > MaxEvidenceImageBytes {
		return "", fmt.Errorf("%s is %d bytes, limit %d", path, info.Size(), MaxEvidenceImageBytes)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return EncodeDataURL(data), nil
}

// ImageExtension maps an image content type to a file extension.
func ImageExtension(contentType string) string {
	switch strings.ToLower(contentType) {
	case "image/png":
		return ".png"
	case "image/webp":
		return ".webp"
	case "image/gif":
		return ".gif"
	default:
		return ".jpg"
	}
}
