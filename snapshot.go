package scanview

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"
	"os"
)

const pngDataURLPrefix = "data:image/png;base64,"

// EncodeDataURL encodes img as a PNG data URL.
func EncodeDataURL(img image.Image) (string, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// DecodeDataURL returns the PNG bytes of a data URL made by EncodeDataURL.
func DecodeDataURL(url string) ([]byte, error) {
	if len(url) < len(pngDataURLPrefix) || url[:len(pngDataURLPrefix)] != pngDataURLPrefix {
		return nil, fmt.Errorf("not a png data url")
	}
	return base64.StdEncoding.DecodeString(url[len(pngDataURLPrefix):])
}

// WriteSnapshot stores the PNG behind a data URL at path.
func WriteSnapshot(path, url string) error {
	data, err := DecodeDataURL(url)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}
