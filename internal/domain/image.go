package domain

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// ProcessedImage is one result returned by the backend for an applied
// transformation. Image carries a base64 encoded PNG and is empty when the
// backend could not produce the transformation.
type ProcessedImage struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// HasImage reports whether the record carries an image payload.
func (p ProcessedImage) HasImage() bool {
	return strings.TrimSpace(p.Image) != ""
}

// DataURL returns the payload as an inline PNG data URL.
func (p ProcessedImage) DataURL() string {
	if !p.HasImage() {
		return ""
	}
	return "data:image/png;base64," + strings.TrimSpace(p.Image)
}

// Decode returns the raw PNG bytes of the record.
func (p ProcessedImage) Decode() ([]byte, error) {
	if !p.HasImage() {
		return nil, ErrNoImage
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(p.Image))
	if err != nil {
		return nil, fmt.Errorf("decode image %q: %w", p.Title, err)
	}
	return data, nil
}
