package form

import (
	"encoding/base64"
	"mime"
	"strings"
)

// PreviewURL encodes data as a base64 data URL of the given media type.
// Media type parameters are dropped.
func PreviewURL(mediaType string, data []byte) string {
	mt, _, err := mime.ParseMediaType(mediaType)
	if err != nil || strings.TrimSpace(mt) == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(data)
}
