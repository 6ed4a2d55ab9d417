package domain

import (
	"fmt"
	"strings"
)

// Tag identifies one of the server-side image transformations.
type Tag string

const (
	TagGreyscale Tag = "greyscale"
	TagContrast  Tag = "contrast"
	TagHSV       Tag = "hsv"
	TagEdges     Tag = "edges"
	TagSharpen   Tag = "sharpen"
	TagBlur      Tag = "blur"
)

// Transformation pairs a tag with the label shown next to its checkbox.
type Transformation struct {
	Tag   Tag
	Label string
}

var catalog = []Transformation{
	{Tag: TagGreyscale, Label: "Grayscale"},
	{Tag: TagContrast, Label: "Increase Contrast"},
	{Tag: TagHSV, Label: "HSV Conversion"},
	{Tag: TagEdges, Label: "Edge Detection"},
	{Tag: TagSharpen, Label: "Sharpen Image"},
	{Tag: TagBlur, Label: "Blur Image"},
}

// Catalog returns the fixed set of transformations in display order.
func Catalog() []Transformation {
	out := make([]Transformation, len(catalog))
	copy(out, catalog)
	return out
}

// ParseTag normalizes user input into a catalog tag.
func ParseTag(raw string) (Tag, error) {
	candidate := Tag(strings.ToLower(strings.TrimSpace(raw)))
	for _, t := range catalog {
		if t.Tag == candidate {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTag, raw)
}

// Label returns the display label for the tag, or the raw identifier for tags
// outside the catalog.
func (t Tag) Label() string {
	for _, tr := range catalog {
		if tr.Tag == t {
			return tr.Label
		}
	}
	return string(t)
}
