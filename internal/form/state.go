package form

import "imagestudio/internal/domain"

// State is an immutable copy of a view used by the renderer.
type State struct {
	ID         string
	FileName   string
	HasFile    bool
	PreviewURL string
	Tags       []domain.Tag
	Results    []domain.ProcessedImage
	Loading    bool
	Notice     *Notice
}

// Selected reports whether tag is checked.
func (s State) Selected(tag domain.Tag) bool {
	for _, t := range s.Tags {
		if t == tag {
			return true
		}
	}
	return false
}
