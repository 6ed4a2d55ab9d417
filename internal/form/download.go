package form

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"imagestudio/internal/domain"
	"imagestudio/pkg/zip"
)

const maxFilenameRunes = 100

// Download is a decoded result ready to be saved by the client.
type Download struct {
	Filename string
	MIME     string
	Data     []byte
}

// Download decodes the record at index into a PNG named after its title.
func (v *View) Download(index int) (Download, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return Download{}, ErrViewClosed
	}
	v.touch()
	if index < 0 || index >= len(v.results) {
		v.mu.Unlock()
		return Download{}, fmt.Errorf("form: result %d: %w", index, domain.ErrNotFound)
	}
	rec := v.results[index]
	v.mu.Unlock()

	data, err := rec.Decode()
	if err != nil {
		return Download{}, err
	}
	return Download{Filename: Filename(rec.Title), MIME: "image/png", Data: data}, nil
}

// DownloadAll packs every decodable result into a zip archive. Records
// without an image are skipped.
func (v *View) DownloadAll() ([]byte, error) {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil, ErrViewClosed
	}
	v.touch()
	results := append([]domain.ProcessedImage(nil), v.results...)
	v.mu.Unlock()

	seen := make(map[string]int, len(results))
	assets := make([]zip.Asset, 0, len(results))
	for _, rec := range results {
		data, err := rec.Decode()
		if err != nil {
			continue
		}
		assets = append(assets, zip.Asset{
			Filename: uniqueName(Filename(rec.Title), seen),
			MIME:     "image/png",
			Data:     data,
		})
	}
	if len(assets) == 0 {
		return nil, domain.ErrNoImage
	}
	return zip.ArchiveAssets(assets)
}

// Filename turns a record title into a safe file name with a .png extension.
func Filename(title string) string {
	fold := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(fold, title)
	if err != nil {
		folded = title
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == utf8.RuneError, unicode.IsControl(r), strings.ContainsRune(`/\:*?"<>|`, r):
			b.WriteRune('_')
		default:
			b.WriteRune(r)
		}
	}
	name := strings.Trim(strings.TrimSpace(b.String()), ". ")
	if utf8.RuneCountInString(name) > maxFilenameRunes {
		name = strings.TrimSpace(string([]rune(name)[:maxFilenameRunes]))
	}
	if name == "" {
		name = "image"
	}
	return name + ".png"
}

func uniqueName(name string, seen map[string]int) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	base := strings.TrimSuffix(name, ".png")
	for {
		candidate := base + " (" + strconv.Itoa(seen[name]) + ").png"
		if _, taken := seen[candidate]; !taken {
			seen[candidate] = 1
			return candidate
		}
		seen[name]++
	}
}
