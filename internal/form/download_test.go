package form

import (
	"archive/zip"
	"bytes"
	"errors"
	"strings"
	"testing"

	"imagestudio/internal/domain"
)

func TestFilename(t *testing.T) {
	tests := []struct {
		title string
		want  string
	}{
		{title: "Grayscale", want: "Grayscale.png"},
		{title: "Blur Image", want: "Blur Image.png"},
		{title: "../../etc/passwd", want: "_.._etc_passwd.png"},
		{title: `a:b*c?"d"<e>|f\g`, want: "a_b_c__d__e__f_g.png"},
		{title: "Crème brûlée", want: "Creme brulee.png"},
		{title: "line\nbreak", want: "line_break.png"},
		{title: "   ", want: "image.png"},
		{title: "...", want: "image.png"},
		{title: strings.Repeat("x", 150), want: strings.Repeat("x", 100) + ".png"},
	}
	for _, tc := range tests {
		t.Run(tc.title, func(t *testing.T) {
			if got := Filename(tc.title); got != tc.want {
				t.Fatalf("Filename(%q) = %q, want %q", tc.title, got, tc.want)
			}
		})
	}
}

func viewWithResults(t *testing.T, results []domain.ProcessedImage) *View {
	t.Helper()
	proc := &stubProcessor{images: results}
	v := newTestView(proc)
	if err := v.SelectFile("a.png", strings.NewReader("x")); err != nil {
		t.Fatalf("select: %v", err)
	}
	sub, err := v.Submit()
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := sub.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}
	return v
}

func TestDownloadErrors(t *testing.T) {
	v := viewWithResults(t, []domain.ProcessedImage{
		{Title: "Error processing blur", Description: "boom"},
		{Title: "Broken", Image: "%%%"},
	})
	if _, err := v.Download(5); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("out of range error = %v", err)
	}
	if _, err := v.Download(-1); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("negative index error = %v", err)
	}
	if _, err := v.Download(0); !errors.Is(err, domain.ErrNoImage) {
		t.Fatalf("missing image error = %v", err)
	}
	if _, err := v.Download(1); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestDownloadAll(t *testing.T) {
	v := viewWithResults(t, []domain.ProcessedImage{
		{Title: "Blur Image", Image: b64("one")},
		{Title: "Blur Image", Image: b64("two")},
		{Title: "Error processing hsv"},
	})
	raw, err := v.DownloadAll()
	if err != nil {
		t.Fatalf("download all: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	var names []string
	for _, f := range zr.File {
		names = append(names, f.Name)
	}
	if strings.Join(names, "|") != "Blur Image.png|Blur Image (2).png" {
		t.Fatalf("archive entries = %v", names)
	}
}

func TestDownloadAllWithoutImages(t *testing.T) {
	v := newTestView(&stubProcessor{})
	if _, err := v.DownloadAll(); !errors.Is(err, domain.ErrNoImage) {
		t.Fatalf("error = %v, want ErrNoImage", err)
	}
}
