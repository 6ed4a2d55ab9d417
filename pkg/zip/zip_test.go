package zip

import (
	"archive/zip"
	"bytes"
	"io"
	"testing"
)

func TestArchiveAssetsRoundTrip(t *testing.T) {
	assets := []Asset{
		{Filename: "Grayscale.png", MIME: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}},
		{Filename: "notes.txt", MIME: "text/plain", Data: []byte("hello hello hello")},
	}
	raw, err := ArchiveAssets(assets)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != len(assets) {
		t.Fatalf("entries = %d, want %d", len(zr.File), len(assets))
	}
	for i, f := range zr.File {
		if f.Name != assets[i].Filename {
			t.Fatalf("entry %d name = %q, want %q", i, f.Name, assets[i].Filename)
		}
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open entry: %v", err)
		}
		got, _ := io.ReadAll(rc)
		rc.Close()
		if !bytes.Equal(got, assets[i].Data) {
			t.Fatalf("entry %q content mismatch", f.Name)
		}
	}
	if zr.File[0].Method != zip.Store {
		t.Fatalf("png entries should be stored, got method %d", zr.File[0].Method)
	}
}

func TestArchiveAssetsEmpty(t *testing.T) {
	raw, err := ArchiveAssets(nil)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	zr, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 0 {
		t.Fatalf("expected empty archive")
	}
}
