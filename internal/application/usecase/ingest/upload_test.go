package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tradeocr/internal/domain/model"
)

func TestIsSupported(t *testing.T) {
	tests := map[string]bool{
		"a.png":      true,
		"a.PNG":      true,
		"b.jpeg":     true,
		"c.tiff":     true,
		"d.bmp":      true,
		"e.gif":      false,
		"noext":      false,
		"archive.7z": false,
	}
	for name, want := range tests {
		if got := IsSupported(name); got != want {
			t.Errorf("IsSupported(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"../../etc/passwd.png", "passwd.png"},
		{`C:\Users\me\交易 截图.png`, "交易_截图.png"},
		{"a;b|c.jpg", "abc.jpg"},
		{"..hidden.png", "hidden.png"},
	}
	for _, tt := range tests {
		if got := SanitizeFilename(tt.in); got != tt.want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestStoreUpload(t *testing.T) {
	f := newFixture(t)

	res, err := f.svc.StoreUpload(strings.NewReader(bedaScreenshot), "../交易 截图.PNG")
	if err != nil {
		t.Fatalf("StoreUpload: %v", err)
	}
	if res.Filename != "20250314_150405_交易_截图.PNG" {
		t.Errorf("unexpected filename %q", res.Filename)
	}
	if filepath.Dir(res.FilePath) != f.svc.deps.UploadDir {
		t.Errorf("file stored outside upload dir: %s", res.FilePath)
	}
	b, err := os.ReadFile(res.FilePath)
	if err != nil || string(b) != bedaScreenshot || res.Size != int64(len(bedaScreenshot)) {
		t.Errorf("unexpected stored content: %v", err)
	}

	if _, err := f.svc.StoreUpload(strings.NewReader("x"), "doc.pdf"); !errors.Is(err, model.ErrUnsupportedFormat) {
		t.Errorf("expected ErrUnsupportedFormat, got %v", err)
	}
}
