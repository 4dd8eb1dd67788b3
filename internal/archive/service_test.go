package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
)

func writePages(t *testing.T, dir string, names ...string) []string {
	t.Helper()
	var paths []string
	for _, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte("data-"+name), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", p, err)
		}
		paths = append(paths, p)
	}
	return paths
}

func TestService_Pack(t *testing.T) {
	base := t.TempDir()
	chapterDir := filepath.Join(base, "Chapter 0001")
	if err := os.MkdirAll(chapterDir, 0755); err != nil {
		t.Fatal(err)
	}
	// written out of order on purpose
	pages := writePages(t, chapterDir, "002.jpg", "001.jpg", "003.jpg")

	archivePath := filepath.Join(base, "Chapter 0001.cbz")
	if err := NewService().Pack(archivePath, pages, false); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	r, err := zip.OpenReader(archivePath)
	if err != nil {
		t.Fatalf("failed to open archive: %v", err)
	}
	defer r.Close()

	if len(r.File) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(r.File))
	}
	order := []string{"001.jpg", "002.jpg", "003.jpg"}
	for i, f := range r.File {
		if f.Name != order[i] {
			t.Errorf("entry %d: expected %s, got %s", i, order[i], f.Name)
		}
	}

	// sources stay when removeSources is false
	if _, err := os.Stat(pages[0]); err != nil {
		t.Errorf("expected source to remain: %v", err)
	}
}

func TestService_PackRemovesSources(t *testing.T) {
	base := t.TempDir()
	chapterDir := filepath.Join(base, "Chapter 0002")
	if err := os.MkdirAll(chapterDir, 0755); err != nil {
		t.Fatal(err)
	}
	pages := writePages(t, chapterDir, "001.jpg", "002.jpg")

	archivePath := filepath.Join(base, "Chapter 0002.cbz")
	if err := NewService().Pack(archivePath, pages, true); err != nil {
		t.Fatalf("Pack failed: %v", err)
	}

	for _, p := range pages {
		if _, err := os.Stat(p); !os.IsNotExist(err) {
			t.Errorf("expected %s removed, err=%v", p, err)
		}
	}
	if _, err := os.Stat(chapterDir); !os.IsNotExist(err) {
		t.Errorf("expected chapter dir removed, err=%v", err)
	}
}

func TestService_PackEmpty(t *testing.T) {
	if err := NewService().Pack(filepath.Join(t.TempDir(), "x.cbz"), nil, false); err == nil {
		t.Error("expected error for empty file list")
	}
}

func TestExtension(t *testing.T) {
	tests := []struct {
		format   string
		expected string
	}{
		{FormatCBZ, ".cbz"},
		{FormatZIP, ".zip"},
		{FormatFolder, ""},
		{"unknown", ""},
	}

	for _, test := range tests {
		if got := Extension(test.format); got != test.expected {
			t.Errorf("Extension(%q) = %q, expected %q", test.format, got, test.expected)
		}
	}
}
