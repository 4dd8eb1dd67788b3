package platform

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"One Piece", "One Piece"},
		{`A<B>C:D"E/F\G|H?I*J`, "ABCDEFGHIJ"},
		{"  spaced   out  ", "spaced out"},
		{"", "untitled"},
		{"///", "untitled"},
	}

	for _, test := range tests {
		if got := SanitizeFilename(test.input); got != test.expected {
			t.Errorf("SanitizeFilename(%q) = %q, expected %q", test.input, got, test.expected)
		}
	}

	long := SanitizeFilename(strings.Repeat("x", 300))
	if len(long) > MaxFilenameLength {
		t.Errorf("expected length <= %d, got %d", MaxFilenameLength, len(long))
	}
}

func TestChapterDirName(t *testing.T) {
	tests := []struct {
		number   float64
		expected string
	}{
		{1, "Chapter 0001"},
		{42, "Chapter 0042"},
		{1234, "Chapter 1234"},
		{1.5, "Chapter 0001.5"},
		{0, "Chapter 0000"},
		{10.25, "Chapter 0010.25"},
	}

	for _, test := range tests {
		if got := ChapterDirName(test.number); got != test.expected {
			t.Errorf("ChapterDirName(%v) = %q, expected %q", test.number, got, test.expected)
		}
	}
}

func TestPageFileName(t *testing.T) {
	tests := []struct {
		index    int
		ext      string
		expected string
	}{
		{1, ".jpg", "001.jpg"},
		{12, "png", "012.png"},
		{123, "", "123.jpg"},
	}

	for _, test := range tests {
		if got := PageFileName(test.index, test.ext); got != test.expected {
			t.Errorf("PageFileName(%d, %q) = %q, expected %q", test.index, test.ext, got, test.expected)
		}
	}
}

func TestFormatSpeed(t *testing.T) {
	tests := []struct {
		bps      float64
		expected string
	}{
		{512, "512 B/s"},
		{2_048, "2.0 KB/s"},
		{1_500_000, "1.5 MB/s"},
	}

	for _, test := range tests {
		if got := FormatSpeed(test.bps); got != test.expected {
			t.Errorf("FormatSpeed(%v) = %q, expected %q", test.bps, got, test.expected)
		}
	}
}

func TestCreateDirectoryIfNotExists(t *testing.T) {
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "c")

	if err := CreateDirectoryIfNotExists(target); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	info, err := os.Stat(target)
	if err != nil || !info.IsDir() {
		t.Fatalf("expected directory to exist, err=%v", err)
	}

	// calling again on an existing directory is a no-op
	if err := CreateDirectoryIfNotExists(target); err != nil {
		t.Errorf("expected no error on existing dir, got %v", err)
	}
}
