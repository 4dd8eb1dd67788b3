package platform

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// File permissions
const (
	DefaultDirPermissions = 0755
)

// MaxFilenameLength bounds sanitized names so deep paths stay portable
const MaxFilenameLength = 100

var (
	invalidFilenameChars = regexp.MustCompile(`[<>:"/\\|?*]`)
	repeatedSpaces       = regexp.MustCompile(`\s+`)
)

// CreateDirectoryIfNotExists creates directory if it doesn't exist
func CreateDirectoryIfNotExists(dirPath string) error {
	if _, err := os.Stat(dirPath); os.IsNotExist(err) {
		return os.MkdirAll(dirPath, DefaultDirPermissions)
	}
	return nil
}

// GetHomeDownloadsDir returns the standard Downloads directory for the user
func GetHomeDownloadsDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, "Downloads"), nil
}

// SanitizeFilename strips characters that are invalid in file names on any
// supported platform, collapses whitespace, and bounds the length.
func SanitizeFilename(name string) string {
	name = invalidFilenameChars.ReplaceAllString(name, "")
	name = repeatedSpaces.ReplaceAllString(name, " ")
	name = strings.TrimSpace(name)
	if len(name) > MaxFilenameLength {
		name = strings.TrimSpace(name[:MaxFilenameLength])
	}
	if name == "" {
		name = "untitled"
	}
	return name
}

// ChapterDirName formats the directory name for a chapter, zero-padded for
// lexicographic ordering. Fractional chapter numbers keep their fraction:
// 3 -> "Chapter 0003", 1.5 -> "Chapter 0001.5".
func ChapterDirName(number float64) string {
	if number == float64(int64(number)) {
		return fmt.Sprintf("Chapter %04d", int64(number))
	}
	whole := int64(number)
	frac := strings.TrimPrefix(fmt.Sprintf("%g", number-float64(whole)), "0")
	return fmt.Sprintf("Chapter %04d%s", whole, frac)
}

// PageFileName formats a page image file name with a stable zero-padded index
func PageFileName(index int, ext string) string {
	if ext == "" {
		ext = ".jpg"
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return fmt.Sprintf("%03d%s", index, ext)
}

// FormatSpeed renders bytes-per-second as a human readable rate
func FormatSpeed(bytesPerSec float64) string {
	switch {
	case bytesPerSec >= 1_000_000:
		return fmt.Sprintf("%.1f MB/s", bytesPerSec/1_000_000)
	case bytesPerSec >= 1_000:
		return fmt.Sprintf("%.1f KB/s", bytesPerSec/1_000)
	default:
		return fmt.Sprintf("%.0f B/s", bytesPerSec)
	}
}
