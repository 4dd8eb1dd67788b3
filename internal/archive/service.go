// Package archive packs downloaded chapter pages into comic archives.
// CBZ and ZIP are both plain zip containers; the extension is the format.
package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
)

// Output format names as exposed through connector option schemas
const (
	FormatCBZ    = "CBZ"
	FormatZIP    = "ZIP"
	FormatFolder = "Folder"
)

// Extension returns the archive file extension for a format, or "" when the
// format keeps a plain folder.
func Extension(format string) string {
	switch format {
	case FormatCBZ:
		return ".cbz"
	case FormatZIP:
		return ".zip"
	default:
		return ""
	}
}

// Service creates zip-container archives from page files
type Service struct{}

// NewService creates a new archive packer
func NewService() Packer {
	return &Service{}
}

// Pack writes pageFiles into a zip archive at archivePath, storing entries in
// sorted name order so readers page through them correctly. With
// removeSources set, source files and their parent directory are removed
// after the archive is written.
func (s *Service) Pack(archivePath string, pageFiles []string, removeSources bool) error {
	if len(pageFiles) == 0 {
		return fmt.Errorf("no files to pack into %s", archivePath)
	}

	sorted := append([]string(nil), pageFiles...)
	sort.Strings(sorted)

	out, err := os.Create(archivePath)
	if err != nil {
		return fmt.Errorf("failed to create archive %s: %w", archivePath, err)
	}

	zw := zip.NewWriter(out)
	for _, page := range sorted {
		if err := addFile(zw, page); err != nil {
			zw.Close()
			out.Close()
			os.Remove(archivePath)
			return err
		}
	}
	if err := zw.Close(); err != nil {
		out.Close()
		os.Remove(archivePath)
		return fmt.Errorf("failed to finalize archive %s: %w", archivePath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("failed to close archive %s: %w", archivePath, err)
	}

	if removeSources {
		for _, page := range sorted {
			os.Remove(page)
		}
		if len(sorted) > 0 {
			// removes the chapter dir only once it is empty
			os.Remove(filepath.Dir(sorted[0]))
		}
	}
	return nil
}

func addFile(zw *zip.Writer, path string) error {
	in, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer in.Close()

	w, err := zw.Create(filepath.Base(path))
	if err != nil {
		return fmt.Errorf("failed to add %s to archive: %w", path, err)
	}
	if _, err := io.Copy(w, in); err != nil {
		return fmt.Errorf("failed to write %s to archive: %w", path, err)
	}
	return nil
}
