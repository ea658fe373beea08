package source

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// ExtractZip unpacks archivePath into destDir, refusing entries that would
// escape destDir and stopping once the total uncompressed size would exceed
// maxBytes.
func ExtractZip(archivePath, destDir string, maxBytes int64) error {
	reader, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer reader.Close()

	var total int64
	for _, entry := range reader.File {
		// Declared sizes are attacker-controlled, so the copy below is
		// bounded as well.
		total += int64(entry.UncompressedSize64)
		if total > maxBytes {
			return ErrArchiveTooLarge
		}

		target, err := safeJoin(destDir, entry.Name)
		if err != nil {
			return err
		}

		if entry.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}
			continue
		}

		if err := extractFile(entry, target, maxBytes-total+int64(entry.UncompressedSize64)); err != nil {
			return err
		}
	}
	return nil
}

// safeJoin resolves an archive entry name under destDir, rejecting absolute
// paths and .. traversal (zip-slip).
func safeJoin(destDir, name string) (string, error) {
	if filepath.IsAbs(name) {
		return "", fmt.Errorf("entry %q: absolute path not allowed", name)
	}
	target := filepath.Join(destDir, filepath.FromSlash(name))
	if target != destDir && !strings.HasPrefix(target, destDir+string(os.PathSeparator)) {
		return "", fmt.Errorf("entry %q: escapes extraction directory", name)
	}
	return target, nil
}

func extractFile(entry *zip.File, target string, budget int64) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("creating parent directory: %w", err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening entry %q: %w", entry.Name, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(target, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, entry.Mode().Perm())
	if err != nil {
		return fmt.Errorf("creating %q: %w", target, err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, io.LimitReader(src, budget+1))
	if err != nil {
		return fmt.Errorf("extracting %q: %w", entry.Name, err)
	}
	if n > budget {
		return ErrArchiveTooLarge
	}
	return nil
}
