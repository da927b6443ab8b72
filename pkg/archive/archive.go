package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/e5r/dev/pkg/util"
)

// Archive format identifiers
const (
	FormatZip   = "zip"
	FormatTarGz = "tar.gz"
	FormatTarXz = "tar.xz"
	FormatTar   = "tar"
)

// extensions is ordered so that compound extensions match first
var extensions = []struct {
	ext    string
	format string
}{
	{".tar.gz", FormatTarGz},
	{".tgz", FormatTarGz},
	{".tar.xz", FormatTarXz},
	{".tar", FormatTar},
	{".zip", FormatZip},
}

// DetectFormat returns the archive format of a file name, or "" when the
// extension is not a recognized archive
func DetectFormat(name string) string {
	lower := strings.ToLower(name)
	for _, e := range extensions {
		if strings.HasSuffix(lower, e.ext) {
			return e.format
		}
	}
	return ""
}

// IsArchive reports whether name has a recognized archive extension
func IsArchive(name string) bool {
	return DetectFormat(name) != ""
}

// TrimExtension removes a recognized archive extension from a file name
func TrimExtension(name string) string {
	lower := strings.ToLower(name)
	for _, e := range extensions {
		if strings.HasSuffix(lower, e.ext) {
			return name[:len(name)-len(e.ext)]
		}
	}
	return name
}

// Extract unpacks src into dest, keeping the archive layout as is
func Extract(src, dest string) error {
	if err := os.MkdirAll(dest, 0755); err != nil {
		return fmt.Errorf("failed to create destination directory: %w", err)
	}

	switch format := DetectFormat(src); format {
	case FormatZip:
		return extractZip(src, dest)
	case FormatTarGz:
		return extractTarGz(src, dest)
	case FormatTar:
		return extractTarFile(src, dest)
	case FormatTarXz:
		return extractTarXz(src, dest)
	default:
		return fmt.Errorf("unsupported archive type: %s", filepath.Base(src))
	}
}

// safeJoin joins name under dest and rejects paths escaping it
func safeJoin(dest, name string) (string, error) {
	target := filepath.Join(dest, name)
	rel, err := filepath.Rel(dest, target)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid file path in archive: %s", name)
	}
	return target, nil
}

func extractZip(src, dest string) error {
	reader, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("failed to open ZIP archive: %w", err)
	}
	defer reader.Close()

	for _, file := range reader.File {
		targetPath, err := safeJoin(dest, file.Name)
		if err != nil {
			return err
		}

		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", targetPath, err)
			}
			continue
		}

		if err := extractZipEntry(file, targetPath); err != nil {
			return fmt.Errorf("failed to extract file %s: %w", targetPath, err)
		}
	}
	return nil
}

func extractZipEntry(file *zip.File, targetPath string) error {
	reader, err := file.Open()
	if err != nil {
		return err
	}
	defer reader.Close()

	return writeFile(reader, targetPath, file.FileInfo().Mode())
}

func extractTarGz(src, dest string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	gzReader, err := gzip.NewReader(file)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzReader.Close()

	return extractTar(tar.NewReader(gzReader), dest)
}

func extractTarFile(src, dest string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer file.Close()

	return extractTar(tar.NewReader(file), dest)
}

func extractTar(tarReader *tar.Reader, dest string) error {
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read tar header: %w", err)
		}

		targetPath, err := safeJoin(dest, header.Name)
		if err != nil {
			return err
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(targetPath, 0755); err != nil {
				return fmt.Errorf("failed to create directory %s: %w", targetPath, err)
			}
		case tar.TypeReg:
			if err := writeFile(tarReader, targetPath, os.FileMode(header.Mode)); err != nil {
				return fmt.Errorf("failed to extract file %s: %w", targetPath, err)
			}
		case tar.TypeSymlink:
			if err := createSymlink(dest, header.Linkname, targetPath); err != nil {
				return fmt.Errorf("failed to create symlink %s: %w", targetPath, err)
			}
		default:
			util.LogVerbose("Skipping unsupported file type %d for %s", header.Typeflag, header.Name)
		}
	}
}

func writeFile(r io.Reader, targetPath string, mode os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return err
	}

	// owner must be able to write so later cleanup works
	mode = mode.Perm() | 0200

	file, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	if _, err := io.Copy(file, r); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// createSymlink creates a link whose target stays inside dest
func createSymlink(dest, linkname, targetPath string) error {
	if filepath.IsAbs(linkname) {
		return fmt.Errorf("absolute symlink target %s", linkname)
	}
	rel, err := filepath.Rel(dest, targetPath)
	if err != nil {
		return err
	}
	if _, err := safeJoin(dest, filepath.Join(filepath.Dir(rel), linkname)); err != nil {
		return fmt.Errorf("symlink target %s escapes the archive", linkname)
	}

	if err := os.MkdirAll(filepath.Dir(targetPath), 0755); err != nil {
		return err
	}
	if _, err := os.Lstat(targetPath); err == nil {
		if err := os.RemoveAll(targetPath); err != nil {
			return fmt.Errorf("failed to remove existing file %s: %w", targetPath, err)
		}
	}
	return os.Symlink(linkname, targetPath)
}

// extractTarXz delegates to the system tar command
func extractTarXz(src, dest string) error {
	cmd := exec.Command("tar", "-xJf", src, "-C", dest)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("failed to extract tar.xz file: %w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
