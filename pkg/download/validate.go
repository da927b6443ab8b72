package download

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
)

// validateFileFormat checks the magic bytes of a downloaded archive.
// Files whose URL does not name a known archive format are not checked.
func validateFileFormat(filePath, url string) error {
	var check func([]byte) error
	switch {
	case strings.HasSuffix(url, ".tar.gz"), strings.HasSuffix(url, ".tgz"), strings.HasSuffix(url, ".gz"):
		check = validateGzip
	case strings.HasSuffix(url, ".tar.xz"):
		check = validateXz
	case strings.HasSuffix(url, ".zip"):
		check = validateZip
	default:
		return nil
	}

	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file for validation: %w", err)
	}
	defer file.Close()

	header := make([]byte, 512)
	n, err := file.Read(header)
	if err != nil && err != io.EOF {
		return fmt.Errorf("failed to read file header: %w", err)
	}
	header = header[:n]

	if err := detectErrorPage(header); err != nil {
		return err
	}
	return check(header)
}

func validateGzip(header []byte) error {
	if len(header) < 2 || header[0] != 0x1f || header[1] != 0x8b {
		return fmt.Errorf("invalid gzip header")
	}
	return nil
}

func validateZip(header []byte) error {
	if len(header) < 4 || header[0] != 0x50 || header[1] != 0x4b {
		return fmt.Errorf("invalid ZIP header")
	}
	return nil
}

func validateXz(header []byte) error {
	if !bytes.HasPrefix(header, []byte{0xfd, 0x37, 0x7a, 0x58, 0x5a, 0x00}) {
		return fmt.Errorf("invalid XZ header")
	}
	return nil
}

// detectErrorPage recognizes HTML and JSON bodies served in place of an archive
func detectErrorPage(header []byte) error {
	head := bytes.ToLower(header[:min(len(header), 100)])
	if bytes.Contains(head, []byte("<html")) || bytes.Contains(head, []byte("<!doctype")) {
		return fmt.Errorf("received HTML content instead of binary archive (likely an error page)")
	}
	if bytes.HasPrefix(bytes.TrimSpace(header), []byte("{")) {
		return fmt.Errorf("received JSON content instead of binary archive (likely an API error)")
	}
	return nil
}
