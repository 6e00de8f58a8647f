// Package unpack extracts verified archives into a target directory.
package unpack

import (
	"archive/zip"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/pkg/errors"
)

var (
	ErrIllegalPath = errors.New("archive entry escapes the target directory")
	ErrUnsupported = errors.New("unsupported archive entry")
)

var zipMagic = [][]byte{
	[]byte("PK\x03\x04"),
	[]byte("PK\x05\x06"), // empty archive
}

// IsZip reports whether the file looks like a zip archive, either by its
// extension or by its leading magic bytes.
func IsZip(path string) bool {
	if strings.EqualFold(filepath.Ext(path), ".zip") {
		return true
	}

	file, err := os.Open(path)
	if err != nil {
		return false
	}
	defer file.Close()

	head := make([]byte, 4)
	if _, err := io.ReadFull(file, head); err != nil {
		return false
	}

	for _, magic := range zipMagic {
		if bytes.Equal(head, magic) {
			return true
		}
	}

	return false
}

// Zip extracts every entry of the archive into targetDir, preserving the
// relative paths stored in the archive. It returns the paths written.
// Entries that are absolute or climb out of targetDir are rejected with
// ErrIllegalPath before anything else is written for them.
func Zip(archivePath, targetDir string) ([]string, error) {
	reader, err := zip.OpenReader(archivePath)
	if errors.Is(err, zip.ErrInsecurePath) {
		reader.Close()
		return nil, errors.Wrapf(ErrIllegalPath, "zip %s", archivePath)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening zip %s", archivePath)
	}
	defer reader.Close()

	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", targetDir)
	}

	var written []string
	for _, entry := range reader.File {
		name := filepath.FromSlash(entry.Name)
		if !filepath.IsLocal(name) {
			return written, errors.Wrapf(ErrIllegalPath, "entry %q", entry.Name)
		}

		target, err := securejoin.SecureJoin(targetDir, name)
		if err != nil {
			return written, errors.Wrapf(err, "resolving entry %q", entry.Name)
		}

		mode := entry.Mode()
		switch {
		case mode.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return written, errors.Wrapf(err, "creating directory %s", target)
			}
		case mode.IsRegular():
			if err := extractFile(entry, target); err != nil {
				return written, err
			}
			written = append(written, target)
		default:
			return written, errors.Wrapf(ErrUnsupported, "entry %q with mode %s", entry.Name, mode)
		}
	}

	return written, nil
}

func extractFile(entry *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return errors.Wrapf(err, "creating parent of %s", target)
	}

	src, err := entry.Open()
	if err != nil {
		return errors.Wrapf(err, "opening entry %q", entry.Name)
	}
	defer src.Close()

	perm := entry.Mode().Perm()
	if perm == 0 {
		perm = 0o644
	}

	out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return errors.Wrapf(err, "creating %s", target)
	}

	if _, err := io.Copy(out, src); err != nil {
		out.Close() // closed manually since this runs once per entry
		return errors.Wrapf(err, "writing %s", target)
	}

	return errors.Wrapf(out.Close(), "closing %s", target)
}
