package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// ChunkSize is the size of the reads used when hashing a file.
const ChunkSize = 64 * 1024

// Sum calculates the SHA-256 hash of the file contents and returns
// the hex encoding. The file is read in ChunkSize pieces so that
// large artifacts are never held in memory.
func Sum(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "opening %s", path)
	}
	defer file.Close()

	hash := sha256.New()
	buf := make([]byte, ChunkSize)
	for {
		n, err := file.Read(buf)
		hash.Write(buf[:n])
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", errors.Wrapf(err, "reading %s", path)
		}
	}

	return hex.EncodeToString(hash.Sum(nil)), nil
}

// Verify reports whether the SHA-256 of the file at path matches the
// hex-encoded expected digest. The comparison is case-insensitive.
// A file that cannot be read is never considered verified.
func Verify(path, expected string) (bool, error) {
	actual, err := Sum(path)
	if err != nil {
		return false, err
	}

	return strings.EqualFold(actual, strings.TrimSpace(expected)), nil
}
