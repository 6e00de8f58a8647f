package download

import (
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// isRegularFile returns true if path exists and is a regular file.
func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// writeStream copies body into dest through a temporary file that is renamed
// onto dest only once the copy completed. Reads happen in chunkSize pieces.
// On failure the temporary file is removed and dest is left untouched.
func writeStream(dest string, body io.Reader, chunkSize int) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, errors.Wrapf(err, "creating parent directory of %s", dest)
	}

	ongoing, err := os.Create(dest + suffixOngoingDownload)
	if err != nil {
		return 0, errors.Wrapf(err, "creating %s", dest+suffixOngoingDownload)
	}

	// hide ReaderFrom so that the chunk buffer is actually used
	written, err := io.CopyBuffer(struct{ io.Writer }{ongoing}, body, make([]byte, chunkSize))
	if err != nil {
		ongoing.Close()
		os.Remove(ongoing.Name())
		return written, errors.Wrapf(err, "writing %s", ongoing.Name())
	}

	if err := ongoing.Close(); err != nil {
		os.Remove(ongoing.Name())
		return written, errors.Wrapf(err, "closing %s", ongoing.Name())
	}

	if err := os.Rename(ongoing.Name(), dest); err != nil {
		os.Remove(ongoing.Name())
		return written, errors.Wrapf(err, "renaming onto %s", dest)
	}

	return written, nil
}
