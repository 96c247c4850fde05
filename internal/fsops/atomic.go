package fsops

import (
	"os"
	"path/filepath"
)

// writeFileAtomic writes content using the temp file + rename pattern so a crash
// mid-write leaves the previous content intact. A symlink at path is replaced, not
// written through.
func writeFileAtomic(path string, content []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)

	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return &TempFileError{Dir: dir, Cause: err}
	}

	tmpPath := tmpFile.Name()
	needsCleanup := true

	defer func() {
		if tmpFile != nil {
			_ = tmpFile.Close()
		}
		if needsCleanup {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(content); err != nil {
		return &TempWriteError{Path: tmpPath, Cause: err}
	}

	// Close before rename (required on Windows)
	if err := tmpFile.Close(); err != nil {
		tmpFile = nil
		return &TempWriteError{Path: tmpPath, Cause: err}
	}
	tmpFile = nil

	if err := os.Chmod(tmpPath, perm); err != nil {
		return &ChmodError{Path: tmpPath, Mode: perm, Cause: err}
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return &RenameError{Old: tmpPath, New: path, Cause: err}
	}
	needsCleanup = false

	return nil
}
