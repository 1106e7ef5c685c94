package safefileio

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// DefaultMaxFileSize bounds ReadFile when the caller passes no limit (128 MiB).
const DefaultMaxFileSize = 128 * 1024 * 1024

// Open opens filePath read-only with O_NOFOLLOW and verifies that no parent
// directory is a symlink and that the target is a regular file. The checks
// run on the opened descriptor, so a swap between check and use is detected.
func Open(filePath string) (*os.File, error) {
	return openFile(filePath, os.O_RDONLY, 0)
}

// OpenAppend opens filePath for appending, creating it with perm if needed.
// It applies the same symlink and file type checks as Open.
func OpenAppend(filePath string, perm os.FileMode) (*os.File, error) {
	return openFile(filePath, os.O_WRONLY|os.O_APPEND|os.O_CREATE, perm)
}

func openFile(filePath string, flag int, perm os.FileMode) (*os.File, error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}

	// #nosec G304 - absPath is cleaned above and opened with O_NOFOLLOW
	file, err := os.OpenFile(absPath, flag|syscall.O_NOFOLLOW, perm)
	if err != nil {
		if isNoFollowError(err) {
			return nil, fmt.Errorf("%w: %s", ErrIsSymlink, absPath)
		}
		return nil, err
	}

	if err := verifyPathComponents(absPath); err != nil {
		closeQuietly(file)
		return nil, err
	}
	if _, err := validateFile(file, absPath); err != nil {
		closeQuietly(file)
		return nil, err
	}
	return file, nil
}

// ReadFile reads a whole file through Open. Files larger than maxSize bytes
// fail with ErrFileTooLarge; maxSize <= 0 selects DefaultMaxFileSize.
func ReadFile(filePath string, maxSize int64) ([]byte, error) {
	if maxSize <= 0 {
		maxSize = DefaultMaxFileSize
	}

	file, err := Open(filePath)
	if err != nil {
		return nil, err
	}
	defer closeQuietly(file)

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if info.Size() > maxSize {
		return nil, fmt.Errorf("%w: %s is %d bytes, limit %d", ErrFileTooLarge, filePath, info.Size(), maxSize)
	}

	// The size may change after Stat; read one extra byte to notice growth.
	content, err := io.ReadAll(io.LimitReader(file, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if int64(len(content)) > maxSize {
		return nil, fmt.Errorf("%w: %s exceeds %d bytes", ErrFileTooLarge, filePath, maxSize)
	}
	return content, nil
}

// WriteFileAtomic replaces filePath with content. Data goes to a temporary
// file in the same directory, is synced, and is renamed over the target, so
// readers see either the old or the new content. A symlink at filePath is
// refused rather than followed.
func WriteFileAtomic(filePath string, content []byte, perm os.FileMode) (err error) {
	absPath, err := filepath.Abs(filePath)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidFilePath, err)
	}
	dir := filepath.Dir(absPath)

	if err := verifyPathComponents(absPath); err != nil {
		return err
	}
	if fi, err := os.Lstat(absPath); err == nil {
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrIsSymlink, absPath)
		}
		if !fi.Mode().IsRegular() {
			return fmt.Errorf("%w: %s", ErrNotRegularFile, absPath)
		}
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(absPath)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() {
		if err != nil {
			if removeErr := os.Remove(tmpPath); removeErr != nil && !os.IsNotExist(removeErr) {
				slog.Warn("Failed to remove temporary file", slog.String("path", tmpPath), slog.Any("error", removeErr))
			}
		}
	}()

	if _, err = tmp.Write(content); err != nil {
		closeQuietly(tmp)
		return fmt.Errorf("failed to write to %s: %w", tmpPath, err)
	}
	if err = tmp.Chmod(perm); err != nil {
		closeQuietly(tmp)
		return fmt.Errorf("failed to set permissions on %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		closeQuietly(tmp)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err = os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("failed to replace %s: %w", absPath, err)
	}
	return nil
}

// verifyPathComponents checks that no directory above absPath is a symlink.
func verifyPathComponents(absPath string) error {
	current := filepath.Dir(absPath)
	for {
		parent := filepath.Dir(current)
		if parent == current {
			return nil
		}

		fi, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("failed to stat %s: %w", current, err)
		}
		if fi.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s", ErrIsSymlink, current)
		}
		current = parent
	}
}

// validateFile checks through the descriptor that the file is a regular file.
func validateFile(file *os.File, filePath string) (os.FileInfo, error) {
	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}
	if !fileInfo.Mode().IsRegular() {
		return nil, fmt.Errorf("%w: %s", ErrNotRegularFile, filePath)
	}
	return fileInfo, nil
}

func closeQuietly(file *os.File) {
	if err := file.Close(); err != nil {
		slog.Warn("Failed to close file", slog.String("path", file.Name()), slog.Any("error", err))
	}
}
