// Package safefileio reads and writes files without following symbolic links
// and without exposing partially written files to readers.
package safefileio

import "errors"

var (
	// ErrInvalidFilePath indicates that the specified file path is invalid.
	ErrInvalidFilePath = errors.New("invalid file path")

	// ErrIsSymlink indicates that the specified path is a symbolic link, which is not allowed.
	ErrIsSymlink = errors.New("path is a symbolic link")

	// ErrFileTooLarge indicates that the file exceeds the caller's size limit.
	ErrFileTooLarge = errors.New("file too large")

	// ErrNotRegularFile indicates a device, pipe, directory or other special file.
	ErrNotRegularFile = errors.New("not a regular file")
)
