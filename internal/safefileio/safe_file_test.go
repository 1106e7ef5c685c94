//go:build test

package safefileio

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// safeTempDir creates a temporary directory and resolves any symlinks in its path
// to ensure consistent behavior across different environments.
func safeTempDir(t *testing.T) string {
	t.Helper()
	realPath, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err, "Failed to resolve symlinks in temp dir")
	return realPath
}

func TestReadFile(t *testing.T) {
	tests := []struct {
		name    string
		setup   func(t *testing.T) string
		maxSize int64
		want    []byte
		errType error
		wantErr bool
	}{
		{
			name: "regular file",
			setup: func(t *testing.T) string {
				p := filepath.Join(safeTempDir(t), "sample.bin")
				require.NoError(t, os.WriteFile(p, []byte("MZ\x90\x00"), 0o600))
				return p
			},
			want: []byte("MZ\x90\x00"),
		},
		{
			name: "file at the size limit",
			setup: func(t *testing.T) string {
				p := filepath.Join(safeTempDir(t), "exact.bin")
				require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{1}, 16), 0o600))
				return p
			},
			maxSize: 16,
			want:    bytes.Repeat([]byte{1}, 16),
		},
		{
			name: "file over the size limit",
			setup: func(t *testing.T) string {
				p := filepath.Join(safeTempDir(t), "big.bin")
				require.NoError(t, os.WriteFile(p, bytes.Repeat([]byte{1}, 17), 0o600))
				return p
			},
			maxSize: 16,
			wantErr: true,
			errType: ErrFileTooLarge,
		},
		{
			name: "symlink to a file",
			setup: func(t *testing.T) string {
				dir := safeTempDir(t)
				target := filepath.Join(dir, "target.bin")
				require.NoError(t, os.WriteFile(target, []byte("x"), 0o600))
				link := filepath.Join(dir, "link.bin")
				require.NoError(t, os.Symlink(target, link))
				return link
			},
			wantErr: true,
			errType: ErrIsSymlink,
		},
		{
			name: "file under a symlinked directory",
			setup: func(t *testing.T) string {
				dir := safeTempDir(t)
				realDir := filepath.Join(dir, "real")
				require.NoError(t, os.Mkdir(realDir, 0o755))
				require.NoError(t, os.WriteFile(filepath.Join(realDir, "f.bin"), []byte("x"), 0o600))
				linkDir := filepath.Join(dir, "linked")
				require.NoError(t, os.Symlink(realDir, linkDir))
				return filepath.Join(linkDir, "f.bin")
			},
			wantErr: true,
			errType: ErrIsSymlink,
		},
		{
			name: "directory",
			setup: func(t *testing.T) string {
				return safeTempDir(t)
			},
			wantErr: true,
			errType: ErrNotRegularFile,
		},
		{
			name: "missing file",
			setup: func(t *testing.T) string {
				return filepath.Join(safeTempDir(t), "absent.bin")
			},
			wantErr: true,
			errType: os.ErrNotExist,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFile(tt.setup(t), tt.maxSize)
			if tt.wantErr {
				require.Error(t, err)
				if tt.errType != nil {
					assert.ErrorIs(t, err, tt.errType)
				}
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpen_ReturnsReadableFile(t *testing.T) {
	p := filepath.Join(safeTempDir(t), "corpus.jsonl")
	require.NoError(t, os.WriteFile(p, []byte("{}\n"), 0o600))

	f, err := Open(p)
	require.NoError(t, err)
	defer f.Close()

	buf := make([]byte, 3)
	n, err := f.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, "{}\n", string(buf[:n]))
}

func TestWriteFileAtomic(t *testing.T) {
	t.Run("creates a new file", func(t *testing.T) {
		p := filepath.Join(safeTempDir(t), "model.json")

		require.NoError(t, WriteFileAtomic(p, []byte(`{"a":1}`), 0o640))

		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(got))
		fi, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o640), fi.Mode().Perm())
	})

	t.Run("replaces an existing file and leaves no temporary files", func(t *testing.T) {
		dir := safeTempDir(t)
		p := filepath.Join(dir, "model.json")
		require.NoError(t, os.WriteFile(p, []byte("old"), 0o600))

		require.NoError(t, WriteFileAtomic(p, []byte("new"), 0o600))

		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "new", string(got))
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		assert.Len(t, entries, 1)
	})

	t.Run("refuses a symlink target", func(t *testing.T) {
		dir := safeTempDir(t)
		target := filepath.Join(dir, "target.json")
		require.NoError(t, os.WriteFile(target, []byte("keep"), 0o600))
		link := filepath.Join(dir, "model.json")
		require.NoError(t, os.Symlink(target, link))

		err := WriteFileAtomic(link, []byte("new"), 0o600)
		assert.ErrorIs(t, err, ErrIsSymlink)

		got, err := os.ReadFile(target)
		require.NoError(t, err)
		assert.Equal(t, "keep", string(got))
	})

	t.Run("refuses a directory target", func(t *testing.T) {
		dir := safeTempDir(t)
		err := WriteFileAtomic(dir, []byte("x"), 0o600)
		assert.ErrorIs(t, err, ErrNotRegularFile)
	})

	t.Run("missing parent directory", func(t *testing.T) {
		p := filepath.Join(safeTempDir(t), "absent", "model.json")
		assert.Error(t, WriteFileAtomic(p, []byte("x"), 0o600))
	})
}

func TestOpenAppend(t *testing.T) {
	t.Run("creates then appends", func(t *testing.T) {
		p := filepath.Join(safeTempDir(t), "nfs.log")

		for _, line := range []string{"one\n", "two\n"} {
			f, err := OpenAppend(p, 0o600)
			require.NoError(t, err)
			_, err = f.WriteString(line)
			require.NoError(t, err)
			require.NoError(t, f.Close())
		}

		got, err := os.ReadFile(p)
		require.NoError(t, err)
		assert.Equal(t, "one\ntwo\n", string(got))

		info, err := os.Stat(p)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
	})

	t.Run("refuses a symlink", func(t *testing.T) {
		dir := safeTempDir(t)
		target := filepath.Join(dir, "target.log")
		require.NoError(t, os.WriteFile(target, nil, 0o600))
		link := filepath.Join(dir, "link.log")
		require.NoError(t, os.Symlink(target, link))

		_, err := OpenAppend(link, 0o600)
		assert.ErrorIs(t, err, ErrIsSymlink)
	})
}
