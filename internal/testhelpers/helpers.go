//go:build test

// Package testhelpers provides fixtures shared by package and command tests:
// synthetic benign and malicious PE images and a model trained on them.
package testhelpers

import (
	"debug/pe"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/isseis/go-pe-scorer/internal/attributes"
	"github.com/isseis/go-pe-scorer/internal/classifier"
	"github.com/isseis/go-pe-scorer/internal/model"
	"github.com/isseis/go-pe-scorer/internal/modelstore"
	"github.com/isseis/go-pe-scorer/internal/pefeatures"
	pefeaturestesting "github.com/isseis/go-pe-scorer/internal/pefeatures/testing"
)

// BenignImage returns a PE32 console program that only imports KERNEL32.
// i varies the timestamp so images differ.
func BenignImage(i int) []byte {
	return pefeaturestesting.Builder{
		Machine:            pe.IMAGE_FILE_MACHINE_I386,
		Timestamp:          uint32(1500000000 + i),
		Characteristics:    pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_32BIT_MACHINE,
		DllCharacteristics: pe.IMAGE_DLLCHARACTERISTICS_DYNAMIC_BASE | pe.IMAGE_DLLCHARACTERISTICS_NX_COMPAT,
		Subsystem:          pe.IMAGE_SUBSYSTEM_WINDOWS_CUI,
		MajorLinkerVersion: 14,
		MajorOSVersion:     6,
		Code:               []byte{0x55, 0x89, 0xe5, 0x5d, 0xc3},
		Imports: []pefeaturestesting.Import{
			{Library: "KERNEL32.dll", Functions: []string{"GetStdHandle", "WriteFile", "ExitProcess"}},
		},
	}.Build()
}

// MaliciousImage returns a PE32+ GUI program importing networking and
// registry APIs with URLs and registry paths in its data section.
func MaliciousImage(i int) []byte {
	return pefeaturestesting.Builder{
		Machine:            pe.IMAGE_FILE_MACHINE_AMD64,
		PE32Plus:           true,
		Timestamp:          uint32(100 + i),
		Characteristics:    pe.IMAGE_FILE_EXECUTABLE_IMAGE | pe.IMAGE_FILE_LARGE_ADDRESS_AWARE,
		Subsystem:          pe.IMAGE_SUBSYSTEM_WINDOWS_GUI,
		MajorLinkerVersion: 6,
		MajorOSVersion:     4,
		Code:               []byte{0x55, 0x48, 0x89, 0xe5, 0x5d, 0xc3},
		Data:               []byte("http://evil.example/a https://c2.example/b HKEY_LOCAL_MACHINE\\Software\\Run C:\\Windows\\temp\\x.exe"),
		Imports: []pefeaturestesting.Import{
			{Library: "WS2_32.dll", Functions: []string{"connect", "send", "recv"}},
			{Library: "ADVAPI32.dll", Functions: []string{"RegSetValueExA"}},
		},
		Exports: []string{"ServiceMain"},
	}.Build()
}

// QuietLogger discards everything.
func QuietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// TempDir returns t.TempDir with symlinks resolved, as safefileio refuses
// symlinked parents.
func TempDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	return dir
}

// TrainModel fits a small forest on n benign and n malicious images.
func TrainModel(t *testing.T, n int) *model.Model {
	t.Helper()
	var records []attributes.Record
	var labels []int
	for i := range n {
		for label, image := range [][]byte{BenignImage(i), MaliciousImage(i)} {
			rec, err := pefeatures.Extract(image)
			require.NoError(t, err)
			records = append(records, *rec)
			labels = append(labels, label)
		}
	}
	m, err := model.Train(records, labels, model.TrainOptions{
		Classifier: classifier.NewRandomForest(classifier.ForestOptions{Trees: 15, Seed: 3}),
		Logger:     QuietLogger(),
	})
	require.NoError(t, err)
	return m
}

// SaveModel trains a model and writes it under dir.
func SaveModel(t *testing.T, dir string) (string, *model.Model) {
	t.Helper()
	m := TrainModel(t, 10)
	path := filepath.Join(dir, "nfs-model.json")
	require.NoError(t, modelstore.NewStore(path).Save(m))
	return path, m
}
