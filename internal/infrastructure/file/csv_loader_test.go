package file_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV(t *testing.T) {
	t.Parallel()

	data := "\ufeffname, email\nAlice,alice@example.com\n\nBob\n"
	records, err := file.ReadCSV(context.Background(), strings.NewReader(data))
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, map[string]string{"name": "Alice", "email": "alice@example.com"}, records[0].Fields)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, map[string]string{"name": "Bob", "email": ""}, records[1].Fields)
}

func TestReadCSVEmptyInput(t *testing.T) {
	t.Parallel()

	records, err := file.ReadCSV(context.Background(), strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadCSVMalformedRowIsFileFormatError(t *testing.T) {
	t.Parallel()

	_, err := file.ReadCSV(context.Background(), strings.NewReader("name\n\"unterminated\n"))
	require.Error(t, err)
	assert.Equal(t, failure.TypeFileFormat, failure.Classify(err).Type)
}

func TestCSVLoaderLoad(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.csv"), []byte("email\na@example.com\nb@example.com\n"), 0o600))

	loader := file.NewCSVLoader(file.NewLocalSource(dir))
	records, err := loader.Load(context.Background(), domain.ImportJob{FileName: "contacts.csv", FilePath: "contacts.csv", FileType: "csv"})
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestLoaderRejectsUnreadableFormats(t *testing.T) {
	t.Parallel()

	loader := file.NewLoader(file.NewLocalSource(t.TempDir()))

	for _, fileType := range []string{"xls", "json"} {
		_, err := loader.Load(context.Background(), domain.ImportJob{FileName: "data." + fileType, FilePath: "data." + fileType, FileType: fileType})
		require.Error(t, err, fileType)
		assert.Equal(t, failure.TypeFileFormat, failure.Classify(err).Type, fileType)
	}
}

func TestLoaderDispatchesCSV(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "contacts.csv"), []byte("email\na@example.com\n"), 0o600))

	records, err := file.NewLoader(file.NewLocalSource(dir)).Load(context.Background(), domain.ImportJob{FileName: "contacts.csv", FilePath: "contacts.csv", FileType: ".CSV"})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLocalSourceOpenErrors(t *testing.T) {
	t.Parallel()

	source := file.NewLocalSource(t.TempDir())

	_, err := source.Open(context.Background(), "missing.csv")
	require.Error(t, err)
	assert.Equal(t, failure.TypeFileFormat, failure.Classify(err).Type)

	_, err = source.Open(context.Background(), "../etc/passwd")
	require.True(t, errors.Is(err, file.ErrOutsideBaseDir))
	assert.Equal(t, failure.TypePermission, failure.Classify(err).Type)
}

func TestLocalSourceRejectsAbsolutePaths(t *testing.T) {
	t.Parallel()

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte("token\nabc\n"), 0o600))

	source := file.NewLocalSource(t.TempDir())
	reader, err := source.Open(context.Background(), secret)
	if reader != nil {
		reader.Close()
	}
	require.ErrorIs(t, err, file.ErrOutsideBaseDir)
	assert.Equal(t, failure.TypePermission, failure.Classify(err).Type)
}

func TestLocalSourceRejectsSymlinkOutOfBaseDir(t *testing.T) {
	t.Parallel()

	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.csv")
	require.NoError(t, os.WriteFile(secret, []byte("token\nabc\n"), 0o600))

	base := t.TempDir()
	if err := os.Symlink(secret, filepath.Join(base, "link.csv")); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	reader, err := file.NewLocalSource(base).Open(context.Background(), "link.csv")
	if reader != nil {
		reader.Close()
	}
	require.Error(t, err)
}

func TestLocalSourceOpensNestedPath(t *testing.T) {
	t.Parallel()

	base := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(base, "tenant-1"), 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(base, "tenant-1", "a.csv"), []byte("x\n1\n"), 0o600))

	reader, err := file.NewLocalSource(base).Open(context.Background(), "tenant-1/../tenant-1/a.csv")
	require.NoError(t, err)
	require.NoError(t, reader.Close())
}
