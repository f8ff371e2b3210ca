package file_test

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/mohammadpnp/bulk-import/internal/infrastructure/file"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeWorkbook(t *testing.T, rows [][]any) *excelize.File {
	t.Helper()

	workbook := excelize.NewFile()
	t.Cleanup(func() { _ = workbook.Close() })

	sheet := workbook.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, workbook.SetSheetRow(sheet, cell, &row))
	}
	return workbook
}

func TestReadExcel(t *testing.T) {
	t.Parallel()

	workbook := writeWorkbook(t, [][]any{
		{" name", "email "},
		{"Alice", "alice@example.com"},
		{"", ""},
		{"Bob"},
	})
	var buf bytes.Buffer
	_, err := workbook.WriteTo(&buf)
	require.NoError(t, err)

	records, err := file.ReadExcel(context.Background(), &buf)
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, 0, records[0].Index)
	assert.Equal(t, map[string]string{"name": "Alice", "email": "alice@example.com"}, records[0].Fields)
	assert.Equal(t, 1, records[1].Index)
	assert.Equal(t, map[string]string{"name": "Bob", "email": ""}, records[1].Fields)
}

func TestReadExcelEmptySheet(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	_, err := writeWorkbook(t, nil).WriteTo(&buf)
	require.NoError(t, err)

	records, err := file.ReadExcel(context.Background(), &buf)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestReadExcelRejectsNonWorkbook(t *testing.T) {
	t.Parallel()

	_, err := file.ReadExcel(context.Background(), strings.NewReader("name,email\n"))
	require.Error(t, err)
	assert.Equal(t, failure.TypeFileFormat, failure.Classify(err).Type)
}

func TestLoaderDispatchesXLSX(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	workbook := writeWorkbook(t, [][]any{
		{"email"},
		{"a@example.com"},
		{"b@example.com"},
	})
	require.NoError(t, workbook.SaveAs(filepath.Join(dir, "contacts.xlsx")))

	loader := file.NewLoader(file.NewLocalSource(dir))
	records, err := loader.Load(context.Background(), domain.ImportJob{FileName: "contacts.xlsx", FilePath: "contacts.xlsx", FileType: "xlsx"})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "b@example.com", records[1].Fields["email"])
}
