package file

import (
	"context"
	"fmt"
	"io"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
	"github.com/xuri/excelize/v2"
)

// ExcelLoader reads the first sheet of an xlsx workbook. The first non-empty
// row is the header.
type ExcelLoader struct {
	source *LocalSource
}

func NewExcelLoader(source *LocalSource) *ExcelLoader {
	return &ExcelLoader{source: source}
}

func (l *ExcelLoader) Load(ctx context.Context, job domain.ImportJob) ([]domain.Record, error) {
	reader, err := l.source.Open(ctx, job.FilePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return ReadExcel(ctx, reader)
}

// ReadExcel parses workbook data with a header row. Empty rows are skipped.
func ReadExcel(ctx context.Context, r io.Reader) ([]domain.Record, error) {
	workbook, err := excelize.OpenReader(r)
	if err != nil {
		return nil, failure.WithType(fmt.Errorf("open excel workbook: %w", err), failure.TypeFileFormat)
	}
	defer workbook.Close()

	sheets := workbook.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil
	}

	rows, err := workbook.Rows(sheets[0])
	if err != nil {
		return nil, failure.WithType(fmt.Errorf("read excel sheet %s: %w", sheets[0], err), failure.TypeFileFormat)
	}
	defer rows.Close()

	var header []string
	records := make([]domain.Record, 0)
	for rows.Next() {
		if len(records)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := rows.Columns()
		if err != nil {
			return nil, failure.WithType(fmt.Errorf("read excel row %d: %w", len(records)+1, err), failure.TypeFileFormat)
		}
		if blankRow(row) {
			continue
		}
		if header == nil {
			header = normalizeHeader(row)
			continue
		}
		records = append(records, newRecord(header, row, len(records)))
	}
	if err := rows.Error(); err != nil {
		return nil, failure.WithType(fmt.Errorf("read excel sheet %s: %w", sheets[0], err), failure.TypeFileFormat)
	}
	if header == nil {
		return nil, nil
	}

	return records, nil
}
