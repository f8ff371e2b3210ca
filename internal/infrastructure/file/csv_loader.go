package file

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

// CSVLoader reads CSV uploads into records keyed by the header row.
type CSVLoader struct {
	source *LocalSource
}

func NewCSVLoader(source *LocalSource) *CSVLoader {
	return &CSVLoader{source: source}
}

func (l *CSVLoader) Load(ctx context.Context, job domain.ImportJob) ([]domain.Record, error) {
	reader, err := l.source.Open(ctx, job.FilePath)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	return ReadCSV(ctx, reader)
}

// ReadCSV parses CSV data with a header row. Index is the zero-based data row;
// blank lines are skipped, short rows leave the missing columns empty.
func ReadCSV(ctx context.Context, r io.Reader) ([]domain.Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, failure.WithType(fmt.Errorf("read csv header: %w", err), failure.TypeFileFormat)
	}
	header = normalizeHeader(header)

	records := make([]domain.Record, 0)
	for {
		if len(records)%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, failure.WithType(fmt.Errorf("read csv row %d: %w", len(records)+1, err), failure.TypeFileFormat)
		}

		records = append(records, newRecord(header, row, len(records)))
	}

	return records, nil
}
