package file

import (
	"strings"

	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

const byteOrderMark = "\ufeff"

func normalizeHeader(header []string) []string {
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], byteOrderMark)
	}
	return header
}

// newRecord maps row onto the header columns. Unnamed columns are dropped and
// short rows leave the missing columns empty.
func newRecord(header, row []string, index int) domain.Record {
	fields := make(map[string]string, len(header))
	for i, column := range header {
		if column == "" {
			continue
		}
		if i < len(row) {
			fields[column] = strings.TrimSpace(row[i])
		} else {
			fields[column] = ""
		}
	}
	return domain.Record{Index: index, Fields: fields}
}

func blankRow(row []string) bool {
	for _, value := range row {
		if strings.TrimSpace(value) != "" {
			return false
		}
	}
	return true
}
