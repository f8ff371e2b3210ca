package file

import (
	"context"
	"strings"

	"github.com/mohammadpnp/bulk-import/internal/application/failure"
	domain "github.com/mohammadpnp/bulk-import/internal/domain/importjob"
)

type recordLoader interface {
	Load(ctx context.Context, job domain.ImportJob) ([]domain.Record, error)
}

// Loader picks the reader for a job by its file type.
type Loader struct {
	byType map[string]recordLoader
}

// SupportedTypes lists the file types Loader can read.
var SupportedTypes = []string{"csv", "xlsx"}

func NewLoader(source *LocalSource) *Loader {
	return &Loader{byType: map[string]recordLoader{
		"csv":  NewCSVLoader(source),
		"xlsx": NewExcelLoader(source),
	}}
}

func (l *Loader) Load(ctx context.Context, job domain.ImportJob) ([]domain.Record, error) {
	fileType := strings.ToLower(strings.TrimPrefix(job.FileType, "."))
	loader, ok := l.byType[fileType]
	if !ok {
		if fileType == "xls" {
			return nil, failure.Errorf(failure.TypeFileFormat, "legacy excel file %s cannot be read, save it as xlsx", job.FileName)
		}
		return nil, failure.Errorf(failure.TypeFileFormat, "unsupported file type %q", fileType)
	}
	return loader.Load(ctx, job)
}
