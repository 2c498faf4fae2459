package statement

import (
	"encoding/csv"
	"errors"
	"io"

	"bank-reconciliation-backend/internal/models"
)

// Preview summarises a file for the mapping step.
type Preview struct {
	Header    []string   `json:"header"`
	Sample    [][]string `json:"sample"`
	TotalRows int        `json:"total_rows"`
}

// Inspect walks the whole file once without applying column bindings. The
// last skipped row is reported as the header. Only whole-file failures are
// returned as errors.
func Inspect(data []byte, fileType string, mapping models.ColumnMapping, sampleSize int) (*Preview, error) {
	src, err := openSource(data, fileType, mapping.Delimiter)
	if err != nil {
		return nil, err
	}
	defer src.close()

	p := &Preview{}
	skipped := 0
	for {
		cells, _, err := src.next()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if !errors.As(err, &pe) {
				return nil, err
			}
			if skipped < mapping.SkipRows {
				skipped++
			} else {
				p.TotalRows++
			}
			continue
		}
		if skipped < mapping.SkipRows {
			skipped++
			p.Header = cells
			continue
		}
		if blank(cells) {
			continue
		}
		p.TotalRows++
		if len(p.Sample) < sampleSize {
			p.Sample = append(p.Sample, cells)
		}
	}
	return p, nil
}
