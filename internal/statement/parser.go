// Package statement reads uploaded bank statement files into raw rows keyed by
// canonical field, using a column mapping supplied by the caller.
package statement

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"bank-reconciliation-backend/internal/models"
)

const (
	FileTypeCSV  = "csv"
	FileTypeTXT  = "txt"
	FileTypeXLSX = "xlsx"
	FileTypePDF  = "pdf"
)

var (
	ErrUnsupportedFileType = errors.New("unsupported file type")
	ErrBinaryContent       = errors.New("file content is not text")
)

// Row is one data row with mapped values. Seq is the 1-based position among
// data rows, Line the position in the source file.
type Row struct {
	Seq    int
	Line   int
	Values map[models.Field]string
	Cells  []string
}

// RowError is a row that could not be decoded into the mapped column layout.
type RowError struct {
	Seq  int
	Line int
	Err  error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("row %d: %v", e.Seq, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// DetectFileType derives the file type from a file name's extension,
// defaulting to csv.
func DetectFileType(name string) string {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	if ext == "" {
		return FileTypeCSV
	}
	return ext
}

type recordSource interface {
	// next returns the cells of the next record and its source line.
	next() ([]string, int, error)
	close() error
}

// Reader yields the rows of one file in order. It is single pass.
type Reader struct {
	src     recordSource
	mapping models.ColumnMapping
	width   int
	skipped int
	seq     int
}

// NewReader prepares a reader over data. Errors returned here make the whole
// file unusable; per-row problems surface from Next.
func NewReader(data []byte, fileType string, mapping models.ColumnMapping) (*Reader, error) {
	src, err := openSource(data, fileType, mapping.Delimiter)
	if err != nil {
		return nil, err
	}
	return &Reader{src: src, mapping: mapping, width: mapping.Width()}, nil
}

// Next returns the next data row, a *RowError for a row that must be skipped,
// or io.EOF once the file is exhausted.
func (r *Reader) Next() (Row, error) {
	for {
		cells, line, err := r.src.next()
		if err == io.EOF {
			return Row{}, io.EOF
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				if r.skipped < r.mapping.SkipRows {
					r.skipped++
					continue
				}
				r.seq++
				return Row{}, &RowError{Seq: r.seq, Line: pe.StartLine, Err: pe.Err}
			}
			return Row{}, err
		}
		if r.skipped < r.mapping.SkipRows {
			r.skipped++
			continue
		}
		if blank(cells) {
			continue
		}
		r.seq++
		if len(cells) < r.width {
			return Row{}, &RowError{
				Seq:  r.seq,
				Line: line,
				Err:  fmt.Errorf("expected at least %d columns, got %d", r.width, len(cells)),
			}
		}
		values := make(map[models.Field]string, len(r.mapping.Columns))
		for _, c := range r.mapping.Columns {
			values[c.Field] = strings.TrimSpace(cells[c.SourceColumn])
		}
		return Row{Seq: r.seq, Line: line, Values: values, Cells: cells}, nil
	}
}

// Rows is the number of data rows returned so far, failed ones included.
func (r *Reader) Rows() int { return r.seq }

func (r *Reader) Close() error { return r.src.close() }

func openSource(data []byte, fileType, delimiter string) (recordSource, error) {
	switch strings.ToLower(strings.TrimPrefix(fileType, ".")) {
	case FileTypeCSV, FileTypeTXT, "":
		text, err := decodeText(data)
		if err != nil {
			return nil, err
		}
		return newCSVSource(text, delimiter), nil
	case FileTypeXLSX:
		return newXLSXSource(data)
	case FileTypePDF:
		return nil, fmt.Errorf("%w: pdf statements must be exported to csv", ErrUnsupportedFileType)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileType, fileType)
	}
}

// decodeText returns UTF-8 text with BOM stripped and line endings unified.
// Input that is not valid UTF-8 is decoded as Windows-1252.
func decodeText(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if looksBinary(data) {
		return nil, ErrBinaryContent
	}
	if !utf8.Valid(data) {
		decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("decode windows-1252: %w", err)
		}
		data = decoded
	}
	data = bytes.ReplaceAll(data, []byte("\r\n"), []byte("\n"))
	data = bytes.ReplaceAll(data, []byte("\r"), []byte("\n"))
	return data, nil
}

func looksBinary(data []byte) bool {
	sample := data
	if len(sample) > 8192 {
		sample = sample[:8192]
	}
	if len(sample) == 0 {
		return false
	}
	control := 0
	for _, b := range sample {
		if b == 0 {
			return true
		}
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' && b != '\f' {
			control++
		}
	}
	return control*10 > len(sample)
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
