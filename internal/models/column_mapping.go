package models

import (
	"errors"
	"fmt"
)

// Field is a canonical statement field a source column can be mapped to.
type Field string

const (
	FieldDate        Field = "date"
	FieldDescription Field = "description"
	FieldDebit       Field = "debit"
	FieldCredit      Field = "credit"
	FieldBalance     Field = "balance"
	FieldReference   Field = "reference"
	// FieldAmount is a single signed amount column; negative values are debits.
	FieldAmount Field = "amount"
)

func (f Field) Valid() bool {
	switch f {
	case FieldDate, FieldDescription, FieldDebit, FieldCredit, FieldBalance, FieldReference, FieldAmount:
		return true
	}
	return false
}

type ColumnBinding struct {
	SourceColumn int   `json:"source_column"`
	Field        Field `json:"canonical_field"`
}

// ColumnMapping binds the columns of one bank's export layout to canonical fields.
type ColumnMapping struct {
	Columns     []ColumnBinding `json:"columns"`
	SkipRows    int             `json:"skip_rows"`
	Delimiter   string          `json:"delimiter,omitempty"`
	DateFormats []string        `json:"date_formats,omitempty"`
}

var ErrEmptyMapping = errors.New("column mapping is empty")

// Validate checks the mapping once, before any row is read.
func (m ColumnMapping) Validate() error {
	if len(m.Columns) == 0 {
		return ErrEmptyMapping
	}
	if m.SkipRows < 0 {
		return fmt.Errorf("skip_rows must not be negative")
	}
	if len([]rune(m.Delimiter)) > 1 {
		return fmt.Errorf("delimiter must be a single character")
	}
	seen := make(map[Field]bool, len(m.Columns))
	for _, c := range m.Columns {
		if !c.Field.Valid() {
			return fmt.Errorf("unknown canonical field %q", c.Field)
		}
		if c.SourceColumn < 0 {
			return fmt.Errorf("field %s: source column must not be negative", c.Field)
		}
		if seen[c.Field] {
			return fmt.Errorf("field %s is mapped more than once", c.Field)
		}
		seen[c.Field] = true
	}
	if !seen[FieldDate] {
		return fmt.Errorf("mapping has no date column")
	}
	if !seen[FieldDescription] {
		return fmt.Errorf("mapping has no description column")
	}
	if seen[FieldAmount] && (seen[FieldDebit] || seen[FieldCredit]) {
		return fmt.Errorf("amount cannot be combined with debit/credit columns")
	}
	if !seen[FieldAmount] && !seen[FieldDebit] && !seen[FieldCredit] {
		return fmt.Errorf("mapping has no amount, debit or credit column")
	}
	return nil
}

// Width is the number of columns a row needs to satisfy the mapping.
func (m ColumnMapping) Width() int {
	w := 0
	for _, c := range m.Columns {
		if c.SourceColumn+1 > w {
			w = c.SourceColumn + 1
		}
	}
	return w
}
