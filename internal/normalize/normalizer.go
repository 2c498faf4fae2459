// Package normalize turns raw statement rows into canonical transaction drafts.
package normalize

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/statement"
)

// DefaultDateFormats are tried in order when an import does not name its own.
var DefaultDateFormats = []string{
	"02/01/2006",
	"2006-01-02",
	"02-Jan-2006",
	"2/1/2006",
	"02.01.2006",
	"02 Jan 2006",
	"2006/01/02",
}

var (
	ErrBothAmounts    = errors.New("both debit and credit are populated")
	ErrNoAmount       = errors.New("neither debit nor credit is populated")
	ErrDateUnparsable = errors.New("date does not match any configured format")
)

// ValidationError is a decoded row that failed semantic checks.
type ValidationError struct {
	Seq   int
	Line  int
	Field models.Field
	Err   error
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: %s: %v", e.Seq, e.Field, e.Err)
	}
	return fmt.Sprintf("row %d: %v", e.Seq, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// DuplicateError marks a row identical to an earlier row of the same import.
type DuplicateError struct {
	Seq      int
	Line     int
	FirstSeq int
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("row %d duplicates row %d", e.Seq, e.FirstSeq)
}

// Draft is a normalized transaction that has not been persisted yet.
type Draft struct {
	Seq         int
	Line        int
	Date        time.Time
	Description string
	Reference   string
	Debit       *decimal.Decimal
	Credit      *decimal.Decimal
	Balance     *decimal.Decimal
	Raw         json.RawMessage
}

func (d Draft) Amount() decimal.Decimal {
	if d.Debit != nil {
		return *d.Debit
	}
	return *d.Credit
}

// Normalizer is stateful across one import so it can spot duplicates.
type Normalizer struct {
	formats []string
	seen    map[string]int
}

func New(formats []string) *Normalizer {
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	return &Normalizer{formats: formats, seen: make(map[string]int)}
}

// Normalize validates one row. It returns a *ValidationError for rows that
// cannot become transactions and a *DuplicateError for repeated rows.
func (n *Normalizer) Normalize(row statement.Row) (Draft, error) {
	fail := func(f models.Field, err error) (Draft, error) {
		return Draft{}, &ValidationError{Seq: row.Seq, Line: row.Line, Field: f, Err: err}
	}

	date, err := n.parseDate(row.Values[models.FieldDate])
	if err != nil {
		return fail(models.FieldDate, err)
	}

	debit, credit, field, err := splitAmounts(row.Values)
	if err != nil {
		return fail(field, err)
	}

	var balance *decimal.Decimal
	if raw, ok := row.Values[models.FieldBalance]; ok && raw != "" {
		b, err := ParseAmount(raw)
		if err != nil {
			return fail(models.FieldBalance, err)
		}
		balance = &b
	}

	d := Draft{
		Seq:         row.Seq,
		Line:        row.Line,
		Date:        date,
		Description: collapseSpaces(row.Values[models.FieldDescription]),
		Reference:   strings.TrimSpace(row.Values[models.FieldReference]),
		Debit:       debit,
		Credit:      credit,
		Balance:     balance,
	}

	key := dedupKey(d)
	if first, ok := n.seen[key]; ok {
		return Draft{}, &DuplicateError{Seq: row.Seq, Line: row.Line, FirstSeq: first}
	}
	n.seen[key] = row.Seq

	if raw, err := json.Marshal(row.Cells); err == nil {
		d.Raw = raw
	}
	return d, nil
}

func (n *Normalizer) parseDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("date is empty")
	}
	for _, layout := range n.formats {
		if t, err := time.Parse(layout, raw); err == nil {
			return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrDateUnparsable, raw)
}

// splitAmounts resolves the debit/credit pair. Zero counts as empty.
func splitAmounts(values map[models.Field]string) (debit, credit *decimal.Decimal, field models.Field, err error) {
	if raw, ok := values[models.FieldAmount]; ok {
		if strings.TrimSpace(raw) == "" {
			return nil, nil, models.FieldAmount, ErrNoAmount
		}
		a, err := ParseAmount(raw)
		if err != nil {
			return nil, nil, models.FieldAmount, err
		}
		switch {
		case a.IsNegative():
			v := a.Abs()
			return &v, nil, "", nil
		case a.IsPositive():
			return nil, &a, "", nil
		default:
			return nil, nil, models.FieldAmount, ErrNoAmount
		}
	}

	debit, err = optionalAmount(values[models.FieldDebit])
	if err != nil {
		return nil, nil, models.FieldDebit, err
	}
	credit, err = optionalAmount(values[models.FieldCredit])
	if err != nil {
		return nil, nil, models.FieldCredit, err
	}
	switch {
	case debit != nil && credit != nil:
		return nil, nil, "", ErrBothAmounts
	case debit == nil && credit == nil:
		return nil, nil, "", ErrNoAmount
	}
	return debit, credit, "", nil
}

func optionalAmount(raw string) (*decimal.Decimal, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	a, err := ParseAmount(raw)
	if err != nil {
		return nil, err
	}
	if a.IsZero() {
		return nil, nil
	}
	a = a.Abs()
	return &a, nil
}

var (
	currencyPrefix = regexp.MustCompile(`^([-+(]*)\s*(?:[A-Z]{0,3}\p{Sc}+|[A-Z]{3}\.?|RS\.?)\s*`)
	currencySuffix = regexp.MustCompile(`\s*(?:\p{Sc}+|[A-Z]{3})\s*([-)]*)$`)
	amountChars    = regexp.MustCompile(`^[0-9.,\-+()]+$`)
)

// ParseAmount reads a money value, ignoring a leading or trailing currency
// symbol or code, whitespace and thousands separators. Parentheses and a
// trailing minus or DR marker make the value negative. Any other character
// makes the amount invalid.
func ParseAmount(raw string) (decimal.Decimal, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	negative := false
	switch {
	case strings.HasSuffix(s, "DR"):
		negative = true
		s = strings.TrimSuffix(s, "DR")
	case strings.HasSuffix(s, "CR"):
		s = strings.TrimSuffix(s, "CR")
	}
	s = strings.TrimSpace(s)
	s = currencyPrefix.ReplaceAllString(s, "$1")
	s = currencySuffix.ReplaceAllString(s, "$1")
	s = strings.Join(strings.Fields(s), "")
	if !amountChars.MatchString(s) {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", raw)
	}
	s = strings.TrimPrefix(s, "+")
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = !negative
		s = strings.Trim(s, "()")
	}
	if strings.HasSuffix(s, "-") {
		negative = !negative
		s = strings.TrimSuffix(s, "-")
	}
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = strings.TrimPrefix(s, "-")
	}
	s = normalizeSeparators(s)
	if s == "" || strings.ContainsAny(s, "()-") {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", raw)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("amount %q is not numeric", raw)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// normalizeSeparators leaves a single '.' decimal separator. When both ','
// and '.' appear the later one is the decimal separator; a lone ',' followed
// by exactly two digits is treated as decimal.
func normalizeSeparators(s string) string {
	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0 && comma > dot:
		s = strings.ReplaceAll(s, ".", "")
		return strings.Replace(s, ",", ".", 1)
	case comma >= 0 && dot >= 0:
		return strings.ReplaceAll(s, ",", "")
	case comma >= 0 && strings.Count(s, ",") == 1 && len(s)-comma-1 == 2:
		return strings.Replace(s, ",", ".", 1)
	default:
		return strings.ReplaceAll(s, ",", "")
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func dedupKey(d Draft) string {
	side := "C"
	if d.Debit != nil {
		side = "D"
	}
	balance := ""
	if d.Balance != nil {
		balance = d.Balance.String()
	}
	return strings.Join([]string{
		d.Date.Format("2006-01-02"),
		d.Description,
		side + d.Amount().String(),
		balance,
	}, "|")
}
