package normalize

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"bank-reconciliation-backend/internal/models"
	"bank-reconciliation-backend/internal/statement"
)

func row(seq int, values map[models.Field]string) statement.Row {
	cells := make([]string, 0, len(values))
	for _, v := range values {
		cells = append(cells, v)
	}
	return statement.Row{Seq: seq, Line: seq + 1, Values: values, Cells: cells}
}

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"1500", "1500"},
		{"1,500.00", "1500"},
		{"KES 1,500.50", "1500.5"},
		{"$ 99.99", "99.99"},
		{"1.234,56", "1234.56"},
		{"12,50", "12.5"},
		{"(250.00)", "-250"},
		{"250.00-", "-250"},
		{"-250.00", "-250"},
		{"250.00 DR", "-250"},
		{"250.00 CR", "250"},
		{"1 000 000", "1000000"},
		{"KES1,500", "1500"},
		{"1,500.00 USD", "1500"},
		{"US$ 20", "20"},
		{"(KES 250.00)", "-250"},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if err != nil {
			t.Fatalf("ParseAmount(%q): %v", tc.in, err)
		}
		if !got.Equal(decimal.RequireFromString(tc.want)) {
			t.Fatalf("ParseAmount(%q) got=%s want=%s", tc.in, got, tc.want)
		}
	}

	for _, bad := range []string{"", "abc", "--", "()", "12abc34", "1O0", "1e5", "12-34", "1+2", "KES"} {
		if _, err := ParseAmount(bad); err == nil {
			t.Fatalf("ParseAmount(%q) expected error", bad)
		}
	}
}

func TestNormalize_DebitCredit(t *testing.T) {
	n := New(nil)
	d, err := n.Normalize(row(1, map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "  POS   ACME  SUPPLIES ",
		models.FieldDebit:       "1,500.00",
		models.FieldCredit:      "",
		models.FieldBalance:     "8,500.00",
	}))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	want := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	if !d.Date.Equal(want) {
		t.Fatalf("date got=%s want=%s", d.Date, want)
	}
	if d.Description != "POS ACME SUPPLIES" {
		t.Fatalf("description got=%q", d.Description)
	}
	if d.Debit == nil || !d.Debit.Equal(decimal.NewFromInt(1500)) {
		t.Fatalf("debit got=%v want=1500", d.Debit)
	}
	if d.Credit != nil {
		t.Fatalf("credit got=%v want=nil", d.Credit)
	}
	if d.Balance == nil || !d.Balance.Equal(decimal.NewFromInt(8500)) {
		t.Fatalf("balance got=%v want=8500", d.Balance)
	}
	if len(d.Raw) == 0 {
		t.Fatalf("raw data not captured")
	}
}

func TestNormalize_SignedAmountColumn(t *testing.T) {
	n := New(nil)
	d, err := n.Normalize(row(1, map[models.Field]string{
		models.FieldDate:        "2024-03-05",
		models.FieldDescription: "Rent",
		models.FieldAmount:      "-1200.00",
	}))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.Debit == nil || !d.Debit.Equal(decimal.NewFromInt(1200)) || d.Credit != nil {
		t.Fatalf("negative amount should be a debit of 1200, got debit=%v credit=%v", d.Debit, d.Credit)
	}

	d, err = n.Normalize(row(2, map[models.Field]string{
		models.FieldDate:        "2024-03-06",
		models.FieldDescription: "Deposit",
		models.FieldAmount:      "300",
	}))
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if d.Credit == nil || !d.Credit.Equal(decimal.NewFromInt(300)) || d.Debit != nil {
		t.Fatalf("positive amount should be a credit of 300, got debit=%v credit=%v", d.Debit, d.Credit)
	}
}

func TestNormalize_AmountValidation(t *testing.T) {
	cases := []struct {
		name   string
		debit  string
		credit string
		want   error
	}{
		{"both populated", "10.00", "10.00", ErrBothAmounts},
		{"neither populated", "", "", ErrNoAmount},
		{"zero counts as empty", "0.00", "", ErrNoAmount},
	}
	for _, tc := range cases {
		n := New(nil)
		_, err := n.Normalize(row(7, map[models.Field]string{
			models.FieldDate:        "05/03/2024",
			models.FieldDescription: "x",
			models.FieldDebit:       tc.debit,
			models.FieldCredit:      tc.credit,
		}))
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("%s: err got=%v want ValidationError", tc.name, err)
		}
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: err got=%v want=%v", tc.name, err, tc.want)
		}
		if verr.Seq != 7 {
			t.Fatalf("%s: seq got=%d want=7", tc.name, verr.Seq)
		}
	}
}

func TestNormalize_DateFormats(t *testing.T) {
	n := New(nil)
	for _, raw := range []string{"05/03/2024", "2024-03-05", "05-Mar-2024", "5/3/2024", "05.03.2024", "05 Mar 2024"} {
		d, err := n.Normalize(row(1, map[models.Field]string{
			models.FieldDate:        raw,
			models.FieldDescription: raw,
			models.FieldCredit:      "1",
		}))
		if err != nil {
			t.Fatalf("%q: %v", raw, err)
		}
		if d.Date.Day() != 5 || d.Date.Month() != time.March {
			t.Fatalf("%q parsed as %s", raw, d.Date)
		}
	}

	_, err := New([]string{"2006-01-02"}).Normalize(row(1, map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "x",
		models.FieldCredit:      "1",
	}))
	if !errors.Is(err, ErrDateUnparsable) {
		t.Fatalf("err got=%v want=%v", err, ErrDateUnparsable)
	}
}

func TestNormalize_Duplicates(t *testing.T) {
	n := New(nil)
	values := map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "Coffee",
		models.FieldDebit:       "4.50",
		models.FieldBalance:     "100.00",
	}
	if _, err := n.Normalize(row(1, values)); err != nil {
		t.Fatalf("first: %v", err)
	}
	_, err := n.Normalize(row(2, values))
	var dup *DuplicateError
	if !errors.As(err, &dup) {
		t.Fatalf("second: err got=%v want DuplicateError", err)
	}
	if dup.FirstSeq != 1 || dup.Seq != 2 {
		t.Fatalf("duplicate got seq=%d first=%d want=2,1", dup.Seq, dup.FirstSeq)
	}

	// Same purchase with a different running balance is a distinct line.
	other := map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "Coffee",
		models.FieldDebit:       "4.50",
		models.FieldBalance:     "95.50",
	}
	if _, err := n.Normalize(row(3, other)); err != nil {
		t.Fatalf("third: %v", err)
	}
}

func TestNormalize_DuplicateNeedsIdenticalDescription(t *testing.T) {
	n := New(nil)
	first := map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "Coffee Shop",
		models.FieldDebit:       "4.50",
	}
	second := map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "COFFEE SHOP",
		models.FieldDebit:       "4.50",
	}
	if _, err := n.Normalize(row(1, first)); err != nil {
		t.Fatalf("first: %v", err)
	}
	if _, err := n.Normalize(row(2, second)); err != nil {
		t.Fatalf("rows differing in case should both be kept, got %v", err)
	}
}

func TestNormalize_MalformedAmountIsValidationError(t *testing.T) {
	_, err := New(nil).Normalize(row(4, map[models.Field]string{
		models.FieldDate:        "05/03/2024",
		models.FieldDescription: "Fuel",
		models.FieldDebit:       "12abc34",
	}))
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err got=%v want ValidationError", err)
	}
	if verr.Seq != 4 {
		t.Fatalf("seq got=%d want=4", verr.Seq)
	}
}
