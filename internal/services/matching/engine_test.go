package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func mustDate(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func expense(name, amount, date string) Counterpart {
	return Counterpart{
		ID:     uuid.New(),
		Kind:   KindExpense,
		Name:   name,
		Amount: decimal.RequireFromString(amount),
		Date:   mustDate(date),
	}
}

func debit(desc, amount, date string) Subject {
	return Subject{
		ID:          uuid.New(),
		Debit:       true,
		Amount:      decimal.RequireFromString(amount),
		Date:        mustDate(date),
		Description: desc,
	}
}

func TestScore_ExactAmountNearDate(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := debit("SAFARICOM LTD", "1500.00", "2024-03-01")
	c := expense("Safaricom", "1500.00", "2024-03-02")

	got := e.Score(s, c)
	if got.Score < 90 {
		t.Fatalf("score got=%d want>=90 (amount=%.1f date=%.1f text=%.1f)", got.Score, got.AmountScore, got.DateScore, got.TextScore)
	}
	if got.DayDiff != 1 {
		t.Fatalf("day diff got=%d want=1", got.DayDiff)
	}
	if !got.AmountDiff.IsZero() {
		t.Fatalf("amount diff got=%s want=0", got.AmountDiff)
	}
}

func TestScore_Bounds(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := debit("zzz qqq", "100.00", "2024-03-01")
	c := expense("Acme Widgets", "100.99", "2024-03-06")

	got := e.Score(s, c)
	for name, v := range map[string]float64{"amount": got.AmountScore, "date": got.DateScore, "text": got.TextScore} {
		if v < 0 || v > 100 {
			t.Fatalf("%s sub-score out of range: %f", name, v)
		}
	}
	if got.DateScore != 0 {
		t.Fatalf("date score at window edge got=%f want=0", got.DateScore)
	}
	if got.Score < 0 || got.Score > 100 {
		t.Fatalf("score out of range: %d", got.Score)
	}
}

func TestCandidates_NoneInWindow(t *testing.T) {
	e := NewEngine(DefaultConfig())
	pool := NewPool([]Counterpart{
		expense("Landlord", "4000.00", "2024-03-01"), // amount outside ±1%
		expense("Landlord", "5000.00", "2024-03-20"), // date outside ±5 days
		expense("Landlord", "5040.00", "2024-03-02"), // within both
	})
	s := debit("RENT", "5000.00", "2024-03-01")

	got := e.Candidates(s, pool)
	if len(got) != 1 {
		t.Fatalf("candidates got=%d want=1", len(got))
	}

	lonely := debit("RENT", "9999.00", "2024-03-01")
	if got := e.Candidates(lonely, pool); len(got) != 0 {
		t.Fatalf("candidates got=%d want=0", len(got))
	}
}

func TestCandidates_DirectionAndCap(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CandidateCap = 5
	e := NewEngine(cfg)

	var cps []Counterpart
	for i := 0; i < 12; i++ {
		amount := decimal.NewFromInt(1000).Add(decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(int64(i))))
		cps = append(cps, Counterpart{ID: uuid.New(), Kind: KindExpense, Name: "Vendor", Amount: amount, Date: mustDate("2024-03-01")})
	}
	cps = append(cps, Counterpart{ID: uuid.New(), Kind: KindPayment, Name: "Vendor", Amount: decimal.NewFromInt(1000), Date: mustDate("2024-03-01")})
	pool := NewPool(cps)

	got := e.Candidates(debit("Vendor", "1000", "2024-03-01"), pool)
	if len(got) != 5 {
		t.Fatalf("candidates got=%d want=5", len(got))
	}
	for i, c := range got {
		if c.Kind != KindExpense {
			t.Fatalf("debit was offered a %s", c.Kind)
		}
		want := decimal.NewFromInt(1000).Add(decimal.NewFromFloat(0.5).Mul(decimal.NewFromInt(int64(i))))
		if !c.Amount.Equal(want) {
			t.Fatalf("candidate %d amount got=%s want=%s", i, c.Amount, want)
		}
	}
}

func TestRank_Threshold(t *testing.T) {
	e := NewEngine(DefaultConfig())
	s := debit("ACME SUPPLIES", "100.00", "2024-03-01")
	good := expense("Acme Supplies", "100.00", "2024-03-01")
	weak := expense("Qxz Ltd", "100.99", "2024-03-06")

	all := e.ScoreAll(s, []Counterpart{weak, good})
	if len(all) != 2 || all[0].Counterpart.ID != good.ID {
		t.Fatalf("ScoreAll should order best first")
	}
	ranked := e.Rank(s, []Counterpart{weak, good})
	if len(ranked) != 1 || ranked[0].Counterpart.ID != good.ID {
		t.Fatalf("Rank got=%d candidates want=1 above threshold", len(ranked))
	}
}

func TestRank_TieBreakByDateThenAmount(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Weights = Weights{Amount: 0, Date: 0, Text: 1}
	e := NewEngine(cfg)
	s := debit("ACME", "2000.00", "2024-03-05")

	far := expense("Acme", "2000.00", "2024-03-08")
	near := expense("Acme", "2000.00", "2024-03-04")
	nearOff := expense("Acme", "2000.50", "2024-03-04")

	got := e.Rank(s, []Counterpart{far, nearOff, near})
	if len(got) != 3 {
		t.Fatalf("ranked got=%d want=3", len(got))
	}
	if got[0].Counterpart.ID != near.ID || got[1].Counterpart.ID != nearOff.ID || got[2].Counterpart.ID != far.ID {
		t.Fatalf("tie-break order wrong: %v", []string{got[0].Counterpart.Date.String(), got[1].Counterpart.Amount.String(), got[2].Counterpart.Date.String()})
	}
}

func TestAssign_ExclusiveClaim(t *testing.T) {
	e := NewEngine(DefaultConfig())
	e1 := expense("Office Mart", "2000.00", "2024-03-05")
	e2 := expense("Office Mart", "2000.00", "2024-03-07")
	pool := NewPool([]Counterpart{e2, e1})

	first := debit("OFFICE MART", "2000.00", "2024-03-05")
	second := debit("OFFICE MART", "2000.00", "2024-03-05")

	got, err := e.Assign(context.Background(), []Subject{first, second}, pool)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("suggestions got=%d want=2", len(got))
	}
	if got[0].Subject.ID != first.ID || got[0].Candidate.Counterpart.ID != e1.ID {
		t.Fatalf("first subject should win the closest expense")
	}
	if got[1].Subject.ID != second.ID || got[1].Candidate.Counterpart.ID != e2.ID {
		t.Fatalf("second subject should fall back to the remaining expense")
	}
	if pool.Len() != 0 {
		t.Fatalf("pool len got=%d want=0", pool.Len())
	}
	if !pool.Claimed(e1.ID) || !pool.Claimed(e2.ID) {
		t.Fatalf("both expenses should be claimed")
	}
}

func TestAssign_NoCandidateLeavesSubjectOut(t *testing.T) {
	e := NewEngine(DefaultConfig())
	pool := NewPool([]Counterpart{expense("Office Mart", "20.00", "2024-03-05")})
	got, err := e.Assign(context.Background(), []Subject{debit("RENT", "5000", "2024-03-05")}, pool)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("suggestions got=%d want=0", len(got))
	}
}

func TestSimilarity(t *testing.T) {
	n := newTextNormalizer(DefaultNoiseTokens)
	cases := []struct {
		desc, name string
		min, max   float64
	}{
		{"POS PURCHASE SAFARICOM LTD 88812", "Safaricom", 100, 100},
		{"MPESA TRF JOHN DOE", "John Doe", 100, 100},
		{"ACH KENYA POWER", "Kenya Power & Lighting", 60, 100},
		{"ATM WITHDRAWAL", "Acme Supplies", 0, 50},
		{"12345", "Acme", 0, 0},
		{"KPLC PREPAID TOKEN", "K", 0, 60},
		{"SOLAR PANELS KE", "Sol", 0, 90},
		{"JOHN DOE RENT", "Doe John", 100, 100},
	}
	for _, tc := range cases {
		got := n.similarity(tc.desc, tc.name)
		if got < tc.min || got > tc.max {
			t.Fatalf("similarity(%q, %q) got=%.1f want in [%.0f, %.0f]", tc.desc, tc.name, got, tc.min, tc.max)
		}
	}
}

func TestContainsRun(t *testing.T) {
	desc := []string{"kenya", "power", "lighting"}
	if !containsRun(desc, []string{"kenya", "power"}) {
		t.Fatalf("leading run not found")
	}
	if !containsRun(desc, []string{"lighting"}) {
		t.Fatalf("trailing token not found")
	}
	if containsRun(desc, []string{"power", "kenya"}) {
		t.Fatalf("out of order tokens should not match")
	}
	if containsRun(desc, []string{"ken"}) {
		t.Fatalf("partial token should not match")
	}
}
