// Package matching finds and scores counterparts for bank transactions.
package matching

import (
	"context"
	"math"
	"runtime"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

type Weights struct {
	Amount float64 `json:"amount"`
	Date   float64 `json:"date"`
	Text   float64 `json:"text"`
}

// Config holds every tunable of candidate generation and scoring.
type Config struct {
	// A counterpart is in the amount window when it differs by at most
	// max(AmountToleranceAbs, AmountTolerancePct% of the transaction amount).
	AmountToleranceAbs decimal.Decimal
	AmountTolerancePct float64
	// AmountDiffCap is the floor of the amount sub-score denominator.
	AmountDiffCap decimal.Decimal
	DayWindow     int
	CandidateCap  int
	Threshold     int
	Weights       Weights
	NoiseTokens   []string
}

func DefaultConfig() Config {
	return Config{
		AmountToleranceAbs: decimal.NewFromInt(1),
		AmountTolerancePct: 1,
		AmountDiffCap:      decimal.NewFromInt(1),
		DayWindow:          5,
		CandidateCap:       20,
		Threshold:          50,
		Weights:            Weights{Amount: 0.4, Date: 0.2, Text: 0.4},
		NoiseTokens:        DefaultNoiseTokens,
	}
}

// Subject is the part of a bank transaction the engine looks at.
type Subject struct {
	ID          uuid.UUID
	Debit       bool
	Amount      decimal.Decimal
	Date        time.Time
	Description string
}

func (s Subject) Kind() CounterpartKind {
	if s.Debit {
		return KindExpense
	}
	return KindPayment
}

// Candidate is one scored pairing of a subject with a counterpart.
type Candidate struct {
	Counterpart Counterpart     `json:"counterpart"`
	Score       int             `json:"score"`
	AmountScore float64         `json:"amount_score"`
	DateScore   float64         `json:"date_score"`
	TextScore   float64         `json:"text_score"`
	AmountDiff  decimal.Decimal `json:"amount_diff"`
	DayDiff     int             `json:"day_diff"`
}

// Suggestion is the candidate a subject claimed during Assign.
type Suggestion struct {
	Subject    Subject
	Candidate  Candidate
	Considered int
}

type Engine struct {
	cfg  Config
	text textNormalizer
}

func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg, text: newTextNormalizer(cfg.NoiseTokens)}
}

func (e *Engine) Config() Config { return e.cfg }

// Window returns the inclusive amount and date ranges a counterpart must fall
// into to be considered for s.
func (e *Engine) Window(s Subject) (minAmount, maxAmount decimal.Decimal, from, to time.Time) {
	tol := e.tolerance(s.Amount)
	days := time.Duration(e.cfg.DayWindow) * 24 * time.Hour
	return s.Amount.Sub(tol), s.Amount.Add(tol), s.Date.Add(-days), s.Date.Add(days)
}

func (e *Engine) tolerance(amount decimal.Decimal) decimal.Decimal {
	pct := amount.Abs().Mul(decimal.NewFromFloat(e.cfg.AmountTolerancePct)).Div(decimal.NewFromInt(100))
	return decimal.Max(e.cfg.AmountToleranceAbs, pct)
}

// Candidates returns the windowed counterparts for s, ordered by absolute
// amount difference and capped at CandidateCap.
func (e *Engine) Candidates(s Subject, pool *Pool) []Counterpart {
	minAmount, maxAmount, from, to := e.Window(s)
	var out []Counterpart
	for _, c := range pool.Between(s.Kind(), from, to) {
		if c.Amount.LessThan(minAmount) || c.Amount.GreaterThan(maxAmount) {
			continue
		}
		out = append(out, c)
	}
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].Amount.Sub(s.Amount).Abs(), out[j].Amount.Sub(s.Amount).Abs()
		if !di.Equal(dj) {
			return di.LessThan(dj)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	if e.cfg.CandidateCap > 0 && len(out) > e.cfg.CandidateCap {
		out = out[:e.cfg.CandidateCap]
	}
	return out
}

// Score computes the weighted confidence of pairing s with c.
func (e *Engine) Score(s Subject, c Counterpart) Candidate {
	diff := s.Amount.Sub(c.Amount).Abs()
	denom := decimal.Max(e.cfg.AmountDiffCap, c.Amount.Abs())
	amountScore := 0.0
	if diff.IsZero() {
		amountScore = 100
	} else if denom.IsPositive() {
		amountScore = clamp(100 * (1 - diff.Div(denom).InexactFloat64()))
	}

	days := dayDiff(s.Date, c.Date)
	dateScore := 0.0
	switch {
	case days == 0:
		dateScore = 100
	case e.cfg.DayWindow > 0:
		dateScore = clamp(100 * (1 - float64(days)/float64(e.cfg.DayWindow)))
	}

	textScore := e.text.similarity(s.Description, c.Name)

	w := e.cfg.Weights
	sum := w.Amount + w.Date + w.Text
	score := 0.0
	if sum > 0 {
		score = (w.Amount*amountScore + w.Date*dateScore + w.Text*textScore) / sum
	}

	return Candidate{
		Counterpart: c,
		Score:       int(math.Round(score)),
		AmountScore: amountScore,
		DateScore:   dateScore,
		TextScore:   textScore,
		AmountDiff:  diff,
		DayDiff:     days,
	}
}

// ScoreAll scores every counterpart and orders the result best first,
// without applying the threshold.
func (e *Engine) ScoreAll(s Subject, counterparts []Counterpart) []Candidate {
	out := make([]Candidate, 0, len(counterparts))
	for _, c := range counterparts {
		out = append(out, e.Score(s, c))
	}
	sort.SliceStable(out, func(i, j int) bool { return better(out[i], out[j]) })
	return out
}

// Rank is ScoreAll restricted to candidates at or above the threshold.
func (e *Engine) Rank(s Subject, counterparts []Counterpart) []Candidate {
	all := e.ScoreAll(s, counterparts)
	out := all[:0]
	for _, c := range all {
		if c.Score >= e.cfg.Threshold {
			out = append(out, c)
		}
	}
	return out
}

// Assign proposes at most one counterpart per subject. Scoring runs in
// parallel; claims are then made in subject order so an earlier subject wins
// a counterpart that several subjects rank first.
func (e *Engine) Assign(ctx context.Context, subjects []Subject, pool *Pool) ([]Suggestion, error) {
	ranked := make([][]Candidate, len(subjects))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i := range subjects {
		i := i
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			ranked[i] = e.Rank(subjects[i], e.Candidates(subjects[i], pool))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []Suggestion
	for i, s := range subjects {
		for _, c := range ranked[i] {
			if pool.Claim(c.Counterpart.ID) {
				out = append(out, Suggestion{Subject: s, Candidate: c, Considered: len(ranked[i])})
				break
			}
		}
	}
	return out, nil
}

// better orders candidates by score, then date distance, then amount
// distance, then counterpart id.
func better(a, b Candidate) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if a.DayDiff != b.DayDiff {
		return a.DayDiff < b.DayDiff
	}
	if !a.AmountDiff.Equal(b.AmountDiff) {
		return a.AmountDiff.LessThan(b.AmountDiff)
	}
	return a.Counterpart.ID.String() < b.Counterpart.ID.String()
}

func dayDiff(a, b time.Time) int {
	ad := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	bd := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	d := int(math.Round(ad.Sub(bd).Hours() / 24))
	if d < 0 {
		return -d
	}
	return d
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(100, v))
}
