package matching

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CounterpartKind string

const (
	KindExpense CounterpartKind = "expense"
	KindPayment CounterpartKind = "payment"
)

// Counterpart is an expense or invoice payment a bank line can be matched to.
type Counterpart struct {
	ID        uuid.UUID       `json:"id"`
	Kind      CounterpartKind `json:"kind"`
	Name      string          `json:"name"`
	Amount    decimal.Decimal `json:"amount"`
	Date      time.Time       `json:"date"`
	InvoiceID *uuid.UUID      `json:"invoice_id,omitempty"`
}

// Pool is the set of unreconciled counterparts available during one
// matching pass. Claimed counterparts are invisible to later lookups.
type Pool struct {
	mu      sync.Mutex
	byKind  map[CounterpartKind][]Counterpart
	claimed map[uuid.UUID]bool
}

func NewPool(counterparts []Counterpart) *Pool {
	p := &Pool{
		byKind:  make(map[CounterpartKind][]Counterpart),
		claimed: make(map[uuid.UUID]bool),
	}
	for _, c := range counterparts {
		p.byKind[c.Kind] = append(p.byKind[c.Kind], c)
	}
	for _, list := range p.byKind {
		sort.SliceStable(list, func(i, j int) bool {
			if !list[i].Date.Equal(list[j].Date) {
				return list[i].Date.Before(list[j].Date)
			}
			return list[i].ID.String() < list[j].ID.String()
		})
	}
	return p
}

// Between returns unclaimed counterparts of kind dated within [from, to].
func (p *Pool) Between(kind CounterpartKind, from, to time.Time) []Counterpart {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.byKind[kind]
	start := sort.Search(len(list), func(i int) bool { return !list[i].Date.Before(from) })
	var out []Counterpart
	for i := start; i < len(list) && !list[i].Date.After(to); i++ {
		if !p.claimed[list[i].ID] {
			out = append(out, list[i])
		}
	}
	return out
}

// Claim reserves id for the caller. It reports false if already claimed.
func (p *Pool) Claim(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.claimed[id] {
		return false
	}
	p.claimed[id] = true
	return true
}

func (p *Pool) Claimed(id uuid.UUID) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.claimed[id]
}

func (p *Pool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, list := range p.byKind {
		for _, c := range list {
			if !p.claimed[c.ID] {
				n++
			}
		}
	}
	return n
}
