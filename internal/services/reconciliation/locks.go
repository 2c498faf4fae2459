package reconciliation

import (
	"sync"

	"github.com/google/uuid"
)

// businessLocks serializes claim-sensitive work within one business.
type businessLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (l *businessLocks) lock(businessID uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.locks[businessID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[businessID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}
