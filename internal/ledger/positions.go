package ledger

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

var (
	ErrTradingBlocked     = errors.New("trading blocked")
	ErrSubmissionInFlight = errors.New("submission already in flight")
	ErrPositionOpen       = errors.New("position already open")
	ErrNoPosition         = errors.New("no open position")
	ErrCooldown           = errors.New("symbol in exit cooldown")
)

// Position is a snapshot of one symbol's holding
type Position struct {
	Symbol     string    `json:"symbol"`
	Quantity   int64     `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	EntryTime  time.Time `json:"entry_time"`
}

// Age returns how long the position has been held
func (p Position) Age(now time.Time) time.Duration {
	if p.EntryTime.IsZero() {
		return 0
	}
	return now.Sub(p.EntryTime)
}

type slot struct {
	mu         sync.Mutex
	symbol     string
	quantity   int64
	entryPrice float64
	entryTime  time.Time
	lastExit   time.Time
	inFlight   bool
}

func (s *slot) snapshot() Position {
	return Position{Symbol: s.symbol, Quantity: s.quantity, EntryPrice: s.entryPrice, EntryTime: s.entryTime}
}

// PositionBook is the per-symbol position arena. Entries are created lazily and
// every mutation for a symbol goes through that symbol's slot lock.
type PositionBook struct {
	cooldown time.Duration
	now      func() time.Time

	mu    sync.RWMutex
	slots map[string]*slot
}

// NewPositionBook creates an empty arena
func NewPositionBook(cooldown time.Duration, now func() time.Time) *PositionBook {
	if now == nil {
		now = time.Now
	}
	return &PositionBook{
		cooldown: cooldown,
		now:      now,
		slots:    make(map[string]*slot),
	}
}

func (b *PositionBook) slot(symbol string) *slot {
	b.mu.RLock()
	s, ok := b.slots[symbol]
	b.mu.RUnlock()
	if ok {
		return s
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if s, ok = b.slots[symbol]; !ok {
		s = &slot{symbol: symbol}
		b.slots[symbol] = s
	}
	return s
}

// Position returns the current holding for symbol, if any
func (b *PositionBook) Position(symbol string) (Position, bool) {
	s := b.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot(), s.quantity > 0
}

// HeldQuantity returns the held quantity for symbol
func (b *PositionBook) HeldQuantity(symbol string) int64 {
	p, _ := b.Position(symbol)
	return p.Quantity
}

// OpenPositions returns every non-zero holding sorted by symbol
func (b *PositionBook) OpenPositions() []Position {
	b.mu.RLock()
	slots := make([]*slot, 0, len(b.slots))
	for _, s := range b.slots {
		slots = append(slots, s)
	}
	b.mu.RUnlock()

	var open []Position
	for _, s := range slots {
		s.mu.Lock()
		if s.quantity > 0 {
			open = append(open, s.snapshot())
		}
		s.mu.Unlock()
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Symbol < open[j].Symbol })
	return open
}

// ApplyEntry records a filled entry. Entry price and time are only set here.
func (b *PositionBook) ApplyEntry(symbol string, quantity int64, price float64, at time.Time) {
	s := b.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantity = quantity
	s.entryPrice = price
	s.entryTime = at
}

// ApplyExit zeroes the quantity and starts the exit cooldown. Entry price and
// time are left for the caller's P&L calculation.
func (b *PositionBook) ApplyExit(symbol string, at time.Time) {
	s := b.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.quantity = 0
	s.lastExit = at
}

// Restore seeds a position discovered on the venue at startup
func (b *PositionBook) Restore(p Position) {
	if p.Quantity <= 0 {
		return
	}
	b.ApplyEntry(p.Symbol, p.Quantity, p.EntryPrice, p.EntryTime)
}

type leaseKind int

const (
	leaseEntry leaseKind = iota
	leaseExit
)

// Lease marks a symbol as having a submission in flight until released
type Lease struct {
	slot *slot
	kind leaseKind
	once sync.Once
}

// Symbol returns the leased symbol
func (l *Lease) Symbol() string {
	return l.slot.symbol
}

// IsExit reports whether the lease was acquired for an exit
func (l *Lease) IsExit() bool {
	return l.kind == leaseExit
}

// Release clears the in-flight flag; safe to call more than once
func (l *Lease) Release() {
	l.once.Do(func() {
		l.slot.mu.Lock()
		l.slot.inFlight = false
		l.slot.mu.Unlock()
	})
}

func (b *PositionBook) acquire(symbol string, kind leaseKind) (*Lease, error) {
	s := b.slot(symbol)
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return nil, fmt.Errorf("%s: %w", symbol, ErrSubmissionInFlight)
	}

	switch kind {
	case leaseEntry:
		if s.quantity > 0 {
			return nil, fmt.Errorf("%s: %w", symbol, ErrPositionOpen)
		}
		if !s.lastExit.IsZero() && b.now().Sub(s.lastExit) < b.cooldown {
			return nil, fmt.Errorf("%s: %w (%s left)", symbol, ErrCooldown,
				(b.cooldown - b.now().Sub(s.lastExit)).Round(time.Second))
		}
	case leaseExit:
		if s.quantity <= 0 {
			return nil, fmt.Errorf("%s: %w", symbol, ErrNoPosition)
		}
	}

	s.inFlight = true
	return &Lease{slot: s, kind: kind}, nil
}
