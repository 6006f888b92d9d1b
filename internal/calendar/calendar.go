package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const dateLayout = "2006-01-02"

// Event is one blackout-causing calendar entry such as an earnings release.
// An empty Symbol applies to every watched symbol.
type Event struct {
	Date   string `json:"date" yaml:"date"`
	Symbol string `json:"symbol,omitempty" yaml:"symbol,omitempty"`
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`
}

// Checker answers whether a trading day is blacked out for the watched symbols
type Checker interface {
	IsBlackout(ctx context.Context, day time.Time) (bool, string, error)
}

// Calendar is an in-memory event list filtered to a watchlist
type Calendar struct {
	byDay   map[string][]Event
	symbols map[string]bool
}

// New builds a calendar for the watched symbols
func New(events []Event, symbols []string) (*Calendar, error) {
	c := &Calendar{
		byDay:   make(map[string][]Event),
		symbols: make(map[string]bool, len(symbols)),
	}
	for _, s := range symbols {
		c.symbols[strings.ToUpper(s)] = true
	}
	for i, e := range events {
		if _, err := time.Parse(dateLayout, e.Date); err != nil {
			return nil, fmt.Errorf("event %d: invalid date %q: %w", i, e.Date, err)
		}
		e.Symbol = strings.ToUpper(strings.TrimSpace(e.Symbol))
		c.byDay[e.Date] = append(c.byDay[e.Date], e)
	}
	return c, nil
}

// LoadFile reads events from a YAML or JSON file, chosen by extension
func LoadFile(path string, symbols []string) (*Calendar, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read calendar file: %w", err)
	}

	var events []Event
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &events)
	default:
		err = json.Unmarshal(data, &events)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse calendar file %s: %w", path, err)
	}
	return New(events, symbols)
}

// IsBlackout reports whether day has an event for a watched symbol. The
// returned label is the first affected symbol, or the event reason for
// market-wide events.
func (c *Calendar) IsBlackout(ctx context.Context, day time.Time) (bool, string, error) {
	events := c.byDay[day.Format(dateLayout)]
	var hits []string
	for _, e := range events {
		switch {
		case e.Symbol == "":
			label := e.Reason
			if label == "" {
				label = "market event"
			}
			hits = append(hits, label)
		case c.symbols[e.Symbol]:
			hits = append(hits, e.Symbol)
		}
	}
	if len(hits) == 0 {
		return false, "", nil
	}
	sort.Strings(hits)
	return true, hits[0], nil
}

// Len returns the number of loaded events
func (c *Calendar) Len() int {
	n := 0
	for _, events := range c.byDay {
		n += len(events)
	}
	return n
}

// None is a Checker with no events
type None struct{}

// IsBlackout always returns false
func (None) IsBlackout(ctx context.Context, day time.Time) (bool, string, error) {
	return false, "", nil
}
