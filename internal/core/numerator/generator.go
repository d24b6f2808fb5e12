// Package numerator provides the contract for document auto-numbering.
// The postgres implementation lives in pkg/numerator; Memory serves the memory driver and tests.
package numerator

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Generator generates sequential document numbers.
type Generator interface {
	// GetNextNumber generates the next document number.
	// Pattern: PREFIX-YEAR-XXXXX (e.g., TR-2026-00001)
	GetNextNumber(ctx context.Context, cfg Config, opts *Options, period time.Time) (string, error)
}

// Key builds the sequence key for cfg and period.
func Key(cfg Config, period time.Time) string {
	switch cfg.Reset {
	case PeriodMonth:
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006_01"))
	case PeriodYear:
		return fmt.Sprintf("%s_%s", cfg.Prefix, period.Format("2006"))
	default:
		return cfg.Prefix
	}
}

// Format renders a number for cfg.
func Format(cfg Config, period time.Time, num int64) string {
	padWidth := cfg.PadWidth
	if padWidth == 0 {
		padWidth = 5
	}

	if cfg.IncludeYear {
		return fmt.Sprintf("%s-%s-%0*d", cfg.Prefix, period.Format("2006"), padWidth, num)
	}
	return fmt.Sprintf("%s-%0*d", cfg.Prefix, padWidth, num)
}

// Memory is an in-process Generator. Numbers restart with the process.
type Memory struct {
	mu       sync.Mutex
	counters map[string]int64
}

// NewMemory creates an in-process generator.
func NewMemory() *Memory {
	return &Memory{counters: make(map[string]int64)}
}

// GetNextNumber implements Generator.
func (m *Memory) GetNextNumber(_ context.Context, cfg Config, _ *Options, period time.Time) (string, error) {
	key := Key(cfg, period)

	m.mu.Lock()
	m.counters[key]++
	n := m.counters[key]
	m.mu.Unlock()

	return Format(cfg, period, n), nil
}

var _ Generator = (*Memory)(nil)
