package numerator

// Strategy selects how a Generator draws sequence values.
type Strategy int

const (
	// StrategyStrict takes every value from the store: no gaps. Goods
	// receipts and purchase returns use it.
	StrategyStrict Strategy = iota
	// StrategyCached reserves a range per trip and hands it out in memory;
	// a restart leaves a gap. Transfers and picking lists use it.
	StrategyCached
)

// Options tune one GetNextNumber call.
type Options struct {
	Strategy Strategy
	// RangeSize is the cached range length; 50 when zero.
	RangeSize int64
}

// DefaultOptions is StrategyStrict.
func DefaultOptions() *Options {
	return &Options{Strategy: StrategyStrict}
}

// Period controls when a sequence starts over.
type Period string

const (
	PeriodYear  Period = "year"
	PeriodMonth Period = "month"
	PeriodNever Period = "never"
)

// Config shapes a document number such as TR-2026-00001.
type Config struct {
	Prefix      string
	IncludeYear bool
	// PadWidth is the minimum digit count; 5 when zero.
	PadWidth int
	Reset    Period
}

// DefaultConfig numbers per calendar year with the year in the number.
func DefaultConfig(prefix string) Config {
	return Config{Prefix: prefix, IncludeYear: true, PadWidth: 5, Reset: PeriodYear}
}
