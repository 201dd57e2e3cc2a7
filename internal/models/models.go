package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// SecurityType classifies an instrument for data layout and lookup purposes.
type SecurityType string

const (
	SecurityTypeEquity SecurityType = "equity"
	SecurityTypeOption SecurityType = "option"
	SecurityTypeFuture SecurityType = "future"
	SecurityTypeCrypto SecurityType = "crypto"
)

// Symbol identifies a tradable instrument.
//
// Ticker is the symbol as requested by the strategy; Permtick is the stable
// identifier factor/map files are stored under and survives ticker renames.
// Derivative symbols (options, continuous futures) carry a pointer to their
// Underlying: corporate-action data always lives with the underlying, but
// each derivative still gets its own cache slot (see factors.Provider).
type Symbol struct {
	Ticker       string       `json:"ticker"`
	Permtick     string       `json:"permtick"`
	SecurityType SecurityType `json:"security_type"`
	Market       string       `json:"market"` // e.g. "usa"
	Underlying   *Symbol      `json:"underlying,omitempty"`
}

// Canonical walks to the symbol that owns the factor data.
func (s Symbol) Canonical() Symbol {
	if s.Underlying != nil {
		return s.Underlying.Canonical()
	}
	return s
}

// Key is the cache key for this exact symbol. Two derivatives sharing an
// underlying still hash to different keys.
func (s Symbol) Key() string {
	return strings.ToLower(s.Market) + ":" + string(s.SecurityType) + ":" + strings.ToUpper(s.Ticker)
}

func (s Symbol) String() string {
	return strings.ToUpper(s.Ticker)
}

// SplitType distinguishes a confirmed split from an advance warning.
type SplitType int

const (
	// SplitTypeWarning announces an upcoming split. It carries no executed
	// ratio and must never be applied to a factor chain.
	SplitTypeWarning SplitType = iota
	// SplitTypeSplitOccurred is an executed split.
	SplitTypeSplitOccurred
)

// Split is a corporate action multiplying the share count.
type Split struct {
	Symbol         Symbol
	Time           time.Time
	Type           SplitType
	SplitFactor    decimal.Decimal // e.g. 0.5 for a 2:1 split
	ReferencePrice decimal.Decimal
}

func (s Split) String() string {
	return fmt.Sprintf("%s split: %s", s.Symbol, s.SplitFactor)
}

// Dividend is a per-share cash distribution.
type Dividend struct {
	Symbol         Symbol
	Time           time.Time
	Distribution   decimal.Decimal
	ReferencePrice decimal.Decimal // close on the day before the ex-date
}

func (d Dividend) String() string {
	return fmt.Sprintf("%s dividend: %s", d.Symbol, d.Distribution)
}

// TickerResolver maps a symbol at a point in time to the permtick its data is
// filed under. Real implementations consult map files; IdentityResolver is
// enough when no renames occurred.
type TickerResolver interface {
	Resolve(symbol Symbol, date time.Time) (string, error)
}

// IdentityResolver resolves every symbol to its own permtick (or ticker when
// the permtick is unset).
type IdentityResolver struct{}

func (IdentityResolver) Resolve(symbol Symbol, _ time.Time) (string, error) {
	if symbol.Permtick != "" {
		return symbol.Permtick, nil
	}
	return strings.ToUpper(symbol.Ticker), nil
}
