package contracts

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// ⭐ SSOT: 패널/팩터/조인 행 정의는 여기서만
// 결측값은 모두 math.NaN() 으로 표현한다.

// DateLayout is the canonical day format used across the system
const DateLayout = "2006-01-02"

// ErrUnknownField is returned when a caller asks for a column that does not exist
var ErrUnknownField = errors.New("unknown field")

// PanelRow is one (date, ticker) sentiment observation
type PanelRow struct {
	Date        time.Time `json:"date"`
	Ticker      string    `json:"ticker"`
	Sentiment   float64   `json:"sentiment"`    // NaN = missing
	SourceCount int       `json:"source_count"` // 0 = unknown
}

// FactorRow is the output of the factor stage (S2)
type FactorRow struct {
	Date            time.Time `json:"date"`
	Ticker          string    `json:"ticker"`
	Sentiment       float64   `json:"sentiment"`
	LaggedSentiment float64   `json:"sent_l1"`
	Mean3           float64   `json:"sent_mean3"`
	Std3            float64   `json:"sent_std3"`
	ShockSentiment  float64   `json:"sent_shock"`
}

// ReturnRow is a forward return attached to its signal date
type ReturnRow struct {
	Date      time.Time `json:"date"`
	Ticker    string    `json:"ticker"`
	FwdReturn float64   `json:"fwd_return"`
}

// JoinedRow is a factor row matched with its forward return
type JoinedRow struct {
	Date            time.Time `json:"date"`
	Ticker          string    `json:"ticker"`
	Sentiment       float64   `json:"sentiment"`
	LaggedSentiment float64   `json:"sent_l1"`
	ShockSentiment  float64   `json:"sent_shock"`
	FwdReturn       float64   `json:"fwd_return"`
}

// Field names a numeric column of JoinedRow
type Field string

const (
	FieldSentiment       Field = "sentiment"
	FieldLaggedSentiment Field = "SENT_L1"
	FieldShockSentiment  Field = "SENT_SHOCK"
	FieldFwdReturn       Field = "fwd_return"
)

// Fields lists every addressable column
var Fields = []Field{FieldSentiment, FieldLaggedSentiment, FieldShockSentiment, FieldFwdReturn}

// ParseField validates a column name
func ParseField(name string) (Field, error) {
	for _, f := range Fields {
		if string(f) == name {
			return f, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownField, name)
}

// Value returns the column value for the given field
func (r *JoinedRow) Value(f Field) (float64, error) {
	switch f {
	case FieldSentiment:
		return r.Sentiment, nil
	case FieldLaggedSentiment:
		return r.LaggedSentiment, nil
	case FieldShockSentiment:
		return r.ShockSentiment, nil
	case FieldFwdReturn:
		return r.FwdReturn, nil
	default:
		return math.NaN(), fmt.Errorf("%w: %q", ErrUnknownField, string(f))
	}
}

// PriceBar is a daily close for a ticker
type PriceBar struct {
	Date   time.Time `json:"date"`
	Ticker string    `json:"ticker"`
	Close  float64   `json:"close"` // NaN = missing
}

// Day truncates a timestamp to its UTC calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsMissing reports whether v represents an undefined value
func IsMissing(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}
