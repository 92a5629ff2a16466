package fixedwidth

import (
	"time"

	"github.com/shopspring/decimal"
)

// Row holds field values keyed by field name. Parsed rows carry string,
// int64, time.Time and decimal.Decimal values depending on the field kind.
type Row map[string]any

func (r Row) Text(name string) string {
	v, _ := r[name].(string)
	return v
}

func (r Row) Int(name string) int64 {
	switch v := r[name].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case string:
		n, _ := ParseInt(v)
		return n
	default:
		return 0
	}
}

func (r Row) Date(name string) time.Time {
	v, _ := r[name].(time.Time)
	return v
}

// OptionalDate returns nil for a blank date column.
func (r Row) OptionalDate(name string) *time.Time {
	v, ok := r[name].(time.Time)
	if !ok || v.IsZero() {
		return nil
	}
	return &v
}

func (r Row) Amount(name string) decimal.Decimal {
	switch v := r[name].(type) {
	case decimal.Decimal:
		return v
	case int64:
		return decimal.NewFromInt(v)
	default:
		return decimal.Zero
	}
}
