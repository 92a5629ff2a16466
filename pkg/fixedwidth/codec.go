package fixedwidth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	DateFormat = "20060102"
	TimeFormat = "150405"

	NumberFiller = '0'
	SpaceFiller  = ' '
)

// Align controls on which side a value sits inside its column range.
type Align int

const (
	AlignLeft Align = iota
	AlignRight
)

// Builder renders values into exact column widths. Every Append call either
// writes exactly width bytes or returns an error and writes nothing.
type Builder struct {
	sb strings.Builder
}

func (b *Builder) Len() int { return b.sb.Len() }

func (b *Builder) String() string { return b.sb.String() }

// AppendWithFiller pads value to width with filler on the side opposite to align.
func (b *Builder) AppendWithFiller(value string, width int, filler byte, align Align) error {
	if len(value) > width {
		return fmt.Errorf("%w: %q exceeds %d columns", ErrFieldOverflow, value, width)
	}
	pad := strings.Repeat(string(filler), width-len(value))
	if align == AlignRight {
		b.sb.WriteString(pad)
		b.sb.WriteString(value)
		return nil
	}
	b.sb.WriteString(value)
	b.sb.WriteString(pad)
	return nil
}

func (b *Builder) AppendText(value string, width int) error {
	return b.AppendWithFiller(ASCII(value), width, SpaceFiller, AlignLeft)
}

// AppendTruncated is reserved for free-text fields the file layout allows to be cut.
func (b *Builder) AppendTruncated(value string, width int) {
	value = ASCII(value)
	if len(value) > width {
		value = value[:width]
	}
	_ = b.AppendWithFiller(value, width, SpaceFiller, AlignLeft)
}

func (b *Builder) AppendNumber(value int64, width int) error {
	if value < 0 {
		return fmt.Errorf("%w: negative value %d", ErrInvalidField, value)
	}
	return b.AppendWithFiller(strconv.FormatInt(value, 10), width, NumberFiller, AlignRight)
}

func (b *Builder) AppendDigits(value string, width int) error {
	value = strings.TrimSpace(value)
	if !isDigits(value) {
		return fmt.Errorf("%w: %q is not numeric", ErrInvalidField, value)
	}
	return b.AppendWithFiller(value, width, NumberFiller, AlignRight)
}

func (b *Builder) AppendDate(value time.Time) {
	b.sb.WriteString(value.Format(DateFormat))
}

// AppendOptionalDate writes spaces for the zero time.
func (b *Builder) AppendOptionalDate(value time.Time) {
	if value.IsZero() {
		b.AppendFiller(len(DateFormat))
		return
	}
	b.AppendDate(value)
}

func (b *Builder) AppendTime(value time.Time) {
	b.sb.WriteString(value.Format(TimeFormat))
}

// AppendAmount writes value with decimals implied digits, rounding half up.
func (b *Builder) AppendAmount(value decimal.Decimal, width, decimals int) error {
	if value.IsNegative() {
		return fmt.Errorf("%w: negative amount %s", ErrInvalidField, value.String())
	}
	scaled := value.Shift(int32(decimals)).Round(0)
	return b.AppendWithFiller(scaled.String(), width, NumberFiller, AlignRight)
}

func (b *Builder) AppendFiller(width int) {
	if width <= 0 {
		return
	}
	b.sb.WriteString(strings.Repeat(string(SpaceFiller), width))
}

// Slice returns line[start:end], treating columns past the end of a short
// line as spaces.
func Slice(line string, start, end int) string {
	if start >= len(line) {
		return strings.Repeat(" ", end-start)
	}
	if end > len(line) {
		return line[start:] + strings.Repeat(" ", end-len(line))
	}
	return line[start:end]
}

func ParseInt(value string) (int64, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || !isDigits(trimmed) {
		return 0, fmt.Errorf("%w: %q is not an integer", ErrInvalidField, value)
	}
	parsed, err := strconv.ParseInt(trimmed, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidField, err)
	}
	return parsed, nil
}

func ParseDate(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(DateFormat, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a date", ErrInvalidField, value)
	}
	return parsed, nil
}

// ParseOptionalDate yields the zero time for blank or all-zero columns.
func ParseOptionalDate(value string) (time.Time, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" || strings.Trim(trimmed, "0") == "" {
		return time.Time{}, nil
	}
	return ParseDate(trimmed)
}

func ParseTime(value string) (time.Time, error) {
	parsed, err := time.ParseInLocation(TimeFormat, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a time", ErrInvalidField, value)
	}
	return parsed, nil
}

func ParseAmount(value string, decimals int) (decimal.Decimal, error) {
	parsed, err := ParseInt(value)
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.New(parsed, int32(-decimals)), nil
}

func isDigits(value string) bool {
	if value == "" {
		return false
	}
	for i := 0; i < len(value); i++ {
		if value[i] < '0' || value[i] > '9' {
			return false
		}
	}
	return true
}
