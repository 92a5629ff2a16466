package fixedwidth

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Kind is the column encoding of a field.
type Kind int

const (
	KindText Kind = iota
	KindDigits
	KindNumber
	KindDate
	KindTime
	KindAmount
	KindFiller
	KindLiteral
)

// Field describes one column range of a record. Position is zero based and
// assigned by NewLayout.
type Field struct {
	Name     string
	Kind     Kind
	Position int
	Length   int
	Decimals int
	Literal  string
	Truncate bool
	Optional bool
}

func (f Field) end() int { return f.Position + f.Length }

func Text(name string, length int) Field {
	return Field{Name: name, Kind: KindText, Length: length}
}

// TruncatedText is a free-text field that is cut to length instead of overflowing.
func TruncatedText(name string, length int) Field {
	return Field{Name: name, Kind: KindText, Length: length, Truncate: true}
}

// Digits holds identifiers such as SINs that must stay digit strings.
func Digits(name string, length int) Field {
	return Field{Name: name, Kind: KindDigits, Length: length}
}

func Number(name string, length int) Field {
	return Field{Name: name, Kind: KindNumber, Length: length}
}

// OptionalNumber renders blank for a missing value and parses blank as zero.
func OptionalNumber(name string, length int) Field {
	return Field{Name: name, Kind: KindNumber, Length: length, Optional: true}
}

func Date(name string) Field {
	return Field{Name: name, Kind: KindDate, Length: len(DateFormat)}
}

func OptionalDate(name string) Field {
	return Field{Name: name, Kind: KindDate, Length: len(DateFormat), Optional: true}
}

func Time(name string) Field {
	return Field{Name: name, Kind: KindTime, Length: len(TimeFormat)}
}

func Amount(name string, length, decimals int) Field {
	return Field{Name: name, Kind: KindAmount, Length: length, Decimals: decimals}
}

func Filler(length int) Field {
	return Field{Kind: KindFiller, Length: length}
}

func Literal(name, value string) Field {
	return Field{Name: name, Kind: KindLiteral, Length: len(value), Literal: value}
}

// RecordType is the leading literal code of a header, detail or footer line.
func RecordType(code string) Field {
	return Literal(RecordTypeField, code)
}

const RecordTypeField = "record_type"

// Repeat expands a group of fields count times, suffixing names with _1.._count.
func Repeat(count int, fields ...Field) []Field {
	out := make([]Field, 0, count*len(fields))
	for i := 1; i <= count; i++ {
		for _, f := range fields {
			if f.Name != "" {
				f.Name = IndexedName(f.Name, i)
			}
			out = append(out, f)
		}
	}
	return out
}

func IndexedName(name string, index int) string {
	return name + "_" + strconv.Itoa(index)
}

func Concat(parts ...[]Field) []Field {
	var out []Field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Layout is the ordered column table of one record type.
type Layout struct {
	Name   string
	Width  int
	Fields []Field
	index  map[string]int
}

// NewLayout assigns positions and panics when the fields do not fit width,
// since layouts are package-level declarations.
func NewLayout(name string, width int, fields ...Field) Layout {
	layout := Layout{Name: name, Width: width, index: make(map[string]int, len(fields))}
	position := 0
	for _, f := range fields {
		f.Position = position
		position += f.Length
		if f.Name != "" {
			if _, dup := layout.index[f.Name]; dup {
				panic(fmt.Sprintf("fixedwidth: layout %s declares %s twice", name, f.Name))
			}
			layout.index[f.Name] = len(layout.Fields)
		}
		layout.Fields = append(layout.Fields, f)
	}
	if position > width {
		panic(fmt.Sprintf("fixedwidth: layout %s needs %d columns, width is %d", name, position, width))
	}
	return layout
}

func (l Layout) Field(name string) (Field, bool) {
	i, ok := l.index[name]
	if !ok {
		return Field{}, false
	}
	return l.Fields[i], true
}

// Render writes row as a single line of exactly l.Width columns.
func (l Layout) Render(row Row) (string, error) {
	var b Builder
	for _, f := range l.Fields {
		if err := renderField(&b, f, row[f.Name]); err != nil {
			return "", &RecordError{Field: f.Name, Value: fmt.Sprint(row[f.Name]), Err: err}
		}
	}
	b.AppendFiller(l.Width - b.Len())
	return b.String(), nil
}

func renderField(b *Builder, f Field, value any) error {
	switch f.Kind {
	case KindLiteral:
		return b.AppendText(f.Literal, f.Length)
	case KindFiller:
		b.AppendFiller(f.Length)
		return nil
	case KindText:
		s, err := asString(value)
		if err != nil {
			return err
		}
		if f.Truncate {
			b.AppendTruncated(s, f.Length)
			return nil
		}
		return b.AppendText(s, f.Length)
	case KindDigits:
		switch v := value.(type) {
		case string:
			if v == "" && f.Optional {
				b.AppendFiller(f.Length)
				return nil
			}
			return b.AppendDigits(v, f.Length)
		default:
			n, err := asInt(value)
			if err != nil {
				return err
			}
			return b.AppendNumber(n, f.Length)
		}
	case KindNumber:
		if value == nil && f.Optional {
			b.AppendFiller(f.Length)
			return nil
		}
		n, err := asInt(value)
		if err != nil {
			return err
		}
		return b.AppendNumber(n, f.Length)
	case KindDate:
		t, err := asTime(value)
		if err != nil {
			return err
		}
		if t.IsZero() {
			if !f.Optional {
				return fmt.Errorf("%w: date is required", ErrInvalidField)
			}
			b.AppendFiller(f.Length)
			return nil
		}
		b.AppendDate(t)
		return nil
	case KindTime:
		t, err := asTime(value)
		if err != nil {
			return err
		}
		b.AppendTime(t)
		return nil
	case KindAmount:
		d, err := asDecimal(value)
		if err != nil {
			return err
		}
		return b.AppendAmount(d, f.Length, f.Decimals)
	default:
		return fmt.Errorf("%w: unknown kind %d", ErrInvalidField, f.Kind)
	}
}

// Parse reads every named field of line. lineNumber is one based and only
// used for error reporting.
func (l Layout) Parse(line string, lineNumber int) (Row, error) {
	if len(line) > l.Width {
		return nil, &RecordError{Line: lineNumber, Err: fmt.Errorf("%w: %d columns, expected %d", ErrLineWidth, len(line), l.Width)}
	}
	row := make(Row, len(l.index))
	for _, f := range l.Fields {
		if f.Name == "" {
			continue
		}
		raw := Slice(line, f.Position, f.end())
		value, err := parseField(f, raw)
		if err != nil {
			return nil, &RecordError{Line: lineNumber, Field: f.Name, Value: raw, Err: err}
		}
		row[f.Name] = value
	}
	return row, nil
}

// ParseField reads a single named field without validating the rest of line.
func (l Layout) ParseField(line, name string) (any, error) {
	f, ok := l.Field(name)
	if !ok {
		return nil, fmt.Errorf("%w: layout %s has no field %s", ErrInvalidField, l.Name, name)
	}
	return parseField(f, Slice(line, f.Position, f.end()))
}

func parseField(f Field, raw string) (any, error) {
	switch f.Kind {
	case KindLiteral:
		if raw != f.Literal {
			return nil, fmt.Errorf("%w: expected %q", ErrUnexpectedRecordType, f.Literal)
		}
		return raw, nil
	case KindText:
		return strings.TrimSpace(raw), nil
	case KindDigits:
		trimmed := strings.TrimSpace(raw)
		if trimmed == "" && f.Optional {
			return "", nil
		}
		if !isDigits(trimmed) {
			return nil, fmt.Errorf("%w: not numeric", ErrInvalidField)
		}
		return trimmed, nil
	case KindNumber:
		if strings.TrimSpace(raw) == "" && f.Optional {
			return int64(0), nil
		}
		return ParseInt(raw)
	case KindDate:
		if f.Optional {
			return ParseOptionalDate(raw)
		}
		return ParseDate(raw)
	case KindTime:
		return ParseTime(raw)
	case KindAmount:
		return ParseAmount(raw, f.Decimals)
	default:
		return nil, nil
	}
}

func asString(value any) (string, error) {
	switch v := value.(type) {
	case nil:
		return "", nil
	case string:
		return v, nil
	case fmt.Stringer:
		return v.String(), nil
	default:
		return "", fmt.Errorf("%w: %T is not text", ErrInvalidField, value)
	}
}

func asInt(value any) (int64, error) {
	switch v := value.(type) {
	case nil:
		return 0, nil
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint64:
		return int64(v), nil
	case string:
		return ParseInt(v)
	case decimal.Decimal:
		if !v.IsInteger() {
			return 0, fmt.Errorf("%w: %s is not a whole number", ErrInvalidField, v.String())
		}
		return v.IntPart(), nil
	default:
		return 0, fmt.Errorf("%w: %T is not a number", ErrInvalidField, value)
	}
}

func asTime(value any) (time.Time, error) {
	switch v := value.(type) {
	case nil:
		return time.Time{}, nil
	case time.Time:
		return v, nil
	case *time.Time:
		if v == nil {
			return time.Time{}, nil
		}
		return *v, nil
	default:
		return time.Time{}, fmt.Errorf("%w: %T is not a time", ErrInvalidField, value)
	}
}

func asDecimal(value any) (decimal.Decimal, error) {
	switch v := value.(type) {
	case nil:
		return decimal.Zero, nil
	case decimal.Decimal:
		return v, nil
	case int64:
		return decimal.NewFromInt(v), nil
	case int:
		return decimal.NewFromInt(int64(v)), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T is not an amount", ErrInvalidField, value)
	}
}
