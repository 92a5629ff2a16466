package fixedwidth

import "strings"

// Record is a decoded detail together with the line it came from.
type Record[T any] struct {
	Line  int
	Value T
}

// Decoded is the outcome of reading a file whose envelope was valid. Errors
// lists the detail lines that were skipped.
type Decoded[T any] struct {
	Header  Row
	Footer  Row
	Records []Record[T]
	Errors  []*RecordError
}

// Encode maps records to rows and builds the file envelope around them.
func Encode[T any](spec Spec, header Row, records []T, toRow func(T) (Row, error)) (*File, error) {
	rows := make([]Row, 0, len(records))
	for i, record := range records {
		row, err := toRow(record)
		if err != nil {
			return nil, AsRecordError(i+2, err)
		}
		rows = append(rows, row)
	}
	return spec.Build(header, rows)
}

// Decode verifies the envelope and maps every detail line with fromRow.
// Envelope violations abort; per-line failures are collected in Errors.
func Decode[T any](spec Spec, lines []string, fromRow func(Row) (T, error)) (*Decoded[T], error) {
	parsed, err := spec.Parse(lines)
	if err != nil {
		return nil, err
	}

	out := &Decoded[T]{Header: parsed.Header, Footer: parsed.Footer}
	for _, line := range parsed.Details {
		if !spec.MatchesDetail(line.Text) {
			out.Errors = append(out.Errors, &RecordError{
				Line:  line.Number,
				Field: RecordTypeField,
				Value: strings.TrimSpace(Slice(line.Text, 0, detailCodeWidth(spec))),
				Err:   ErrUnexpectedRecordType,
			})
			continue
		}
		row, err := spec.Detail.Parse(line.Text, line.Number)
		if err != nil {
			out.Errors = append(out.Errors, AsRecordError(line.Number, err))
			continue
		}
		value, err := fromRow(row)
		if err != nil {
			out.Errors = append(out.Errors, AsRecordError(line.Number, err))
			continue
		}
		out.Records = append(out.Records, Record[T]{Line: line.Number, Value: value})
	}
	return out, nil
}

func detailCodeWidth(spec Spec) int {
	if len(spec.DetailCodes) == 0 {
		return 0
	}
	return len(spec.DetailCodes[0])
}
