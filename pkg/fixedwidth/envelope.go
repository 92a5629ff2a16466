package fixedwidth

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	LineSeparator = "\r\n"

	maxHashTotal = int64(999_999_999_999_999)
)

// Spec binds the three record layouts of a file family to its envelope rules:
// the footer carries the record count and the sum of the checksum key over
// every detail record.
type Spec struct {
	Name        string
	Header      Layout
	Detail      Layout
	Footer      Layout
	HeaderCode  string
	DetailCodes []string
	FooterCode  string

	CountField    string
	ChecksumField string
	ChecksumKey   string

	// CountIncludesEnvelope adds the header and footer lines to the record count.
	CountIncludesEnvelope bool
}

// File is a header, its detail rows and the footer computed from them.
type File struct {
	spec    Spec
	Header  Row
	Details []Row
	Footer  Row
}

// DetailLine is an unparsed detail line together with its one based line number.
type DetailLine struct {
	Number int
	Text   string
}

// Parsed is a file whose envelope has been verified.
type Parsed struct {
	Header  Row
	Footer  Row
	Details []DetailLine
}

// Build computes the footer for details. Header values whose names also
// appear in the footer layout are copied across.
func (s Spec) Build(header Row, details []Row) (*File, error) {
	var hashTotal int64
	for i, detail := range details {
		key, err := checksumValue(detail[s.ChecksumKey])
		if err != nil {
			return nil, &RecordError{Line: i + 2, Field: s.ChecksumKey, Value: fmt.Sprint(detail[s.ChecksumKey]), Err: err}
		}
		hashTotal += key
	}
	if hashTotal > maxHashTotal {
		return nil, fmt.Errorf("%s: %w: hash total %d", s.Name, ErrFieldOverflow, hashTotal)
	}

	footer := Row{
		s.CountField:    s.expectedCount(len(details)),
		s.ChecksumField: hashTotal,
	}
	for name, value := range header {
		if name == RecordTypeField {
			continue
		}
		if _, ok := s.Footer.Field(name); !ok {
			continue
		}
		if _, set := footer[name]; !set {
			footer[name] = value
		}
	}

	return &File{spec: s, Header: header, Details: details, Footer: footer}, nil
}

func (s Spec) expectedCount(details int) int64 {
	if s.CountIncludesEnvelope {
		return int64(details + 2)
	}
	return int64(details)
}

// Lines renders the header, every detail and the footer.
func (f *File) Lines() ([]string, error) {
	lines := make([]string, 0, len(f.Details)+2)
	header, err := f.spec.Header.Render(f.Header)
	if err != nil {
		return nil, withLine(err, 1)
	}
	lines = append(lines, header)
	for i, detail := range f.Details {
		line, err := f.spec.Detail.Render(detail)
		if err != nil {
			return nil, withLine(err, i+2)
		}
		lines = append(lines, line)
	}
	footer, err := f.spec.Footer.Render(f.Footer)
	if err != nil {
		return nil, withLine(err, len(f.Details)+2)
	}
	return append(lines, footer), nil
}

// Bytes renders the file with CRLF separators and a trailing separator.
func (f *File) Bytes() ([]byte, error) {
	lines, err := f.Lines()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	for _, line := range lines {
		buf.WriteString(line)
		buf.WriteString(LineSeparator)
	}
	return buf.Bytes(), nil
}

// Parse verifies the envelope of lines. Any violation is returned as an
// *EnvelopeError and the file must be rejected as a whole.
func (s Spec) Parse(lines []string) (*Parsed, error) {
	if len(lines) == 0 || !strings.HasPrefix(lines[0], s.HeaderCode) {
		actual := ""
		if len(lines) > 0 {
			actual = Slice(lines[0], 0, len(s.HeaderCode))
		}
		return nil, s.envelopeError(InvalidHeader, s.HeaderCode, actual)
	}
	header, err := s.Header.Parse(lines[0], 1)
	if err != nil {
		return nil, s.envelopeError(InvalidHeader, s.HeaderCode, err.Error())
	}

	last := lines[len(lines)-1]
	if len(lines) < 2 || !strings.HasPrefix(last, s.FooterCode) {
		return nil, s.envelopeError(InvalidFooter, s.FooterCode, Slice(last, 0, len(s.FooterCode)))
	}
	footer, err := s.Footer.Parse(last, len(lines))
	if err != nil {
		return nil, s.envelopeError(InvalidFooter, s.FooterCode, err.Error())
	}

	body := lines[1 : len(lines)-1]
	declared := footer.Int(s.CountField)
	if expected := s.expectedCount(len(body)); declared != expected {
		return nil, s.envelopeError(RecordCountMismatch, strconv.FormatInt(expected, 10), strconv.FormatInt(declared, 10))
	}

	details := make([]DetailLine, 0, len(body))
	var hashTotal int64
	for i, line := range body {
		// An unreadable key adds nothing, which surfaces as a checksum mismatch.
		if raw, err := s.Detail.ParseField(line, s.ChecksumKey); err == nil {
			if key, err := checksumValue(raw); err == nil {
				hashTotal += key
			}
		}
		details = append(details, DetailLine{Number: i + 2, Text: line})
	}
	if declaredHash := footer.Int(s.ChecksumField); declaredHash != hashTotal {
		return nil, s.envelopeError(ChecksumMismatch, strconv.FormatInt(hashTotal, 10), strconv.FormatInt(declaredHash, 10))
	}

	return &Parsed{Header: header, Footer: footer, Details: details}, nil
}

// MatchesDetail reports whether line starts with one of the detail codes.
func (s Spec) MatchesDetail(line string) bool {
	for _, code := range s.DetailCodes {
		if strings.HasPrefix(line, code) {
			return true
		}
	}
	return false
}

func (s Spec) envelopeError(kind EnvelopeErrorKind, expected, actual string) *EnvelopeError {
	return &EnvelopeError{Kind: kind, Spec: s.Name, Expected: expected, Actual: actual}
}

func checksumValue(value any) (int64, error) {
	switch v := value.(type) {
	case string:
		return ParseInt(v)
	case int64:
		return v, nil
	case int:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("%w: %T cannot be summed", ErrInvalidField, value)
	}
}

func withLine(err error, line int) error {
	return AsRecordError(line, err)
}

// SplitLines splits file content on CRLF or LF and drops trailing blank lines.
func SplitLines(content []byte) []string {
	text := strings.ReplaceAll(string(content), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, "\r")
	}
	return lines
}
