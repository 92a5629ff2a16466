package fixedwidth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type person struct {
	SIN  string
	Name string
}

var testSpec = Spec{
	Name: "test",
	Header: NewLayout("test.header", 30,
		RecordType("100"), Text("originator", 4), Number("batch_number", 6), Date("process_date")),
	Detail: NewLayout("test.detail", 30,
		RecordType("200"), Digits("sin", 9), Text("name", 10)),
	Footer: NewLayout("test.footer", 40,
		RecordType("999"), Text("originator", 4), Number("record_count", 9), Number("hash_total", 15)),
	HeaderCode:    "100",
	DetailCodes:   []string{"200"},
	FooterCode:    "999",
	CountField:    "record_count",
	ChecksumField: "hash_total",
	ChecksumKey:   "sin",
}

func personRow(p person) (Row, error) {
	return Row{"sin": p.SIN, "name": p.Name}, nil
}

func rowPerson(r Row) (person, error) {
	return person{SIN: r.Text("sin"), Name: r.Text("name")}, nil
}

func testHeader() Row {
	return Row{"originator": "BC", "batch_number": int64(3), "process_date": time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)}
}

func encodeLines(t *testing.T, people []person) []string {
	t.Helper()
	file, err := Encode(testSpec, testHeader(), people, personRow)
	require.NoError(t, err)
	content, err := file.Bytes()
	require.NoError(t, err)
	return SplitLines(content)
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	people := []person{{SIN: "046454286", Name: "Ada"}, {SIN: "123456782", Name: "Grace"}}
	file, err := Encode(testSpec, testHeader(), people, personRow)
	require.NoError(t, err)

	content, err := file.Bytes()
	require.NoError(t, err)
	assert.Contains(t, string(content), "\r\n")

	lines := SplitLines(content)
	require.Len(t, lines, 4)
	for _, line := range lines[:3] {
		assert.Len(t, line, 30)
	}
	assert.Len(t, lines[3], 40)
	assert.Equal(t, "999BC  000000002000000169911068", lines[3][:31])

	decoded, err := Decode(testSpec, lines, rowPerson)
	require.NoError(t, err)
	assert.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, people[0], decoded.Records[0].Value)
	assert.Equal(t, 3, decoded.Records[1].Line)
	assert.Equal(t, int64(3), decoded.Header.Int("batch_number"))
}

func TestDecodeRejectsCountMismatch(t *testing.T) {
	lines := encodeLines(t, []person{{SIN: "046454286", Name: "Ada"}})
	lines = append(lines[:1], lines[2:]...)

	decoded, err := Decode(testSpec, lines, rowPerson)
	assert.Nil(t, decoded)
	var envErr *EnvelopeError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, RecordCountMismatch, envErr.Kind)
	assert.True(t, errors.Is(err, ErrRecordCountMismatch))
}

func TestDecodeRejectsChecksumMismatch(t *testing.T) {
	lines := encodeLines(t, []person{{SIN: "046454286", Name: "Ada"}})
	lines[1] = "200046454287Ada"

	_, err := Decode(testSpec, lines, rowPerson)
	assert.True(t, errors.Is(err, ErrChecksumMismatch))
}

func TestDecodeRejectsBadEnvelope(t *testing.T) {
	lines := encodeLines(t, nil)

	_, err := Decode(testSpec, []string{"XXX", lines[1]}, rowPerson)
	assert.True(t, errors.Is(err, ErrInvalidHeader))

	_, err = Decode(testSpec, []string{lines[0]}, rowPerson)
	assert.True(t, errors.Is(err, ErrInvalidFooter))

	_, err = Decode(testSpec, nil, rowPerson)
	assert.True(t, errors.Is(err, ErrInvalidHeader))
}

func TestDecodeSkipsBadRecords(t *testing.T) {
	lines := encodeLines(t, []person{{SIN: "046454286", Name: "Ada"}, {SIN: "123456782", Name: "Grace"}})
	lines[2] = "300123456782Grace"

	decoded, err := Decode(testSpec, lines, rowPerson)
	require.NoError(t, err)
	require.Len(t, decoded.Records, 1)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, 3, decoded.Errors[0].Line)
	assert.True(t, errors.Is(decoded.Errors[0], ErrUnexpectedRecordType))
}

func TestSplitLinesAcceptsLF(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, SplitLines([]byte("a\nb\n\n")))
	assert.Equal(t, []string{"a", "b"}, SplitLines([]byte("a\r\nb\r\n")))
}
