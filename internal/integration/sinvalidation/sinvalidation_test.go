package sinvalidation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/internal/integration/integrationtest"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func responseLines(t *testing.T, responses ...Response) []string {
	t.Helper()
	file, err := EncodeResponses("BC", 1, integrationtest.Now, responses)
	require.NoError(t, err)
	content, err := file.Bytes()
	require.NoError(t, err)
	return fixedwidth.SplitLines(content)
}

func TestEncodeRequestsLayout(t *testing.T) {
	file, err := EncodeRequests("BC", 7, integrationtest.Now, []Request{
		{ValidationID: 42, SIN: "046454286", FirstName: "Zoë", LastName: strings.Repeat("X", 30), BirthDate: time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC), Gender: "F"},
		{ValidationID: 43, SIN: "123456782", FirstName: "Ada", LastName: "Lovelace", BirthDate: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), Gender: "F"},
	})
	require.NoError(t, err)
	lines, err := file.Lines()
	require.NoError(t, err)
	require.Len(t, lines, 4)

	for _, line := range lines {
		assert.Len(t, line, width)
	}
	assert.Equal(t, "100BC  00000720240901120000", lines[0][:27])
	assert.Equal(t, "200"+"0000000000000000042"+"046454286"+"Zoe            "+strings.Repeat("X", 25)+"19980412F", lines[1][:80])
	assert.Equal(t, "999BC  000000002000000169911068", lines[3][:31])
}

func TestDecodeResponsesRejectsCountMismatch(t *testing.T) {
	responses := make([]Response, 4)
	for i := range responses {
		responses[i] = Response{ValidationID: int64(i + 1), SIN: "046454286", SINStatus: SINStatusValid}
	}
	lines := responseLines(t, responses...)
	footer := lines[len(lines)-1]
	lines[len(lines)-1] = footer[:7] + "000000005" + footer[16:]

	_, err := DecodeResponses(lines)
	require.ErrorIs(t, err, fixedwidth.ErrRecordCountMismatch)

	var envErr *fixedwidth.EnvelopeError
	require.ErrorAs(t, err, &envErr)
	assert.Equal(t, "4", envErr.Expected)
	assert.Equal(t, "5", envErr.Actual)
}

func TestDecodeResponsesSkipsMalformedRecord(t *testing.T) {
	expiry := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	lines := responseLines(t,
		Response{ValidationID: 1, SIN: "046454286", SINStatus: "1", SINExpiryDate: &expiry},
		Response{ValidationID: 2, SIN: "046454286", SINStatus: "2"},
	)
	// corrupt the expiry date of the second record, leaving the SIN intact
	lines[2] = lines[2][:37] + "2024AB01" + lines[2][45:]

	decoded, err := DecodeResponses(lines)
	require.NoError(t, err)
	require.Len(t, decoded.Records, 1)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, 3, decoded.Errors[0].Line)
	assert.Equal(t, "sin_expiry_date", decoded.Errors[0].Field)
	require.NotNil(t, decoded.Records[0].Value.SINExpiryDate)
	assert.True(t, expiry.Equal(*decoded.Records[0].Value.SINExpiryDate))
}

func newService(h *integrationtest.Harness) *Service {
	return NewService(Params{
		DB:        h.DB,
		Log:       zap.NewNop(),
		Clock:     h.Clock,
		Config:    h.Config,
		Transport: h.Transport,
		Runner:    h.Runner,
		Sequences: h.Sequences,
	})
}

func TestSendRequestsUploadsAndMarksSent(t *testing.T) {
	h := integrationtest.New(t)
	student := h.Fixture.Student(t, "046454286")
	svc := newService(h)
	ctx := context.Background()

	result, err := svc.SendRequests(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, "TSINV000001.DAT", result.Name)
	assert.Equal(t, 1, result.Records)

	lines := h.Uploaded(t, result.RemotePath)
	require.Len(t, lines, 3)
	assert.Equal(t, "046454286", lines[1][22:31])

	var validation studentdomain.SINValidation
	require.NoError(t, h.DB.First(&validation, *student.SINValidationID).Error)
	require.NotNil(t, validation.DateSent)
	assert.Equal(t, "TSINV000001.DAT", validation.FileSent)
	assert.Equal(t, "Jane", validation.GivenNameSent)

	again, err := svc.SendRequests(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, again.Name)
}

func TestProcessResponsesUpdatesValidation(t *testing.T) {
	h := integrationtest.New(t)
	student := h.Fixture.Student(t, "046454286")
	svc := newService(h)

	file, err := EncodeResponses("BC", 1, integrationtest.Now, []Response{
		{ValidationID: *student.SINValidationID, SIN: "046454286", SINStatus: "3", ValidSINCheck: "N", BirthDateCheck: "Y", LastNameCheck: "Y", FirstNameCheck: "Y", GenderCheck: "Y"},
		{ValidationID: 999, SIN: "046454286", SINStatus: "1"},
	})
	require.NoError(t, err)
	h.PutResponse(t, "TSINR000001.DAT", file)
	h.PutRaw(t, "TSINR000002.DAT", []byte("garbage\r\n"))

	result, err := svc.ProcessResponses(context.Background(), nil)
	require.ErrorIs(t, err, fixedwidth.ErrInvalidHeader)
	assert.Equal(t, 1, result.Processed())
	assert.True(t, h.Archived("TSINR000001.DAT"))
	assert.True(t, h.Pending("TSINR000002.DAT"))

	var validation studentdomain.SINValidation
	require.NoError(t, h.DB.First(&validation, *student.SINValidationID).Error)
	require.NotNil(t, validation.IsValidSIN)
	assert.False(t, *validation.IsValidSIN)
	assert.Equal(t, "3", validation.SINStatus)
	assert.Equal(t, "N", validation.ValidSINCheck)
	assert.Equal(t, "TSINR000001.DAT", validation.FileReceived)
}

func TestRequestsRoundTrip(t *testing.T) {
	requests := []Request{
		{ValidationID: 42, SIN: "046454286", FirstName: "Jane", LastName: "Doe", BirthDate: time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC), Gender: "F"},
		{ValidationID: 43, SIN: "123456782", FirstName: "Ada", LastName: "Lovelace", BirthDate: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), Gender: "X"},
	}
	file, err := EncodeRequests("BC", 7, integrationtest.Now, requests)
	require.NoError(t, err)
	content, err := file.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeRequests(fixedwidth.SplitLines(content))
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	for i, record := range decoded.Records {
		assert.Equal(t, requests[i], record.Value)
	}
	assert.Equal(t, int64(7), decoded.Header.Int(integration.FieldBatchNumber))
	assert.Equal(t, int64(2), decoded.Footer.Int(integration.FieldRecordCount))
	assert.Equal(t, int64(46454286+123456782), decoded.Footer.Int(integration.FieldHashTotal))
}

func TestResponsesRoundTrip(t *testing.T) {
	expiry := time.Date(2030, 1, 31, 0, 0, 0, 0, time.UTC)
	responses := []Response{
		{ValidationID: 1, SIN: "046454286", SINStatus: "1", ValidSINCheck: "Y", BirthDateCheck: "Y", LastNameCheck: "Y", FirstNameCheck: "Y", GenderCheck: "Y", SINExpiryDate: &expiry},
		{ValidationID: 2, SIN: "123456782", SINStatus: "2", ValidSINCheck: "N", BirthDateCheck: "Y", LastNameCheck: "N", FirstNameCheck: "Y", GenderCheck: "N"},
	}
	decoded, err := DecodeResponses(responseLines(t, responses...))
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, responses[0], decoded.Records[0].Value)
	assert.Equal(t, responses[1], decoded.Records[1].Value)
	assert.Nil(t, decoded.Records[1].Value.SINExpiryDate)
	assert.Equal(t, int64(2), decoded.Footer.Int(integration.FieldRecordCount))
	assert.Equal(t, int64(46454286+123456782), decoded.Footer.Int(integration.FieldHashTotal))
}
