package msfaa

import (
	"context"
	"testing"
	"time"

	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/internal/integration/integrationtest"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func responseFile(t *testing.T, responses ...Response) *fixedwidth.File {
	t.Helper()
	file, err := EncodeResponses("BC", 1, integrationtest.Now, responses)
	require.NoError(t, err)
	return file
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

func TestDecodeResponsesReadsSignedAndCancelled(t *testing.T) {
	signed := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	received := time.Date(2024, 8, 2, 0, 0, 0, 0, time.UTC)
	cancelled := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	file := responseFile(t,
		Response{RecordType: CodeSigned, MSFAANumber: "1000000001", SIN: "046454286", BorrowerSignedDate: &signed, ServiceProviderReceivedDate: &received},
		Response{RecordType: CodeCancelled, MSFAANumber: "1000000002", SIN: "046454294", CancelledDate: &cancelled, NewIssuingProvince: "ON"},
		Response{RecordType: CodeCancelled, MSFAANumber: "1000000003", SIN: "046454302"},
	)
	content, err := file.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeResponses(fixedwidth.SplitLines(content))
	require.NoError(t, err)
	require.Len(t, decoded.Records, 2)
	require.Len(t, decoded.Errors, 1)
	assert.Equal(t, 4, decoded.Errors[0].Line)

	assert.False(t, decoded.Records[0].Value.Cancelled())
	assert.True(t, signed.Equal(*decoded.Records[0].Value.BorrowerSignedDate))
	assert.True(t, decoded.Records[1].Value.Cancelled())
	assert.Equal(t, "ON", decoded.Records[1].Value.NewIssuingProvince)
}

func TestSendRequestsPerIntensity(t *testing.T) {
	h := integrationtest.New(t)
	student := h.Fixture.Student(t, "046454286")
	full := h.Fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	part := h.Fixture.NewApplication(t, student, "1000000002", appdomain.OfferingIntensityPartTime)
	require.NoError(t, h.DB.Model(full.MSFAA).Update("reference_application_id", full.Application.ID).Error)
	svc := newService(h)
	ctx := context.Background()

	result, err := svc.SendRequests(ctx, appdomain.OfferingIntensityFullTime, nil)
	require.NoError(t, err)
	assert.Equal(t, "TMSFAF000001.DAT", result.Name)
	require.Equal(t, 1, result.Records)

	lines := h.Uploaded(t, result.RemotePath)
	require.Len(t, lines, 3)
	detail := lines[1]
	assert.Len(t, detail, width)
	assert.Equal(t, "2001000000001046454286ABCD19980412", detail[:34])
	assert.Equal(t, "F", detail[323:324])

	var requested appdomain.MSFAANumber
	require.NoError(t, h.DB.First(&requested, full.MSFAA.ID).Error)
	assert.NotNil(t, requested.DateRequested)
	var untouched appdomain.MSFAANumber
	require.NoError(t, h.DB.First(&untouched, part.MSFAA.ID).Error)
	assert.Nil(t, untouched.DateRequested)

	partResult, err := svc.SendRequests(ctx, appdomain.OfferingIntensityPartTime, nil)
	require.NoError(t, err)
	assert.Equal(t, "TMSFAP000001.DAT", partResult.Name)
	assert.Equal(t, "P", h.Uploaded(t, partResult.RemotePath)[1][323:324])
}

func TestProcessResponsesSignsAndCancels(t *testing.T) {
	h := integrationtest.New(t)
	student := h.Fixture.Student(t, "046454286")
	first := h.Fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	second := h.Fixture.NewApplication(t, student, "1000000002", appdomain.OfferingIntensityPartTime)
	require.NoError(t, h.DB.Model(first.MSFAA).Update("date_signed", nil).Error)
	svc := newService(h)

	signed := time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)
	cancelled := time.Date(2024, 8, 20, 0, 0, 0, 0, time.UTC)
	h.PutResponse(t, "TMSFR000001.DAT", responseFile(t,
		Response{RecordType: CodeSigned, MSFAANumber: "1000000001", SIN: "046454286", BorrowerSignedDate: &signed, ServiceProviderReceivedDate: &signed},
		Response{RecordType: CodeCancelled, MSFAANumber: "1000000002", SIN: "046454286", CancelledDate: &cancelled, NewIssuingProvince: "AB"},
	))

	result, err := svc.ProcessResponses(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Processed())
	assert.True(t, h.Archived("TMSFR000001.DAT"))

	var got appdomain.MSFAANumber
	require.NoError(t, h.DB.First(&got, first.MSFAA.ID).Error)
	require.NotNil(t, got.DateSigned)
	assert.True(t, signed.Equal(got.DateSigned.UTC()))
	assert.True(t, got.Active())

	require.NoError(t, h.DB.First(&got, second.MSFAA.ID).Error)
	require.NotNil(t, got.CancelledDate)
	assert.Equal(t, "AB", got.NewIssuingProvince)
	assert.False(t, got.Active())
}

func TestRequestsRoundTrip(t *testing.T) {
	requests := []Request{
		{
			MSFAANumber: "0000000042", SIN: "046454286", InstitutionCode: "BCIT",
			BirthDate: time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC), LastName: "Doe", GivenName: "Jane",
			Gender: "F", MaritalStatus: "S", StudentNumber: "A0001",
			AddressLine1: "1 Main St", AddressLine2: "Unit 2", City: "Victoria", Province: "BC",
			PostalCode: "V8V1A1", Country: "CAN", Phone: "2505550100", Email: "jane@example.com",
			OfferingIntensity: "F",
		},
		{
			MSFAANumber: "0000000043", SIN: "123456782", InstitutionCode: "UBCV",
			BirthDate: time.Date(1990, 1, 2, 0, 0, 0, 0, time.UTC), LastName: "Lovelace", GivenName: "Ada",
			Gender: "F", MaritalStatus: "M", AddressLine1: "2 High St", City: "Vancouver", Province: "BC",
			PostalCode: "V6T1Z4", Country: "CAN", Phone: "6045550100", Email: "ada@example.com",
			OfferingIntensity: "P",
		},
	}
	file, err := EncodeRequests("BC", 3, integrationtest.Now, requests)
	require.NoError(t, err)
	content, err := file.Bytes()
	require.NoError(t, err)

	decoded, err := DecodeRequests(fixedwidth.SplitLines(content))
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, requests[0], decoded.Records[0].Value)
	assert.Equal(t, requests[1], decoded.Records[1].Value)
	assert.Equal(t, int64(2), decoded.Footer.Int(integration.FieldRecordCount))
	assert.Equal(t, int64(46454286+123456782), decoded.Footer.Int(integration.FieldHashTotal))
}

func TestResponsesRoundTrip(t *testing.T) {
	signed := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	received := time.Date(2024, 5, 3, 0, 0, 0, 0, time.UTC)
	cancelled := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	responses := []Response{
		{RecordType: CodeSigned, MSFAANumber: "0000000042", SIN: "046454286", BorrowerSignedDate: &signed, ServiceProviderReceivedDate: &received},
		{RecordType: CodeCancelled, MSFAANumber: "0000000043", SIN: "123456782", CancelledDate: &cancelled, NewIssuingProvince: "AB"},
	}
	content, err := responseFile(t, responses...).Bytes()
	require.NoError(t, err)

	decoded, err := DecodeResponses(fixedwidth.SplitLines(content))
	require.NoError(t, err)
	require.Empty(t, decoded.Errors)
	require.Len(t, decoded.Records, 2)
	assert.Equal(t, responses[0], decoded.Records[0].Value)
	assert.Equal(t, responses[1], decoded.Records[1].Value)
	assert.Equal(t, int64(2), decoded.Footer.Int(integration.FieldRecordCount))
	assert.Equal(t, int64(46454286+123456782), decoded.Footer.Int(integration.FieldHashTotal))
}
