package msfaa

import (
	"fmt"
	"time"

	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const width = 600

const (
	CodeSigned    = "200"
	CodeCancelled = "201"
)

// Request asks the service provider to register a new agreement number.
type Request struct {
	MSFAANumber       string
	SIN               string
	InstitutionCode   string
	BirthDate         time.Time
	LastName          string
	GivenName         string
	Gender            string
	MaritalStatus     string
	StudentNumber     string
	AddressLine1      string
	AddressLine2      string
	City              string
	Province          string
	PostalCode        string
	Country           string
	Phone             string
	Email             string
	OfferingIntensity string
}

// Response is either a signed or a cancelled agreement.
type Response struct {
	RecordType                  string
	MSFAANumber                 string
	SIN                         string
	BorrowerSignedDate          *time.Time
	ServiceProviderReceivedDate *time.Time
	CancelledDate               *time.Time
	NewIssuingProvince          string
}

func (r Response) Cancelled() bool { return r.RecordType == CodeCancelled }

var RequestSpec = integration.StandardSpec("msfaa.request", width,
	fixedwidth.NewLayout("msfaa.request.detail", width,
		fixedwidth.RecordType("200"),
		fixedwidth.Number("msfaa_number", 10),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.Text("institution_code", 4),
		fixedwidth.Date("birth_date"),
		fixedwidth.TruncatedText("last_name", 25),
		fixedwidth.TruncatedText("given_name", 15),
		fixedwidth.Text("gender", 1),
		fixedwidth.Text("marital_status", 1),
		fixedwidth.TruncatedText("student_number", 12),
		fixedwidth.TruncatedText("address_line_1", 40),
		fixedwidth.TruncatedText("address_line_2", 40),
		fixedwidth.TruncatedText("city", 25),
		fixedwidth.Text("province", 4),
		fixedwidth.Text("postal_code", 16),
		fixedwidth.TruncatedText("country", 20),
		fixedwidth.Text("phone", 20),
		fixedwidth.TruncatedText("email", 70),
		fixedwidth.Text("offering_intensity", 1),
	),
)

var ResponseSpec = integration.StandardSpec("msfaa.response", width,
	fixedwidth.NewLayout("msfaa.response.detail", width,
		fixedwidth.Text(fixedwidth.RecordTypeField, 3),
		fixedwidth.Number("msfaa_number", 10),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.OptionalDate("borrower_signed_date"),
		fixedwidth.OptionalDate("service_provider_received_date"),
		fixedwidth.OptionalDate("cancelled_date"),
		fixedwidth.Text("new_issuing_province", 4),
	),
	CodeSigned, CodeCancelled,
)

func requestRow(r Request) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		"msfaa_number":       r.MSFAANumber,
		integration.FieldSIN: r.SIN,
		"institution_code":   r.InstitutionCode,
		"birth_date":         r.BirthDate,
		"last_name":          r.LastName,
		"given_name":         r.GivenName,
		"gender":             r.Gender,
		"marital_status":     r.MaritalStatus,
		"student_number":     r.StudentNumber,
		"address_line_1":     r.AddressLine1,
		"address_line_2":     r.AddressLine2,
		"city":               r.City,
		"province":           r.Province,
		"postal_code":        r.PostalCode,
		"country":            r.Country,
		"phone":              r.Phone,
		"email":              r.Email,
		"offering_intensity": r.OfferingIntensity,
	}, nil
}

func requestFromRow(row fixedwidth.Row) (Request, error) {
	return Request{
		MSFAANumber:       fmt.Sprintf("%010d", row.Int("msfaa_number")),
		SIN:               row.Text(integration.FieldSIN),
		InstitutionCode:   row.Text("institution_code"),
		BirthDate:         row.Date("birth_date"),
		LastName:          row.Text("last_name"),
		GivenName:         row.Text("given_name"),
		Gender:            row.Text("gender"),
		MaritalStatus:     row.Text("marital_status"),
		StudentNumber:     row.Text("student_number"),
		AddressLine1:      row.Text("address_line_1"),
		AddressLine2:      row.Text("address_line_2"),
		City:              row.Text("city"),
		Province:          row.Text("province"),
		PostalCode:        row.Text("postal_code"),
		Country:           row.Text("country"),
		Phone:             row.Text("phone"),
		Email:             row.Text("email"),
		OfferingIntensity: row.Text("offering_intensity"),
	}, nil
}

func responseRow(r Response) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		fixedwidth.RecordTypeField:       r.RecordType,
		"msfaa_number":                   r.MSFAANumber,
		integration.FieldSIN:             r.SIN,
		"borrower_signed_date":           r.BorrowerSignedDate,
		"service_provider_received_date": r.ServiceProviderReceivedDate,
		"cancelled_date":                 r.CancelledDate,
		"new_issuing_province":           r.NewIssuingProvince,
	}, nil
}

func responseFromRow(row fixedwidth.Row) (Response, error) {
	r := Response{
		RecordType:                  row.Text(fixedwidth.RecordTypeField),
		MSFAANumber:                 fmt.Sprintf("%010d", row.Int("msfaa_number")),
		SIN:                         row.Text(integration.FieldSIN),
		BorrowerSignedDate:          row.OptionalDate("borrower_signed_date"),
		ServiceProviderReceivedDate: row.OptionalDate("service_provider_received_date"),
		CancelledDate:               row.OptionalDate("cancelled_date"),
		NewIssuingProvince:          row.Text("new_issuing_province"),
	}
	switch {
	case r.Cancelled() && r.CancelledDate == nil:
		return Response{}, &fixedwidth.RecordError{Field: "cancelled_date", Err: fmt.Errorf("%w: cancelled record without date", fixedwidth.ErrInvalidField)}
	case !r.Cancelled() && r.BorrowerSignedDate == nil:
		return Response{}, &fixedwidth.RecordError{Field: "borrower_signed_date", Err: fmt.Errorf("%w: signed record without date", fixedwidth.ErrInvalidField)}
	}
	return r, nil
}

func EncodeRequests(originator string, batch int64, now time.Time, requests []Request) (*fixedwidth.File, error) {
	return fixedwidth.Encode(RequestSpec, integration.StandardHeaderRow(originator, batch, now), requests, requestRow)
}

func DecodeRequests(lines []string) (*fixedwidth.Decoded[Request], error) {
	return fixedwidth.Decode(RequestSpec, lines, requestFromRow)
}

func EncodeResponses(originator string, batch int64, now time.Time, responses []Response) (*fixedwidth.File, error) {
	return fixedwidth.Encode(ResponseSpec, integration.StandardHeaderRow(originator, batch, now), responses, responseRow)
}

func DecodeResponses(lines []string) (*fixedwidth.Decoded[Response], error) {
	return fixedwidth.Decode(ResponseSpec, lines, responseFromRow)
}
