package cra

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const width = 150

const (
	headerCode   = "7100"
	requestCode  = "7101"
	responseCode = "0022"
	trailerCode  = "7102"

	fieldProgramArea = "program_area"
	fieldEnvironment = "environment_code"
)

// Request asks the revenue agency for the income of one tax year.
type Request struct {
	VerificationID int64
	SIN            string
	Surname        string
	GivenName      string
	BirthDate      time.Time
	TaxYear        int
}

// Response carries the income the agency has on file.
type Response struct {
	VerificationID int64
	SIN            string
	TaxYear        int
	MatchStatus    string
	RequestStatus  string
	InactiveCode   string
	TotalIncome    decimal.Decimal
}

func header(name string) fixedwidth.Layout {
	return fixedwidth.NewLayout(name+".header", width,
		fixedwidth.RecordType(headerCode),
		fixedwidth.Text(fieldProgramArea, 4),
		fixedwidth.Text(fieldEnvironment, 1),
		fixedwidth.Number(integration.FieldBatchNumber, 5),
		fixedwidth.Date(integration.FieldProcessDate),
	)
}

func trailer(name string) fixedwidth.Layout {
	return fixedwidth.NewLayout(name+".trailer", width,
		fixedwidth.RecordType(trailerCode),
		fixedwidth.Text(fieldProgramArea, 4),
		fixedwidth.Text(fieldEnvironment, 1),
		fixedwidth.Number(integration.FieldBatchNumber, 5),
		fixedwidth.Number(integration.FieldRecordCount, 8),
		fixedwidth.Number(integration.FieldHashTotal, 15),
	)
}

func spec(name string, detail fixedwidth.Layout, detailCode string) fixedwidth.Spec {
	return fixedwidth.Spec{
		Name:          name,
		Header:        header(name),
		Detail:        detail,
		Footer:        trailer(name),
		HeaderCode:    headerCode,
		DetailCodes:   []string{detailCode},
		FooterCode:    trailerCode,
		CountField:    integration.FieldRecordCount,
		ChecksumField: integration.FieldHashTotal,
		ChecksumKey:   integration.FieldSIN,
	}
}

var RequestSpec = spec("cra.request", fixedwidth.NewLayout("cra.request.detail", width,
	fixedwidth.RecordType(requestCode),
	fixedwidth.Digits(integration.FieldSIN, 9),
	fixedwidth.TruncatedText("surname", 30),
	fixedwidth.TruncatedText("given_name", 30),
	fixedwidth.Date("birth_date"),
	fixedwidth.Number("tax_year", 4),
	fixedwidth.Number("free_project_area", 19),
), requestCode)

var ResponseSpec = spec("cra.response", fixedwidth.NewLayout("cra.response.detail", width,
	fixedwidth.RecordType(responseCode),
	fixedwidth.Digits(integration.FieldSIN, 9),
	fixedwidth.Number("free_project_area", 19),
	fixedwidth.Number("tax_year", 4),
	fixedwidth.Text("match_status", 2),
	fixedwidth.Text("request_status", 2),
	fixedwidth.Text("inactive_code", 2),
	fixedwidth.Amount("total_income", 12, 2),
), responseCode)

// HeaderRow identifies the sender program area on both envelope lines.
func HeaderRow(programArea, environment string, batch int64, now time.Time) fixedwidth.Row {
	return fixedwidth.Row{
		fieldProgramArea:             programArea,
		fieldEnvironment:             environment,
		integration.FieldBatchNumber: batch,
		integration.FieldProcessDate: now,
	}
}

func requestRow(r Request) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		integration.FieldSIN: r.SIN,
		"surname":            r.Surname,
		"given_name":         r.GivenName,
		"birth_date":         r.BirthDate,
		"tax_year":           r.TaxYear,
		"free_project_area":  r.VerificationID,
	}, nil
}

func requestFromRow(row fixedwidth.Row) (Request, error) {
	return Request{
		VerificationID: row.Int("free_project_area"),
		SIN:            row.Text(integration.FieldSIN),
		Surname:        row.Text("surname"),
		GivenName:      row.Text("given_name"),
		BirthDate:      row.Date("birth_date"),
		TaxYear:        int(row.Int("tax_year")),
	}, nil
}

func responseRow(r Response) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		integration.FieldSIN: r.SIN,
		"free_project_area":  r.VerificationID,
		"tax_year":           r.TaxYear,
		"match_status":       r.MatchStatus,
		"request_status":     r.RequestStatus,
		"inactive_code":      r.InactiveCode,
		"total_income":       r.TotalIncome,
	}, nil
}

func responseFromRow(row fixedwidth.Row) (Response, error) {
	return Response{
		VerificationID: row.Int("free_project_area"),
		SIN:            row.Text(integration.FieldSIN),
		TaxYear:        int(row.Int("tax_year")),
		MatchStatus:    row.Text("match_status"),
		RequestStatus:  row.Text("request_status"),
		InactiveCode:   row.Text("inactive_code"),
		TotalIncome:    row.Amount("total_income"),
	}, nil
}

func EncodeRequests(programArea, environment string, batch int64, now time.Time, requests []Request) (*fixedwidth.File, error) {
	return fixedwidth.Encode(RequestSpec, HeaderRow(programArea, environment, batch, now), requests, requestRow)
}

func DecodeRequests(lines []string) (*fixedwidth.Decoded[Request], error) {
	return fixedwidth.Decode(RequestSpec, lines, requestFromRow)
}

func EncodeResponses(programArea, environment string, batch int64, now time.Time, responses []Response) (*fixedwidth.File, error) {
	return fixedwidth.Encode(ResponseSpec, HeaderRow(programArea, environment, batch, now), responses, responseRow)
}

func DecodeResponses(lines []string) (*fixedwidth.Decoded[Response], error) {
	return fixedwidth.Decode(ResponseSpec, lines, responseFromRow)
}
