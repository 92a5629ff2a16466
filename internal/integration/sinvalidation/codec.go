package sinvalidation

import (
	"time"

	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const width = 600

// Request asks the validation service to check one SIN against the
// identity the student declared.
type Request struct {
	ValidationID int64
	SIN          string
	FirstName    string
	LastName     string
	BirthDate    time.Time
	Gender       string
}

// Response is the verdict returned for a request.
type Response struct {
	ValidationID   int64
	SIN            string
	SINStatus      string
	ValidSINCheck  string
	BirthDateCheck string
	LastNameCheck  string
	FirstNameCheck string
	GenderCheck    string
	SINExpiryDate  *time.Time
}

// SINStatusValid is the status of a SIN that passed every check.
const SINStatusValid = "1"

func (r Response) Valid() bool { return r.SINStatus == SINStatusValid }

var RequestSpec = integration.StandardSpec("sin_validation.request", width,
	fixedwidth.NewLayout("sin_validation.request.detail", width,
		fixedwidth.RecordType("200"),
		fixedwidth.Number("reference_index", 19),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.TruncatedText("first_name", 15),
		fixedwidth.TruncatedText("last_name", 25),
		fixedwidth.Date("birth_date"),
		fixedwidth.Text("gender", 1),
	),
)

var ResponseSpec = integration.StandardSpec("sin_validation.response", width,
	fixedwidth.NewLayout("sin_validation.response.detail", width,
		fixedwidth.RecordType("200"),
		fixedwidth.Number("reference_index", 19),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.Text("sin_status", 1),
		fixedwidth.Text("valid_sin_check", 1),
		fixedwidth.Text("birth_date_check", 1),
		fixedwidth.Text("last_name_check", 1),
		fixedwidth.Text("first_name_check", 1),
		fixedwidth.Text("gender_check", 1),
		fixedwidth.OptionalDate("sin_expiry_date"),
	),
)

func requestRow(r Request) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		"reference_index":    r.ValidationID,
		integration.FieldSIN: r.SIN,
		"first_name":         r.FirstName,
		"last_name":          r.LastName,
		"birth_date":         r.BirthDate,
		"gender":             r.Gender,
	}, nil
}

func requestFromRow(row fixedwidth.Row) (Request, error) {
	return Request{
		ValidationID: row.Int("reference_index"),
		SIN:          row.Text(integration.FieldSIN),
		FirstName:    row.Text("first_name"),
		LastName:     row.Text("last_name"),
		BirthDate:    row.Date("birth_date"),
		Gender:       row.Text("gender"),
	}, nil
}

func responseRow(r Response) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		"reference_index":    r.ValidationID,
		integration.FieldSIN: r.SIN,
		"sin_status":         r.SINStatus,
		"valid_sin_check":    r.ValidSINCheck,
		"birth_date_check":   r.BirthDateCheck,
		"last_name_check":    r.LastNameCheck,
		"first_name_check":   r.FirstNameCheck,
		"gender_check":       r.GenderCheck,
		"sin_expiry_date":    r.SINExpiryDate,
	}, nil
}

func responseFromRow(row fixedwidth.Row) (Response, error) {
	return Response{
		ValidationID:   row.Int("reference_index"),
		SIN:            row.Text(integration.FieldSIN),
		SINStatus:      row.Text("sin_status"),
		ValidSINCheck:  row.Text("valid_sin_check"),
		BirthDateCheck: row.Text("birth_date_check"),
		LastNameCheck:  row.Text("last_name_check"),
		FirstNameCheck: row.Text("first_name_check"),
		GenderCheck:    row.Text("gender_check"),
		SINExpiryDate:  row.OptionalDate("sin_expiry_date"),
	}, nil
}

// EncodeRequests builds the request file for batch.
func EncodeRequests(originator string, batch int64, now time.Time, requests []Request) (*fixedwidth.File, error) {
	return fixedwidth.Encode(RequestSpec, integration.StandardHeaderRow(originator, batch, now), requests, requestRow)
}

// DecodeRequests reads a request file back, as the validation service does.
func DecodeRequests(lines []string) (*fixedwidth.Decoded[Request], error) {
	return fixedwidth.Decode(RequestSpec, lines, requestFromRow)
}

// EncodeResponses builds a response file the way the validation service sends it.
func EncodeResponses(originator string, batch int64, now time.Time, responses []Response) (*fixedwidth.File, error) {
	return fixedwidth.Encode(ResponseSpec, integration.StandardHeaderRow(originator, batch, now), responses, responseRow)
}

func DecodeResponses(lines []string) (*fixedwidth.Decoded[Response], error) {
	return fixedwidth.Decode(ResponseSpec, lines, responseFromRow)
}
