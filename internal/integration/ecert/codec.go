package ecert

import (
	"fmt"
	"time"

	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const (
	fullTimeWidth = 800
	partTimeWidth = 756
	feedbackWidth = 100

	fullTimeGrantSlots = 10
	partTimeGrantSlots = 5
	feedbackErrorSlots = 5
)

// Grant is one grant slot of an E-Cert line.
type Grant struct {
	Code   string
	Amount int64
}

// Record is one ready-to-send disbursement. Amounts are whole dollars.
type Record struct {
	SIN                        string
	ApplicationNumber          string
	DocumentNumber             int64
	DisbursementDate           time.Time
	DocumentProducedDate       time.Time
	NegotiatedExpiryDate       time.Time
	FederalLoan                int64
	ProvincialLoan             int64
	SchoolAmount               int64
	Grants                     []Grant
	StudyStartDate             time.Time
	StudyEndDate               time.Time
	InstitutionCode            string
	WeeksOfStudy               int
	FieldOfStudy               int
	YearOfStudy                int
	CompletionYears            int
	CourseLoad                 int
	EnrollmentConfirmationDate time.Time
	BirthDate                  time.Time
	LastName                   string
	FirstName                  string
	AddressLine1               string
	AddressLine2               string
	City                       string
	Country                    string
	PostalCode                 string
	ProvinceState              string
	Gender                     string
	MaritalStatus              string
	StudentNumber              string
	Phone                      string
	Email                      string
	PPD                        bool
}

// Feedback lists the errors the lender reported for one document number.
type Feedback struct {
	DocumentNumber int64
	SIN            string
	ErrorCodes     []string
}

var fullTimeDetail = fixedwidth.NewLayout("ecert.full_time.detail", fullTimeWidth, fixedwidth.Concat(
	[]fixedwidth.Field{
		fixedwidth.RecordType("200"),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.Digits("application_number", 10),
		fixedwidth.Number("document_number", 9),
		fixedwidth.Date("disbursement_date"),
		fixedwidth.Date("document_produced_date"),
		fixedwidth.Date("negotiated_expiry_date"),
		fixedwidth.Number("federal_loan", 7),
		fixedwidth.Number("provincial_loan", 7),
		fixedwidth.Number("school_amount", 7),
	},
	fixedwidth.Repeat(fullTimeGrantSlots,
		fixedwidth.Text("grant_code", 4),
		fixedwidth.Number("grant_amount", 7),
	),
	[]fixedwidth.Field{
		fixedwidth.Date("study_start_date"),
		fixedwidth.Date("study_end_date"),
		fixedwidth.Text("institution_code", 4),
		fixedwidth.Number("weeks_of_study", 3),
		fixedwidth.Number("field_of_study", 2),
		fixedwidth.Number("year_of_study", 1),
		fixedwidth.Number("completion_years", 1),
		fixedwidth.OptionalDate("enrollment_confirmation_date"),
		fixedwidth.Date("birth_date"),
		fixedwidth.TruncatedText("last_name", 25),
		fixedwidth.TruncatedText("first_name", 15),
		fixedwidth.TruncatedText("address_line_1", 40),
		fixedwidth.TruncatedText("address_line_2", 40),
		fixedwidth.TruncatedText("city", 25),
		fixedwidth.TruncatedText("country", 20),
		fixedwidth.Text("postal_code", 16),
		fixedwidth.Text("province_state", 4),
		fixedwidth.Text("gender", 1),
		fixedwidth.Text("marital_status", 1),
		fixedwidth.TruncatedText("student_number", 12),
		fixedwidth.Text("phone", 20),
		fixedwidth.TruncatedText("email", 70),
		fixedwidth.Text("ppd_flag", 1),
	},
)...)

// FullTimeSpec counts the header and footer lines in the record count.
var FullTimeSpec = func() fixedwidth.Spec {
	spec := integration.StandardSpec("ecert.full_time", fullTimeWidth, fullTimeDetail)
	spec.CountIncludesEnvelope = true
	return spec
}()

var PartTimeSpec = fixedwidth.Spec{
	Name: "ecert.part_time",
	Header: fixedwidth.NewLayout("ecert.part_time.header", partTimeWidth,
		fixedwidth.RecordType("01"),
		fixedwidth.Text(integration.FieldOriginator, 4),
		fixedwidth.Number(integration.FieldBatchNumber, 6),
		fixedwidth.Date(integration.FieldProcessDate),
		fixedwidth.Time(integration.FieldProcessTime),
	),
	Detail: fixedwidth.NewLayout("ecert.part_time.detail", partTimeWidth, fixedwidth.Concat(
		[]fixedwidth.Field{
			fixedwidth.RecordType("02"),
			fixedwidth.Digits(integration.FieldSIN, 9),
			fixedwidth.Digits("application_number", 10),
			fixedwidth.Number("document_number", 9),
			fixedwidth.Date("disbursement_date"),
			fixedwidth.Date("document_produced_date"),
			fixedwidth.Date("negotiated_expiry_date"),
			fixedwidth.Date("study_start_date"),
			fixedwidth.Date("study_end_date"),
			fixedwidth.Text("institution_code", 4),
			fixedwidth.Number("course_load", 3),
			fixedwidth.Number("year_of_study", 1),
			fixedwidth.TruncatedText("last_name", 25),
			fixedwidth.TruncatedText("first_name", 15),
			fixedwidth.Date("birth_date"),
			fixedwidth.Text("gender", 1),
			fixedwidth.Text("marital_status", 1),
			fixedwidth.TruncatedText("address_line_1", 40),
			fixedwidth.TruncatedText("address_line_2", 40),
			fixedwidth.TruncatedText("city", 25),
			fixedwidth.Text("province_state", 4),
			fixedwidth.Text("postal_code", 16),
			fixedwidth.TruncatedText("country", 20),
			fixedwidth.Text("phone", 20),
			fixedwidth.TruncatedText("email", 70),
			fixedwidth.Number("federal_loan", 7),
		},
		fixedwidth.Repeat(partTimeGrantSlots,
			fixedwidth.Text("grant_code", 4),
			fixedwidth.Number("grant_amount", 7),
		),
		[]fixedwidth.Field{
			fixedwidth.Number("school_amount", 7),
			fixedwidth.Text("ppd_flag", 1),
		},
	)...),
	Footer: fixedwidth.NewLayout("ecert.part_time.footer", partTimeWidth,
		fixedwidth.RecordType("99"),
		fixedwidth.Number(integration.FieldRecordCount, 9),
		fixedwidth.Number(integration.FieldHashTotal, 15),
	),
	HeaderCode:    "01",
	DetailCodes:   []string{"02"},
	FooterCode:    "99",
	CountField:    integration.FieldRecordCount,
	ChecksumField: integration.FieldHashTotal,
	ChecksumKey:   integration.FieldSIN,
}

var FeedbackSpec = integration.StandardSpec("ecert.feedback", feedbackWidth,
	fixedwidth.NewLayout("ecert.feedback.detail", feedbackWidth, fixedwidth.Concat(
		[]fixedwidth.Field{
			fixedwidth.RecordType("200"),
			fixedwidth.Number("document_number", 9),
			fixedwidth.Digits(integration.FieldSIN, 9),
		},
		fixedwidth.Repeat(feedbackErrorSlots, fixedwidth.Text("error_code", 4)),
	)...),
)

func flag(b bool) string {
	if b {
		return "Y"
	}
	return "N"
}

func grantColumns(row fixedwidth.Row, grants []Grant, slots int) error {
	if len(grants) > slots {
		return &fixedwidth.RecordError{
			Field: "grant_code",
			Value: fmt.Sprint(len(grants)),
			Err:   fmt.Errorf("%w: %d grants, %d slots", fixedwidth.ErrFieldOverflow, len(grants), slots),
		}
	}
	for i, g := range grants {
		row[fixedwidth.IndexedName("grant_code", i+1)] = g.Code
		row[fixedwidth.IndexedName("grant_amount", i+1)] = g.Amount
	}
	return nil
}

func fullTimeRow(r Record) (fixedwidth.Row, error) {
	row := fixedwidth.Row{
		integration.FieldSIN:           r.SIN,
		"application_number":           r.ApplicationNumber,
		"document_number":              r.DocumentNumber,
		"disbursement_date":            r.DisbursementDate,
		"document_produced_date":       r.DocumentProducedDate,
		"negotiated_expiry_date":       r.NegotiatedExpiryDate,
		"federal_loan":                 r.FederalLoan,
		"provincial_loan":              r.ProvincialLoan,
		"school_amount":                r.SchoolAmount,
		"study_start_date":             r.StudyStartDate,
		"study_end_date":               r.StudyEndDate,
		"institution_code":             r.InstitutionCode,
		"weeks_of_study":               r.WeeksOfStudy,
		"field_of_study":               r.FieldOfStudy,
		"year_of_study":                r.YearOfStudy,
		"completion_years":             r.CompletionYears,
		"enrollment_confirmation_date": r.EnrollmentConfirmationDate,
		"birth_date":                   r.BirthDate,
		"last_name":                    r.LastName,
		"first_name":                   r.FirstName,
		"address_line_1":               r.AddressLine1,
		"address_line_2":               r.AddressLine2,
		"city":                         r.City,
		"country":                      r.Country,
		"postal_code":                  r.PostalCode,
		"province_state":               r.ProvinceState,
		"gender":                       r.Gender,
		"marital_status":               r.MaritalStatus,
		"student_number":               r.StudentNumber,
		"phone":                        r.Phone,
		"email":                        r.Email,
		"ppd_flag":                     flag(r.PPD),
	}
	return row, grantColumns(row, r.Grants, fullTimeGrantSlots)
}

func partTimeRow(r Record) (fixedwidth.Row, error) {
	row := fixedwidth.Row{
		integration.FieldSIN:     r.SIN,
		"application_number":     r.ApplicationNumber,
		"document_number":        r.DocumentNumber,
		"disbursement_date":      r.DisbursementDate,
		"document_produced_date": r.DocumentProducedDate,
		"negotiated_expiry_date": r.NegotiatedExpiryDate,
		"study_start_date":       r.StudyStartDate,
		"study_end_date":         r.StudyEndDate,
		"institution_code":       r.InstitutionCode,
		"course_load":            r.CourseLoad,
		"year_of_study":          r.YearOfStudy,
		"last_name":              r.LastName,
		"first_name":             r.FirstName,
		"birth_date":             r.BirthDate,
		"gender":                 r.Gender,
		"marital_status":         r.MaritalStatus,
		"address_line_1":         r.AddressLine1,
		"address_line_2":         r.AddressLine2,
		"city":                   r.City,
		"province_state":         r.ProvinceState,
		"postal_code":            r.PostalCode,
		"country":                r.Country,
		"phone":                  r.Phone,
		"email":                  r.Email,
		"federal_loan":           r.FederalLoan,
		"school_amount":          r.SchoolAmount,
		"ppd_flag":               flag(r.PPD),
	}
	return row, grantColumns(row, r.Grants, partTimeGrantSlots)
}

func grantsFromRow(row fixedwidth.Row, slots int) []Grant {
	var grants []Grant
	for i := 1; i <= slots; i++ {
		code := row.Text(fixedwidth.IndexedName("grant_code", i))
		if code == "" {
			continue
		}
		grants = append(grants, Grant{Code: code, Amount: row.Int(fixedwidth.IndexedName("grant_amount", i))})
	}
	return grants
}

func fullTimeFromRow(row fixedwidth.Row) (Record, error) {
	return Record{
		SIN:                        row.Text(integration.FieldSIN),
		ApplicationNumber:          row.Text("application_number"),
		DocumentNumber:             row.Int("document_number"),
		DisbursementDate:           row.Date("disbursement_date"),
		DocumentProducedDate:       row.Date("document_produced_date"),
		NegotiatedExpiryDate:       row.Date("negotiated_expiry_date"),
		FederalLoan:                row.Int("federal_loan"),
		ProvincialLoan:             row.Int("provincial_loan"),
		SchoolAmount:               row.Int("school_amount"),
		Grants:                     grantsFromRow(row, fullTimeGrantSlots),
		StudyStartDate:             row.Date("study_start_date"),
		StudyEndDate:               row.Date("study_end_date"),
		InstitutionCode:            row.Text("institution_code"),
		WeeksOfStudy:               int(row.Int("weeks_of_study")),
		FieldOfStudy:               int(row.Int("field_of_study")),
		YearOfStudy:                int(row.Int("year_of_study")),
		CompletionYears:            int(row.Int("completion_years")),
		EnrollmentConfirmationDate: row.Date("enrollment_confirmation_date"),
		BirthDate:                  row.Date("birth_date"),
		LastName:                   row.Text("last_name"),
		FirstName:                  row.Text("first_name"),
		AddressLine1:               row.Text("address_line_1"),
		AddressLine2:               row.Text("address_line_2"),
		City:                       row.Text("city"),
		Country:                    row.Text("country"),
		PostalCode:                 row.Text("postal_code"),
		ProvinceState:              row.Text("province_state"),
		Gender:                     row.Text("gender"),
		MaritalStatus:              row.Text("marital_status"),
		StudentNumber:              row.Text("student_number"),
		Phone:                      row.Text("phone"),
		Email:                      row.Text("email"),
		PPD:                        row.Text("ppd_flag") == "Y",
	}, nil
}

func partTimeFromRow(row fixedwidth.Row) (Record, error) {
	return Record{
		SIN:                  row.Text(integration.FieldSIN),
		ApplicationNumber:    row.Text("application_number"),
		DocumentNumber:       row.Int("document_number"),
		DisbursementDate:     row.Date("disbursement_date"),
		DocumentProducedDate: row.Date("document_produced_date"),
		NegotiatedExpiryDate: row.Date("negotiated_expiry_date"),
		StudyStartDate:       row.Date("study_start_date"),
		StudyEndDate:         row.Date("study_end_date"),
		InstitutionCode:      row.Text("institution_code"),
		CourseLoad:           int(row.Int("course_load")),
		YearOfStudy:          int(row.Int("year_of_study")),
		LastName:             row.Text("last_name"),
		FirstName:            row.Text("first_name"),
		BirthDate:            row.Date("birth_date"),
		Gender:               row.Text("gender"),
		MaritalStatus:        row.Text("marital_status"),
		AddressLine1:         row.Text("address_line_1"),
		AddressLine2:         row.Text("address_line_2"),
		City:                 row.Text("city"),
		ProvinceState:        row.Text("province_state"),
		PostalCode:           row.Text("postal_code"),
		Country:              row.Text("country"),
		Phone:                row.Text("phone"),
		Email:                row.Text("email"),
		FederalLoan:          row.Int("federal_loan"),
		Grants:               grantsFromRow(row, partTimeGrantSlots),
		SchoolAmount:         row.Int("school_amount"),
		PPD:                  row.Text("ppd_flag") == "Y",
	}, nil
}

func feedbackRow(f Feedback) (fixedwidth.Row, error) {
	if len(f.ErrorCodes) > feedbackErrorSlots {
		return nil, &fixedwidth.RecordError{
			Field: "error_code",
			Value: fmt.Sprint(len(f.ErrorCodes)),
			Err:   fmt.Errorf("%w: %d error codes, %d slots", fixedwidth.ErrFieldOverflow, len(f.ErrorCodes), feedbackErrorSlots),
		}
	}
	row := fixedwidth.Row{
		"document_number":    f.DocumentNumber,
		integration.FieldSIN: f.SIN,
	}
	for i, code := range f.ErrorCodes {
		row[fixedwidth.IndexedName("error_code", i+1)] = code
	}
	return row, nil
}

func feedbackFromRow(row fixedwidth.Row) (Feedback, error) {
	f := Feedback{
		DocumentNumber: row.Int("document_number"),
		SIN:            row.Text(integration.FieldSIN),
	}
	for i := 1; i <= feedbackErrorSlots; i++ {
		if code := row.Text(fixedwidth.IndexedName("error_code", i)); code != "" {
			f.ErrorCodes = append(f.ErrorCodes, code)
		}
	}
	if f.DocumentNumber == 0 {
		return Feedback{}, &fixedwidth.RecordError{Field: "document_number", Err: fmt.Errorf("%w: document number is required", fixedwidth.ErrInvalidField)}
	}
	return f, nil
}

func EncodeFullTime(originator string, batch int64, now time.Time, records []Record) (*fixedwidth.File, error) {
	return fixedwidth.Encode(FullTimeSpec, integration.StandardHeaderRow(originator, batch, now), records, fullTimeRow)
}

func EncodePartTime(originator string, batch int64, now time.Time, records []Record) (*fixedwidth.File, error) {
	return fixedwidth.Encode(PartTimeSpec, integration.StandardHeaderRow(originator, batch, now), records, partTimeRow)
}

// DecodeFullTime reads a full-time E-Cert file back into records.
func DecodeFullTime(lines []string) (*fixedwidth.Decoded[Record], error) {
	return fixedwidth.Decode(FullTimeSpec, lines, fullTimeFromRow)
}

func DecodePartTime(lines []string) (*fixedwidth.Decoded[Record], error) {
	return fixedwidth.Decode(PartTimeSpec, lines, partTimeFromRow)
}

func EncodeFeedback(originator string, batch int64, now time.Time, feedback []Feedback) (*fixedwidth.File, error) {
	return fixedwidth.Encode(FeedbackSpec, integration.StandardHeaderRow(originator, batch, now), feedback, feedbackRow)
}

func DecodeFeedback(lines []string) (*fixedwidth.Decoded[Feedback], error) {
	return fixedwidth.Decode(FeedbackSpec, lines, feedbackFromRow)
}
