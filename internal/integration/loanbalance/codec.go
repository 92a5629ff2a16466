package loanbalance

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/integration"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const (
	width = 100

	fieldBalanceDate = "balance_date"
)

// Balance is the outstanding federal part-time loan of one borrower.
type Balance struct {
	SIN        string
	LastName   string
	BirthDate  time.Time
	CSLBalance decimal.Decimal
}

var Spec = fixedwidth.Spec{
	Name: "loan_balance",
	Header: fixedwidth.NewLayout("loan_balance.header", width,
		fixedwidth.RecordType("01"),
		fixedwidth.Text(integration.FieldOriginator, 4),
		fixedwidth.Date(fieldBalanceDate),
	),
	Detail: fixedwidth.NewLayout("loan_balance.detail", width,
		fixedwidth.RecordType("02"),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.TruncatedText("last_name", 25),
		fixedwidth.Date("birth_date"),
		fixedwidth.Amount("csl_balance", 9, 2),
	),
	Footer: fixedwidth.NewLayout("loan_balance.trailer", width,
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

func toRow(b Balance) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		integration.FieldSIN: b.SIN,
		"last_name":          b.LastName,
		"birth_date":         b.BirthDate,
		"csl_balance":        b.CSLBalance,
	}, nil
}

func fromRow(row fixedwidth.Row) (Balance, error) {
	return Balance{
		SIN:        row.Text(integration.FieldSIN),
		LastName:   row.Text("last_name"),
		BirthDate:  row.Date("birth_date"),
		CSLBalance: row.Amount("csl_balance"),
	}, nil
}

// Decoded adds the date every balance of the file was taken on.
type Decoded struct {
	*fixedwidth.Decoded[Balance]
	BalanceDate time.Time
}

// Encode builds a balance file taken on balanceDate.
func Encode(originator string, balanceDate time.Time, balances []Balance) (*fixedwidth.File, error) {
	header := fixedwidth.Row{
		integration.FieldOriginator: originator,
		fieldBalanceDate:            balanceDate,
	}
	return fixedwidth.Encode(Spec, header, balances, toRow)
}

func Decode(lines []string) (*Decoded, error) {
	decoded, err := fixedwidth.Decode(Spec, lines, fromRow)
	if err != nil {
		return nil, err
	}
	return &Decoded{Decoded: decoded, BalanceDate: decoded.Header.Date(fieldBalanceDate)}, nil
}
