package fedrestriction

import (
	"time"

	"github.com/smallbiznis/sims/internal/integration"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
)

const width = 100

var Spec = integration.StandardSpec("federal_restriction", width,
	fixedwidth.NewLayout("federal_restriction.detail", width,
		fixedwidth.RecordType("200"),
		fixedwidth.Digits(integration.FieldSIN, 9),
		fixedwidth.TruncatedText("last_name", 25),
		fixedwidth.TruncatedText("given_name", 15),
		fixedwidth.Date("birth_date"),
		fixedwidth.Text("restriction_code", 2),
	),
)

func toRow(r restrictiondomain.FederalRestriction) (fixedwidth.Row, error) {
	return fixedwidth.Row{
		integration.FieldSIN: r.SIN,
		"last_name":          r.LastName,
		"given_name":         r.GivenName,
		"birth_date":         r.BirthDate,
		"restriction_code":   r.RestrictionCode,
	}, nil
}

func fromRow(row fixedwidth.Row) (restrictiondomain.FederalRestriction, error) {
	return restrictiondomain.FederalRestriction{
		SIN:             row.Text(integration.FieldSIN),
		LastName:        row.Text("last_name"),
		GivenName:       row.Text("given_name"),
		BirthDate:       row.Date("birth_date"),
		RestrictionCode: row.Text("restriction_code"),
	}, nil
}

func Encode(originator string, batch int64, now time.Time, restrictions []restrictiondomain.FederalRestriction) (*fixedwidth.File, error) {
	return fixedwidth.Encode(Spec, integration.StandardHeaderRow(originator, batch, now), restrictions, toRow)
}

func Decode(lines []string) (*fixedwidth.Decoded[restrictiondomain.FederalRestriction], error) {
	return fixedwidth.Decode(Spec, lines, fromRow)
}
