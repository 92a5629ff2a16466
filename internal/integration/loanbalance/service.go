package loanbalance

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/integration"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const sinLookupChunk = 500

type Params struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	GenID  *snowflake.Node
	Clock  clock.Clock
	Runner *integration.InboundRunner
}

type Service struct {
	db     *gorm.DB
	log    *zap.Logger
	genID  *snowflake.Node
	clock  clock.Clock
	runner *integration.InboundRunner
}

func NewService(p Params) *Service {
	return &Service{
		db:     p.DB,
		log:    p.Log.Named("loanbalance.service"),
		genID:  p.GenID,
		clock:  p.Clock,
		runner: p.Runner,
	}
}

// ProcessBalances stores the balances of every loan balance file. Borrowers
// who had a balance in the previous file and are missing from this one get
// a zero balance on the new date.
func (s *Service) ProcessBalances(ctx context.Context, log *summary.Log) (integration.InboundResult, error) {
	spec := integration.InboundSpec{
		Integration: integration.LoanBalance,
		Pattern:     integration.StudentLoanBalancePattern,
		Disposal:    integration.DisposalDelete,
	}
	return s.runner.Process(ctx, spec, log, s.applyBalanceFile)
}

type studentKey struct {
	sin       string
	birthDate string
}

type studentRow struct {
	ID        int64
	SIN       string
	BirthDate time.Time
}

func keyOf(sin string, birthDate time.Time) studentKey {
	return studentKey{sin: sin, birthDate: birthDate.UTC().Format(fixedwidth.DateFormat)}
}

func (s *Service) studentsBySIN(ctx context.Context, tx *gorm.DB, balances []fixedwidth.Record[Balance]) (map[studentKey]int64, error) {
	sins := make([]string, 0, len(balances))
	for _, b := range balances {
		sins = append(sins, b.Value.SIN)
	}
	out := make(map[studentKey]int64, len(sins))
	for start := 0; start < len(sins); start += sinLookupChunk {
		end := min(start+sinLookupChunk, len(sins))
		var rows []studentRow
		err := tx.WithContext(ctx).Raw(
			`SELECT st.id, v.sin, st.birth_date
			 FROM students st
			 JOIN sin_validations v ON v.id = st.sin_validation_id
			 WHERE v.sin IN ?`,
			sins[start:end],
		).Scan(&rows).Error
		if err != nil {
			return nil, err
		}
		for _, row := range rows {
			out[keyOf(row.SIN, row.BirthDate)] = row.ID
		}
	}
	return out, nil
}

// previousBorrowers are the students with a non zero balance on the latest
// date before balanceDate.
func (s *Service) previousBorrowers(ctx context.Context, tx *gorm.DB, balanceDate time.Time) ([]int64, error) {
	var ids []int64
	err := tx.WithContext(ctx).Raw(
		`SELECT b.student_id
		 FROM student_loan_balances b
		 WHERE b.balance_date = (SELECT MAX(balance_date) FROM student_loan_balances WHERE balance_date < ?)
		   AND b.csl_balance > 0`,
		balanceDate,
	).Scan(&ids).Error
	return ids, err
}

func (s *Service) applyBalanceFile(ctx context.Context, file integration.InboundFile) error {
	decoded, err := Decode(file.Lines)
	if err != nil {
		return err
	}
	integration.ReportRecords(integration.LoanBalance, file.Log, len(decoded.Records), decoded.Errors)

	now := s.clock.Now()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		students, err := s.studentsBySIN(ctx, tx, decoded.Records)
		if err != nil {
			return err
		}

		seen := make(map[int64]struct{}, len(decoded.Records))
		rows := make([]studentdomain.StudentLoanBalance, 0, len(decoded.Records))
		for _, record := range decoded.Records {
			b := record.Value
			studentID, ok := students[keyOf(b.SIN, b.BirthDate)]
			if !ok {
				file.Log.Warn("loan_balance.student_not_found",
					zap.Int("line", record.Line),
					zap.String("last_name", b.LastName),
				)
				continue
			}
			seen[studentID] = struct{}{}
			rows = append(rows, s.balance(studentID, b.CSLBalance, decoded.BalanceDate, now))
		}

		previous, err := s.previousBorrowers(ctx, tx, decoded.BalanceDate)
		if err != nil {
			return err
		}
		zeroed := 0
		for _, studentID := range previous {
			if _, ok := seen[studentID]; ok {
				continue
			}
			rows = append(rows, s.balance(studentID, decimal.Zero, decoded.BalanceDate, now))
			zeroed++
		}

		if len(rows) > 0 {
			err := tx.WithContext(ctx).
				Clauses(clause.OnConflict{DoNothing: true}).
				CreateInBatches(rows, sinLookupChunk).Error
			if err != nil {
				return fmt.Errorf("insert balances: %w", err)
			}
		}
		file.Log.Info(fmt.Sprintf("%d balances stored, %d zero filled", len(rows)-zeroed, zeroed),
			zap.Time("balance_date", decoded.BalanceDate),
		)
		return nil
	})
}

func (s *Service) balance(studentID int64, amount decimal.Decimal, balanceDate, now time.Time) studentdomain.StudentLoanBalance {
	return studentdomain.StudentLoanBalance{
		ID:          s.genID.Generate().Int64(),
		StudentID:   studentID,
		CSLBalance:  amount,
		BalanceDate: balanceDate,
		CreatedAt:   now,
	}
}
