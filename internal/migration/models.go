package migration

import (
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	auditdomain "github.com/smallbiznis/sims/internal/audit/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	notificationdomain "github.com/smallbiznis/sims/internal/notification/domain"
	overawarddomain "github.com/smallbiznis/sims/internal/overaward/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
)

// Models lists every table the services touch. Dialects without SQL
// migrations are created from it with AutoMigrate.
func Models() []any {
	return []any{
		&sequencedomain.SequenceControl{},
		&studentdomain.Student{},
		&studentdomain.SINValidation{},
		&studentdomain.StudentLoanBalance{},
		&studentdomain.LegacyLoanTotal{},
		&appdomain.Offering{},
		&appdomain.Application{},
		&appdomain.Assessment{},
		&appdomain.MSFAANumber{},
		&appdomain.CRAIncomeVerification{},
		&disbursementdomain.Schedule{},
		&disbursementdomain.Value{},
		&disbursementdomain.FeedbackError{},
		&disbursementdomain.Receipt{},
		&disbursementdomain.ReceiptValue{},
		&restrictiondomain.Restriction{},
		&restrictiondomain.StudentRestriction{},
		&restrictiondomain.ApplicationRestrictionBypass{},
		&restrictiondomain.FederalRestriction{},
		&overawarddomain.DisbursementOveraward{},
		&notificationdomain.Notification{},
		&auditdomain.AuditLog{},
	}
}
