package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type DisabilityStatus string

const (
	DisabilityStatusNotRequested DisabilityStatus = "not_requested"
	DisabilityStatusRequested    DisabilityStatus = "requested"
	DisabilityStatusPD           DisabilityStatus = "PD"
	DisabilityStatusPPD          DisabilityStatus = "PPD"
	DisabilityStatusDeclined     DisabilityStatus = "declined"
)

// Eligible reports whether the status qualifies for disability grants.
func (s DisabilityStatus) Eligible() bool {
	return s == DisabilityStatusPD || s == DisabilityStatusPPD
}

type Student struct {
	ID               int64            `gorm:"primaryKey"`
	FirstName        string           `gorm:"type:text;not null"`
	LastName         string           `gorm:"type:text;not null"`
	BirthDate        time.Time        `gorm:"not null"`
	Gender           string           `gorm:"type:text;not null"`
	MaritalStatus    string           `gorm:"type:text"`
	AddressLine1     string           `gorm:"type:text"`
	AddressLine2     string           `gorm:"type:text"`
	City             string           `gorm:"type:text"`
	ProvinceState    string           `gorm:"type:text"`
	PostalCode       string           `gorm:"type:text"`
	Country          string           `gorm:"type:text"`
	Phone            string           `gorm:"type:text"`
	Email            string           `gorm:"type:text"`
	DisabilityStatus DisabilityStatus `gorm:"type:text;not null;default:not_requested"`
	SINValidationID  *int64           `gorm:"index"`
	CreatedAt        time.Time        `gorm:"not null"`
	UpdatedAt        time.Time        `gorm:"not null"`
}

func (Student) TableName() string { return "students" }

// SINValidation is one request/response round trip with the validation service.
type SINValidation struct {
	ID                  int64      `gorm:"primaryKey"`
	StudentID           int64      `gorm:"not null;index"`
	SIN                 string     `gorm:"type:text;not null"`
	GivenNameSent       string     `gorm:"type:text"`
	SurnameSent         string     `gorm:"type:text"`
	BirthDateSent       *time.Time
	GenderSent          string     `gorm:"type:text"`
	DateSent            *time.Time
	FileSent            string     `gorm:"type:text"`
	DateReceived        *time.Time
	FileReceived        string     `gorm:"type:text"`
	IsValidSIN          *bool
	SINStatus           string     `gorm:"type:text"`
	ValidSINCheck       string     `gorm:"type:text"`
	ValidBirthDateCheck string     `gorm:"type:text"`
	ValidLastNameCheck  string     `gorm:"type:text"`
	ValidFirstNameCheck string     `gorm:"type:text"`
	ValidGenderCheck    string     `gorm:"type:text"`
	SINExpiryDate       *time.Time
	CreatedAt           time.Time  `gorm:"not null"`
	UpdatedAt           time.Time  `gorm:"not null"`
}

func (SINValidation) TableName() string { return "sin_validations" }

// StudentLoanBalance is the federal part-time loan balance reported on a given date.
type StudentLoanBalance struct {
	ID          int64           `gorm:"primaryKey"`
	StudentID   int64           `gorm:"not null;uniqueIndex:ux_student_loan_balances_student_date,priority:1"`
	CSLBalance  decimal.Decimal `gorm:"type:numeric(14,2);not null"`
	BalanceDate time.Time       `gorm:"not null;uniqueIndex:ux_student_loan_balances_student_date,priority:2"`
	CreatedAt   time.Time       `gorm:"not null"`
}

func (StudentLoanBalance) TableName() string { return "student_loan_balances" }

// LegacyLoanTotal is the provincial loan amount disbursed before this system existed.
type LegacyLoanTotal struct {
	StudentID int64           `gorm:"primaryKey"`
	TotalBCSL decimal.Decimal `gorm:"column:total_bcsl;type:numeric(14,2);not null"`
}

func (LegacyLoanTotal) TableName() string { return "legacy_loan_totals" }

var (
	ErrStudentNotFound       = errors.New("student_not_found")
	ErrSINValidationNotFound = errors.New("sin_validation_not_found")
)
