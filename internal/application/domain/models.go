package domain

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

type OfferingIntensity string

const (
	OfferingIntensityFullTime OfferingIntensity = "full_time"
	OfferingIntensityPartTime OfferingIntensity = "part_time"
)

// Code is the single letter used in file layouts.
func (i OfferingIntensity) Code() string {
	if i == OfferingIntensityPartTime {
		return "P"
	}
	return "F"
}

func (i OfferingIntensity) Valid() bool {
	return i == OfferingIntensityFullTime || i == OfferingIntensityPartTime
}

type ApplicationStatus string

const (
	ApplicationStatusDraft      ApplicationStatus = "draft"
	ApplicationStatusAssessment ApplicationStatus = "assessment"
	ApplicationStatusEnrolment  ApplicationStatus = "enrolment"
	ApplicationStatusCompleted  ApplicationStatus = "completed"
	ApplicationStatusCancelled  ApplicationStatus = "cancelled"
)

type Application struct {
	ID                  int64             `gorm:"primaryKey"`
	ApplicationNumber   string            `gorm:"type:text;not null;index"`
	StudentID           int64             `gorm:"not null;index"`
	Status              ApplicationStatus `gorm:"type:text;not null"`
	CurrentAssessmentID *int64
	StudentNumber       string    `gorm:"type:text"`
	CreatedAt           time.Time `gorm:"not null"`
	UpdatedAt           time.Time `gorm:"not null"`
}

func (Application) TableName() string { return "applications" }

type Assessment struct {
	ID            int64     `gorm:"primaryKey"`
	ApplicationID int64     `gorm:"not null;index"`
	OfferingID    int64     `gorm:"not null;index"`
	AssessmentAt  time.Time `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (Assessment) TableName() string { return "student_assessments" }

type Offering struct {
	ID                     int64             `gorm:"primaryKey"`
	Intensity              OfferingIntensity `gorm:"type:text;not null"`
	InstitutionCode        string            `gorm:"type:text;not null"`
	StudyStartDate         time.Time         `gorm:"not null"`
	StudyEndDate           time.Time         `gorm:"not null"`
	WeeksOfStudy           int               `gorm:"not null"`
	FieldOfStudy           int               `gorm:"not null"`
	YearOfStudy            int               `gorm:"not null"`
	CompletionYears        int               `gorm:"not null"`
	CourseLoad             int               `gorm:"not null;default:0"`
	ActualTuitionCosts     decimal.Decimal   `gorm:"type:numeric(14,2);not null"`
	ProgramRelatedCosts    decimal.Decimal   `gorm:"type:numeric(14,2);not null"`
	MandatoryFees          decimal.Decimal   `gorm:"type:numeric(14,2);not null"`
	AviationCredentialType string            `gorm:"type:text"`
}

func (Offering) TableName() string { return "education_program_offerings" }

// TuitionCap is the most an institution may receive as tuition remittance.
func (o Offering) TuitionCap() decimal.Decimal {
	return o.ActualTuitionCosts.Add(o.ProgramRelatedCosts).Add(o.MandatoryFees)
}

// MSFAANumber is the master agreement a student signs before any disbursement.
type MSFAANumber struct {
	ID                          int64             `gorm:"primaryKey"`
	StudentID                   int64             `gorm:"not null;index"`
	MSFAANumber                 string            `gorm:"column:msfaa_number;type:text;not null;uniqueIndex"`
	OfferingIntensity           OfferingIntensity `gorm:"type:text;not null"`
	ReferenceApplicationID      *int64
	DateRequested               *time.Time
	DateSigned                  *time.Time
	ServiceProviderReceivedDate *time.Time
	CancelledDate               *time.Time
	NewIssuingProvince          string    `gorm:"type:text"`
	CreatedAt                   time.Time `gorm:"not null"`
	UpdatedAt                   time.Time `gorm:"not null"`
}

func (MSFAANumber) TableName() string { return "msfaa_numbers" }

// Active reports a signed agreement that has not been cancelled.
func (m MSFAANumber) Active() bool {
	return m.DateSigned != nil && m.CancelledDate == nil
}

// CRAIncomeVerification asks the revenue agency to confirm a reported income.
type CRAIncomeVerification struct {
	ID                int64               `gorm:"primaryKey"`
	StudentID         int64               `gorm:"not null;index"`
	ApplicationID     int64               `gorm:"not null;index"`
	TaxYear           int                 `gorm:"not null"`
	ReportedIncome    decimal.Decimal     `gorm:"type:numeric(14,2);not null"`
	CRAReportedIncome decimal.NullDecimal `gorm:"column:cra_reported_income;type:numeric(14,2)"`
	DateSent          *time.Time
	FileSent          string `gorm:"type:text"`
	DateReceived      *time.Time
	FileReceived      string    `gorm:"type:text"`
	MatchStatus       string    `gorm:"type:text"`
	RequestStatus     string    `gorm:"type:text"`
	InactiveCode      string    `gorm:"type:text"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

func (CRAIncomeVerification) TableName() string { return "cra_income_verifications" }

var (
	ErrApplicationNotFound = errors.New("application_not_found")
	ErrMSFAANotFound       = errors.New("msfaa_not_found")
	ErrInvalidIntensity    = errors.New("invalid_offering_intensity")
)
