package testutil

import (
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Fixture seeds the minimum graph of rows an eligible disbursement needs.
type Fixture struct {
	DB   *gorm.DB
	Node *snowflake.Node
	Now  time.Time
}

func NewFixture(t *testing.T, db *gorm.DB, now time.Time) *Fixture {
	return &Fixture{DB: db, Node: NewNode(t), Now: now.UTC()}
}

func (f *Fixture) id() int64 { return f.Node.Generate().Int64() }

// Student creates a student whose SIN validation succeeded.
func (f *Fixture) Student(t *testing.T, sin string) *studentdomain.Student {
	t.Helper()
	valid := true
	student := &studentdomain.Student{
		ID:               f.id(),
		FirstName:        "Jane",
		LastName:         "Doe",
		BirthDate:        time.Date(1998, 4, 12, 0, 0, 0, 0, time.UTC),
		Gender:           "F",
		MaritalStatus:    "S",
		AddressLine1:     "1 Main St",
		City:             "Victoria",
		ProvinceState:    "BC",
		PostalCode:       "V8V1A1",
		Country:          "CAN",
		Phone:            "2505550100",
		Email:            "jane@example.com",
		DisabilityStatus: studentdomain.DisabilityStatusNotRequested,
		CreatedAt:        f.Now,
		UpdatedAt:        f.Now,
	}
	validation := &studentdomain.SINValidation{
		ID:         f.id(),
		StudentID:  student.ID,
		SIN:        sin,
		IsValidSIN: &valid,
		SINStatus:  "1",
		CreatedAt:  f.Now,
		UpdatedAt:  f.Now,
	}
	student.SINValidationID = &validation.ID
	require.NoError(t, f.DB.Create(validation).Error)
	require.NoError(t, f.DB.Create(student).Error)
	return student
}

// Application bundles the rows created by NewApplication.
type Application struct {
	Application *appdomain.Application
	Assessment  *appdomain.Assessment
	Offering    *appdomain.Offering
	MSFAA       *appdomain.MSFAANumber
}

// NewApplication creates a completed application with a current assessment
// and a signed MSFAA for intensity.
func (f *Fixture) NewApplication(t *testing.T, student *studentdomain.Student, number string, intensity appdomain.OfferingIntensity) *Application {
	t.Helper()
	offering := &appdomain.Offering{
		ID:                  f.id(),
		Intensity:           intensity,
		InstitutionCode:     "ABCD",
		StudyStartDate:      f.Now.AddDate(0, 0, -10),
		StudyEndDate:        f.Now.AddDate(0, 8, 0),
		WeeksOfStudy:        32,
		FieldOfStudy:        12,
		YearOfStudy:         2,
		CompletionYears:     4,
		CourseLoad:          60,
		ActualTuitionCosts:  decimal.NewFromInt(3000),
		ProgramRelatedCosts: decimal.NewFromInt(500),
		MandatoryFees:       decimal.NewFromInt(250),
	}
	application := &appdomain.Application{
		ID:                f.id(),
		ApplicationNumber: number,
		StudentID:         student.ID,
		Status:            appdomain.ApplicationStatusCompleted,
		StudentNumber:     "A0001",
		CreatedAt:         f.Now,
		UpdatedAt:         f.Now,
	}
	assessment := &appdomain.Assessment{
		ID:            f.id(),
		ApplicationID: application.ID,
		OfferingID:    offering.ID,
		AssessmentAt:  f.Now,
		CreatedAt:     f.Now,
	}
	application.CurrentAssessmentID = &assessment.ID
	signed := f.Now.AddDate(0, -1, 0)
	msfaa := &appdomain.MSFAANumber{
		ID:                f.id(),
		StudentID:         student.ID,
		MSFAANumber:       "10000" + number[len(number)-5:],
		OfferingIntensity: intensity,
		DateSigned:        &signed,
		CreatedAt:         f.Now,
		UpdatedAt:         f.Now,
	}
	require.NoError(t, f.DB.Create(offering).Error)
	require.NoError(t, f.DB.Create(application).Error)
	require.NoError(t, f.DB.Create(assessment).Error)
	require.NoError(t, f.DB.Create(msfaa).Error)
	return &Application{Application: application, Assessment: assessment, Offering: offering, MSFAA: msfaa}
}

// Award builds an unsaved award line.
func Award(valueType disbursementdomain.ValueType, code string, amount int64) *disbursementdomain.Value {
	return &disbursementdomain.Value{
		ValueType:   valueType,
		ValueCode:   code,
		ValueAmount: decimal.NewFromInt(amount),
	}
}

// Schedule creates a pending disbursement with a completed COE.
func (f *Fixture) Schedule(t *testing.T, app *Application, date time.Time, values ...*disbursementdomain.Value) *disbursementdomain.Schedule {
	t.Helper()
	schedule := &disbursementdomain.Schedule{
		ID:                   f.id(),
		StudentAssessmentID:  app.Assessment.ID,
		DisbursementDate:     date.UTC(),
		NegotiatedExpiryDate: date.UTC().AddDate(0, 0, 30),
		Status:               disbursementdomain.ScheduleStatusPending,
		COEStatus:            disbursementdomain.COEStatusCompleted,
		MSFAANumberID:        &app.MSFAA.ID,
		CreatedAt:            f.Now,
		UpdatedAt:            f.Now,
	}
	require.NoError(t, f.DB.Omit("Values").Create(schedule).Error)
	for _, v := range values {
		v.ID = f.id()
		v.DisbursementScheduleID = schedule.ID
		v.CreatedAt = f.Now
		v.UpdatedAt = f.Now
		require.NoError(t, f.DB.Create(v).Error)
	}
	schedule.Values = values
	return schedule
}

func (f *Fixture) Restriction(t *testing.T, code string, restrictionType restrictiondomain.RestrictionType, conditions map[string]any, actions ...restrictiondomain.ActionType) *restrictiondomain.Restriction {
	t.Helper()
	r := &restrictiondomain.Restriction{
		ID:                  f.id(),
		Code:                code,
		Description:         code + " restriction",
		RestrictionType:     restrictionType,
		ActionTypes:         datatypes.JSONSlice[restrictiondomain.ActionType](actions),
		EffectiveConditions: datatypes.JSONMap(conditions),
		CreatedAt:           f.Now,
	}
	require.NoError(t, f.DB.Create(r).Error)
	return r
}

func (f *Fixture) StudentRestriction(t *testing.T, studentID int64, restriction *restrictiondomain.Restriction) *restrictiondomain.StudentRestriction {
	t.Helper()
	sr := &restrictiondomain.StudentRestriction{
		ID:            f.id(),
		StudentID:     studentID,
		RestrictionID: restriction.ID,
		IsActive:      true,
		CreatedAt:     f.Now,
		UpdatedAt:     f.Now,
	}
	require.NoError(t, f.DB.Create(sr).Error)
	return sr
}

func (f *Fixture) Bypass(t *testing.T, applicationID, studentRestrictionID int64, behavior restrictiondomain.BypassBehavior) *restrictiondomain.ApplicationRestrictionBypass {
	t.Helper()
	b := &restrictiondomain.ApplicationRestrictionBypass{
		ID:                   f.id(),
		ApplicationID:        applicationID,
		StudentRestrictionID: studentRestrictionID,
		BypassBehavior:       behavior,
		IsActive:             true,
		CreatedAt:            f.Now,
		UpdatedAt:            f.Now,
	}
	require.NoError(t, f.DB.Create(b).Error)
	return b
}
