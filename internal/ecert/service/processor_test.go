package service

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	auditrepository "github.com/smallbiznis/sims/internal/audit/repository"
	auditservice "github.com/smallbiznis/sims/internal/audit/service"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	disbursementrepository "github.com/smallbiznis/sims/internal/disbursement/repository"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	ecertrepository "github.com/smallbiznis/sims/internal/ecert/repository"
	notificationdomain "github.com/smallbiznis/sims/internal/notification/domain"
	notificationservice "github.com/smallbiznis/sims/internal/notification/service"
	overawarddomain "github.com/smallbiznis/sims/internal/overaward/domain"
	overawardservice "github.com/smallbiznis/sims/internal/overaward/service"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	restrictionservice "github.com/smallbiznis/sims/internal/restriction/service"
	sequenceservice "github.com/smallbiznis/sims/internal/sequence/service"
	studentdomain "github.com/smallbiznis/sims/internal/student/domain"
	"github.com/smallbiznis/sims/internal/testutil"
	"github.com/smallbiznis/sims/pkg/summary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

var testNow = time.Date(2024, 9, 1, 12, 0, 0, 0, time.UTC)

type harness struct {
	db        *gorm.DB
	fixture   *testutil.Fixture
	clock     *clock.FakeClock
	processor *Processor
}

func newHarness(t *testing.T, cfg config.ECertConfig) *harness {
	t.Helper()
	db := testutil.NewDB(t)
	fixture := testutil.NewFixture(t, db, testNow)
	fake := clock.NewFakeClock(testNow)
	holder := config.NewStaticECertConfigHolder(cfg)
	log := zap.NewNop()

	audit := auditservice.NewService(auditservice.Params{DB: db, Log: log, GenID: fixture.Node, Clock: fake, Repo: auditrepository.Provide()})
	restrictions := restrictionservice.NewService(restrictionservice.Params{Log: log, GenID: fixture.Node, Clock: fake, Audit: audit})
	disbursements := disbursementrepository.Provide()

	processor := NewProcessor(Params{
		DB:            db,
		Log:           log,
		GenID:         fixture.Node,
		Clock:         fake,
		Config:        holder,
		Eligibility:   ecertrepository.Provide(disbursements),
		Disbursements: disbursements,
		Overawards:    overawardservice.NewService(overawardservice.Params{Log: log, GenID: fixture.Node, Clock: fake}),
		Restrictions:  restrictions,
		Notifications: notificationservice.NewService(notificationservice.Params{Log: log, GenID: fixture.Node, Clock: fake, Config: holder}),
		Sequences:     sequenceservice.NewService(sequenceservice.Params{DB: db, Log: log}),
	}).(*Processor)

	return &harness{db: db, fixture: fixture, clock: fake, processor: processor}
}

func testConfig() config.ECertConfig {
	cfg := config.DefaultECertConfig()
	cfg.Workers = 4
	return cfg
}

func (h *harness) run(t *testing.T, intensity appdomain.OfferingIntensity) domain.Result {
	t.Helper()
	result, err := h.processor.Process(context.Background(), intensity, summary.New(zap.NewNop(), "test"))
	require.NoError(t, err)
	return result
}

func (h *harness) reload(t *testing.T, id int64) *disbursementdomain.Schedule {
	t.Helper()
	var schedule disbursementdomain.Schedule
	require.NoError(t, h.db.Preload("Values").First(&schedule, id).Error)
	return &schedule
}

func (h *harness) ledger(t *testing.T, studentID int64, code string) []overawarddomain.DisbursementOveraward {
	t.Helper()
	var entries []overawarddomain.DisbursementOveraward
	require.NoError(t, h.db.Where("student_id = ? AND value_code = ?", studentID, code).Order("created_at asc, id asc").Find(&entries).Error)
	return entries
}

func (h *harness) addOveraward(t *testing.T, studentID int64, applicationID *int64, code string, amount int64, origin overawarddomain.OriginType) {
	t.Helper()
	require.NoError(t, h.db.Create(&overawarddomain.DisbursementOveraward{
		ID:             h.fixture.Node.Generate().Int64(),
		StudentID:      studentID,
		ApplicationID:  applicationID,
		ValueCode:      code,
		OverawardValue: decimal.NewFromInt(amount),
		OriginType:     origin,
		AddedDate:      testNow.AddDate(0, -2, 0),
		CreatedAt:      testNow.AddDate(0, -2, 0),
	}).Error)
}

func effective(t *testing.T, schedule *disbursementdomain.Schedule, code string) decimal.Decimal {
	t.Helper()
	award := schedule.ValueByCode(code)
	require.NotNil(t, award, "award %s", code)
	return award.EffectiveAmount
}

func assertAmount(t *testing.T, want int64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromInt(want).Equal(got), "want %d got %s", want, got)
}

func TestFullTimeAwardWithoutBalanceIsUnchanged(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6554),
	)

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, 1, result.Processed)

	saved := h.reload(t, schedule.ID)
	assert.Equal(t, disbursementdomain.ScheduleStatusReadyToSend, saved.Status)
	assertAmount(t, 6554, effective(t, saved, disbursementdomain.AwardCSLF))
	assertAmount(t, 0, effective(t, saved, disbursementdomain.AwardBCSG))
	require.NotNil(t, saved.DocumentNumber)
	assert.Equal(t, int64(1_000_001), *saved.DocumentNumber)
	require.NotNil(t, saved.ReadyToSendDate)

	var restrictions int64
	require.NoError(t, h.db.Model(&restrictiondomain.StudentRestriction{}).Count(&restrictions).Error)
	assert.Zero(t, restrictions)
	assert.Empty(t, h.ledger(t, student.ID, disbursementdomain.AwardCSLF))
}

func TestOverawardBalanceIsDeducted(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6554),
	)
	h.addOveraward(t, student.ID, nil, disbursementdomain.AwardCSLF, 2000, overawarddomain.OriginReassessmentOveraward)

	h.run(t, appdomain.OfferingIntensityFullTime)

	saved := h.reload(t, schedule.ID)
	assertAmount(t, 4554, effective(t, saved, disbursementdomain.AwardCSLF))
	assertAmount(t, 2000, saved.ValueByCode(disbursementdomain.AwardCSLF).OverawardAmountSubtracted)

	entries := h.ledger(t, student.ID, disbursementdomain.AwardCSLF)
	require.Len(t, entries, 2)
	assert.Equal(t, overawarddomain.OriginAwardDeducted, entries[1].OriginType)
	assertAmount(t, -2000, entries[1].OverawardValue)
	require.NotNil(t, entries[1].DisbursementScheduleID)
	assert.Equal(t, schedule.ID, *entries[1].DisbursementScheduleID)
}

func TestOverawardSpillsToNextDisbursement(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	first := h.fixture.Schedule(t, app, testNow.AddDate(0, 0, -1),
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 3000),
	)
	second := h.fixture.Schedule(t, app, testNow.AddDate(0, 0, 2),
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 3000),
	)
	h.addOveraward(t, student.ID, nil, disbursementdomain.AwardCSLF, 5000, overawarddomain.OriginReassessmentOveraward)

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, 2, result.Processed)

	assertAmount(t, 0, effective(t, h.reload(t, first.ID), disbursementdomain.AwardCSLF))
	assertAmount(t, 1000, effective(t, h.reload(t, second.ID), disbursementdomain.AwardCSLF))

	var balance decimal.Decimal
	require.NoError(t, h.db.Raw(`SELECT COALESCE(SUM(overaward_value), 0) FROM disbursement_overawards WHERE student_id = ?`, student.ID).Row().Scan(&balance))
	assertAmount(t, 0, balance)
}

func TestOverawardCreditNeverExceedsDeducted(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	award := testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6000)
	award.OverawardAmountSubtracted = decimal.NewFromInt(1000)
	schedule := h.fixture.Schedule(t, app, testNow, award)

	appID := app.Application.ID
	h.addOveraward(t, student.ID, &appID, disbursementdomain.AwardCSLF, -1000, overawarddomain.OriginAwardDeducted)
	h.addOveraward(t, student.ID, nil, disbursementdomain.AwardCSLF, -2500, overawarddomain.OriginReassessmentOveraward)

	h.run(t, appdomain.OfferingIntensityFullTime)

	saved := h.reload(t, schedule.ID)
	assertAmount(t, 0, saved.ValueByCode(disbursementdomain.AwardCSLF).OverawardAmountSubtracted)
	assertAmount(t, 6000, effective(t, saved, disbursementdomain.AwardCSLF))

	entries := h.ledger(t, student.ID, disbursementdomain.AwardCSLF)
	require.Len(t, entries, 3)
	assert.Equal(t, overawarddomain.OriginAwardCredited, entries[2].OriginType)
	assertAmount(t, 1000, entries[2].OverawardValue)
}

func TestStopBCFundingRestrictionZeroesGrant(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6554),
		testutil.Award(disbursementdomain.ValueTypeBCGrant, disbursementdomain.AwardBCAG, 1500),
		testutil.Award(disbursementdomain.ValueTypeBCLoan, disbursementdomain.AwardBCSL, 2000),
	)
	restriction := h.fixture.Restriction(t, "SSR", restrictiondomain.RestrictionTypeProvincial, nil, restrictiondomain.ActionStopFullTimeBCFunding)
	h.fixture.StudentRestriction(t, student.ID, restriction)

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, 1, result.Processed)

	saved := h.reload(t, schedule.ID)
	grant := saved.ValueByCode(disbursementdomain.AwardBCAG)
	assertAmount(t, 0, grant.EffectiveAmount)
	assertAmount(t, 1500, grant.RestrictionAmountSubtracted)
	require.NotNil(t, grant.RestrictionSubtractedID)
	assert.Equal(t, restriction.ID, *grant.RestrictionSubtractedID)
	assertAmount(t, 0, effective(t, saved, disbursementdomain.AwardBCSL))
	assertAmount(t, 6554, effective(t, saved, disbursementdomain.AwardCSLF))
	assertAmount(t, 0, effective(t, saved, disbursementdomain.AwardBCSG))
}

func TestRestrictionConditionMustMatchOffering(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeBCGrant, disbursementdomain.AwardBCAG, 1500),
	)
	restriction := h.fixture.Restriction(t, "AVI", restrictiondomain.RestrictionTypeProvincial,
		map[string]any{restrictiondomain.ConditionAviationCredentialTypes: []string{"commercialPilotTraining"}},
		restrictiondomain.ActionStopFullTimeBCFunding)
	h.fixture.StudentRestriction(t, student.ID, restriction)

	h.run(t, appdomain.OfferingIntensityFullTime)

	saved := h.reload(t, schedule.ID)
	assertAmount(t, 1500, effective(t, saved, disbursementdomain.AwardBCAG))
	assertAmount(t, 1500, effective(t, saved, disbursementdomain.AwardBCSG))
}

func TestLifetimeMaximumReducesLoanAndCreatesRestrictionOnce(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	first := h.fixture.Schedule(t, app, testNow.AddDate(0, 0, -1),
		testutil.Award(disbursementdomain.ValueTypeBCLoan, disbursementdomain.AwardBCSL, 5000),
	)
	second := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeBCLoan, disbursementdomain.AwardBCSL, 1000),
	)
	h.fixture.Restriction(t, restrictiondomain.CodeBCLoanLifetimeMaximum, restrictiondomain.RestrictionTypeProvincial, nil, restrictiondomain.ActionStopFullTimeBCLoan)
	require.NoError(t, h.db.Create(&studentdomain.LegacyLoanTotal{StudentID: student.ID, TotalBCSL: decimal.NewFromInt(48000)}).Error)

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, 2, result.Processed)

	saved := h.reload(t, first.ID)
	bcsl := saved.ValueByCode(disbursementdomain.AwardBCSL)
	assertAmount(t, 2000, bcsl.EffectiveAmount)
	assertAmount(t, 3000, bcsl.RestrictionAmountSubtracted)
	assertAmount(t, 0, effective(t, h.reload(t, second.ID), disbursementdomain.AwardBCSL))

	var created int64
	require.NoError(t, h.db.Model(&restrictiondomain.StudentRestriction{}).Where("student_id = ?", student.ID).Count(&created).Error)
	assert.Equal(t, int64(1), created)
}

func TestStopDisbursementRestrictionBlocksAndNotifies(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6554),
	)
	restriction := h.fixture.Restriction(t, "B2", restrictiondomain.RestrictionTypeProvincial, nil, restrictiondomain.ActionStopFullTimeDisbursement)
	h.fixture.StudentRestriction(t, student.ID, restriction)

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, 1, result.Blocked)
	assert.Zero(t, result.Processed)

	saved := h.reload(t, schedule.ID)
	assert.Equal(t, disbursementdomain.ScheduleStatusPending, saved.Status)
	assert.Nil(t, saved.DocumentNumber)

	var notifications []notificationdomain.Notification
	require.NoError(t, h.db.Find(&notifications).Error)
	require.Len(t, notifications, 1)
	assert.Equal(t, notificationdomain.MessageECertBlocked, notifications[0].MessageType)
	assert.Equal(t, domain.ReasonStopDisbursement, notifications[0].Payload["reason"])
}

func TestSingleUseBypassCoversOneDisbursement(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	first := h.fixture.Schedule(t, app, testNow.AddDate(0, 0, -1),
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 1000),
	)
	second := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 1000),
	)
	restriction := h.fixture.Restriction(t, "B2", restrictiondomain.RestrictionTypeProvincial, nil, restrictiondomain.ActionStopFullTimeDisbursement)
	sr := h.fixture.StudentRestriction(t, student.ID, restriction)
	bypass := h.fixture.Bypass(t, app.Application.ID, sr.ID, restrictiondomain.BypassNextDisbursementOnly)

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, 1, result.Processed)
	assert.Equal(t, 1, result.Blocked)

	assert.Equal(t, disbursementdomain.ScheduleStatusReadyToSend, h.reload(t, first.ID).Status)
	assert.Equal(t, disbursementdomain.ScheduleStatusPending, h.reload(t, second.ID).Status)

	var stored restrictiondomain.ApplicationRestrictionBypass
	require.NoError(t, h.db.First(&stored, bypass.ID).Error)
	assert.False(t, stored.IsActive)
	assert.NotEmpty(t, stored.RemovalNote)
}

func TestTuitionRemittanceIsCappedToOfferingCosts(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6554),
	)
	require.NoError(t, h.db.Model(&disbursementdomain.Schedule{}).Where("id = ?", schedule.ID).
		Update("tuition_remittance_requested_amount", decimal.NewFromInt(5000)).Error)

	h.run(t, appdomain.OfferingIntensityFullTime)

	assertAmount(t, 3750, h.reload(t, schedule.ID).TuitionRemittanceEffectiveAmount)
}

func TestSummaryEntriesAreEventKeys(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 6554),
	)
	require.NoError(t, h.db.Model(&disbursementdomain.Schedule{}).Where("id = ?", schedule.ID).
		Update("tuition_remittance_requested_amount", decimal.NewFromInt(5000)).Error)

	log := summary.New(zap.NewNop(), "test")
	_, err := h.processor.Process(context.Background(), appdomain.OfferingIntensityFullTime, log)
	require.NoError(t, err)

	eventKey := regexp.MustCompile(`^[a-z_]+(\.[a-z_]+)+$`)
	var messages []string
	for _, entry := range log.Entries() {
		messages = append(messages, entry.Message)
		assert.Regexp(t, eventKey, entry.Message)
	}
	assert.Contains(t, messages, "ecert.tuition_remittance.reduced")
	assert.Contains(t, messages, "ecert.disbursement.ready_to_send")
	assert.Contains(t, messages, "ecert.calculation.finished")
}

func TestPartTimeCSLPLifetimeGateBlocks(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityPartTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLP, 2000),
		testutil.Award(disbursementdomain.ValueTypeBCGrant, disbursementdomain.AwardBCAG, 500),
	)
	require.NoError(t, h.db.Create(&studentdomain.StudentLoanBalance{
		ID:          h.fixture.Node.Generate().Int64(),
		StudentID:   student.ID,
		CSLBalance:  decimal.NewFromInt(9000),
		BalanceDate: testNow.AddDate(0, -1, 0),
		CreatedAt:   testNow,
	}).Error)

	result := h.run(t, appdomain.OfferingIntensityPartTime)
	assert.Equal(t, 1, result.Blocked)

	saved := h.reload(t, schedule.ID)
	assert.Equal(t, disbursementdomain.ScheduleStatusPending, saved.Status)
	// effective values reached before the gate are kept
	assertAmount(t, 2000, effective(t, saved, disbursementdomain.AwardCSLP))
}

func TestResolvedRestrictionNoLongerZeroesGrantOnRerun(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityPartTime)
	schedule := h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLP, 2000),
		testutil.Award(disbursementdomain.ValueTypeBCGrant, disbursementdomain.AwardBCAG, 500),
	)
	restriction := h.fixture.Restriction(t, "PTB", restrictiondomain.RestrictionTypeProvincial, nil, restrictiondomain.ActionStopPartTimeBCFunding)
	active := h.fixture.StudentRestriction(t, student.ID, restriction)
	balance := &studentdomain.StudentLoanBalance{
		ID:          h.fixture.Node.Generate().Int64(),
		StudentID:   student.ID,
		CSLBalance:  decimal.NewFromInt(9000),
		BalanceDate: testNow.AddDate(0, -1, 0),
		CreatedAt:   testNow,
	}
	require.NoError(t, h.db.Create(balance).Error)

	result := h.run(t, appdomain.OfferingIntensityPartTime)
	require.Equal(t, 1, result.Blocked)

	saved := h.reload(t, schedule.ID)
	grant := saved.ValueByCode(disbursementdomain.AwardBCAG)
	assertAmount(t, 0, grant.EffectiveAmount)
	assertAmount(t, 500, grant.RestrictionAmountSubtracted)

	require.NoError(t, h.db.Model(active).Update("is_active", false).Error)
	require.NoError(t, h.db.Model(balance).Update("csl_balance", decimal.Zero).Error)

	result = h.run(t, appdomain.OfferingIntensityPartTime)
	require.Equal(t, 1, result.Processed)

	saved = h.reload(t, schedule.ID)
	assert.Equal(t, disbursementdomain.ScheduleStatusReadyToSend, saved.Status)
	grant = saved.ValueByCode(disbursementdomain.AwardBCAG)
	assertAmount(t, 500, grant.EffectiveAmount)
	assertAmount(t, 0, grant.RestrictionAmountSubtracted)
	assert.Nil(t, grant.RestrictionSubtractedID)
	assertAmount(t, 2000, effective(t, saved, disbursementdomain.AwardCSLP))
}

func TestPartTimeRunIgnoresFullTimeDisbursements(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	h.fixture.Schedule(t, app, testNow,
		testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 100),
	)

	result := h.run(t, appdomain.OfferingIntensityPartTime)
	assert.Zero(t, result.Students)
}

type failingStep struct{ err error }

func (s failingStep) Name() string { return "failing" }

func (s failingStep) Execute(context.Context, *domain.EligibleDisbursement, *gorm.DB, *summary.Log) (bool, error) {
	return false, s.err
}

type panickingStep struct{}

func (panickingStep) Name() string { return "panicking" }

func (panickingStep) Execute(context.Context, *domain.EligibleDisbursement, *gorm.DB, *summary.Log) (bool, error) {
	panic("unexpected state")
}

func TestStepErrorRollsBackAndStopsOnlyThatStudent(t *testing.T) {
	h := newHarness(t, testConfig())
	cfg := testConfig()
	failing := h.fixture.Student(t, "046454286")
	healthy := h.fixture.Student(t, "046454294")
	failingApp := h.fixture.NewApplication(t, failing, "1000000001", appdomain.OfferingIntensityFullTime)
	healthyApp := h.fixture.NewApplication(t, healthy, "1000000002", appdomain.OfferingIntensityFullTime)
	h.fixture.Schedule(t, failingApp, testNow.AddDate(0, 0, -1), testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 100))
	h.fixture.Schedule(t, failingApp, testNow, testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 100))
	healthySchedule := h.fixture.Schedule(t, healthyApp, testNow, testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 100))

	students, err := h.processor.eligibility.EligibleDisbursements(context.Background(), h.db, appdomain.OfferingIntensityFullTime, testNow)
	require.NoError(t, err)
	require.Len(t, students, 2)

	log := summary.New(zap.NewNop(), "test")
	steps := h.processor.Steps(appdomain.OfferingIntensityFullTime, cfg)
	for _, student := range students {
		run := steps
		if student.StudentID == failing.ID {
			run = append([]domain.Step{steps[0], steps[1], steps[2]}, failingStep{err: errors.New("boom")})
		}
		outcome := h.processor.processStudent(context.Background(), appdomain.OfferingIntensityFullTime, cfg, run, student, log)
		if student.StudentID == failing.ID {
			assert.Equal(t, 1, outcome.Failed)
			assert.Equal(t, 1, outcome.Skipped)
		} else {
			assert.Equal(t, 1, outcome.Processed)
		}
	}
	assert.True(t, log.HasErrors())

	var pending int64
	require.NoError(t, h.db.Model(&disbursementdomain.Schedule{}).Where("disbursement_schedule_status = ?", disbursementdomain.ScheduleStatusPending).Count(&pending).Error)
	assert.Equal(t, int64(2), pending)
	assert.Equal(t, disbursementdomain.ScheduleStatusReadyToSend, h.reload(t, healthySchedule.ID).Status)
}

func TestPanicIsContainedToStudent(t *testing.T) {
	h := newHarness(t, testConfig())
	student := h.fixture.Student(t, "046454286")
	app := h.fixture.NewApplication(t, student, "1000000001", appdomain.OfferingIntensityFullTime)
	h.fixture.Schedule(t, app, testNow, testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 100))

	students, err := h.processor.eligibility.EligibleDisbursements(context.Background(), h.db, appdomain.OfferingIntensityFullTime, testNow)
	require.NoError(t, err)
	require.Len(t, students, 1)

	log := summary.New(zap.NewNop(), "test")
	var outcome domain.Result
	require.NotPanics(t, func() {
		outcome = h.processor.processStudent(context.Background(), appdomain.OfferingIntensityFullTime, testConfig(), []domain.Step{panickingStep{}}, students[0], log)
	})
	assert.Equal(t, 1, outcome.Failed)
	assert.True(t, log.HasErrors())
}

func TestManyStudentsInParallel(t *testing.T) {
	h := newHarness(t, testConfig())
	sins := []string{"046454286", "046454294", "046454302", "046454310", "046454328", "046454336"}
	for i, sin := range sins {
		student := h.fixture.Student(t, sin)
		app := h.fixture.NewApplication(t, student, "100000000"+string(rune('0'+i)), appdomain.OfferingIntensityFullTime)
		h.fixture.Schedule(t, app, testNow, testutil.Award(disbursementdomain.ValueTypeCanadaLoan, disbursementdomain.AwardCSLF, 1000))
	}

	result := h.run(t, appdomain.OfferingIntensityFullTime)
	assert.Equal(t, len(sins), result.Students)
	assert.Equal(t, len(sins), result.Processed)

	var numbers []int64
	require.NoError(t, h.db.Model(&disbursementdomain.Schedule{}).Pluck("document_number", &numbers).Error)
	seen := map[int64]bool{}
	for _, n := range numbers {
		assert.False(t, seen[n], "duplicate document number %d", n)
		seen[n] = true
	}
}
