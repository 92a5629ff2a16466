package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	"github.com/smallbiznis/sims/internal/clock"
	"github.com/smallbiznis/sims/internal/config"
	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	notificationdomain "github.com/smallbiznis/sims/internal/notification/domain"
	obsmetrics "github.com/smallbiznis/sims/internal/observability/metrics"
	overawarddomain "github.com/smallbiznis/sims/internal/overaward/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Config        *config.ECertConfigHolder
	Eligibility   domain.EligibilityRepository
	Disbursements disbursementdomain.Repository
	Overawards    overawarddomain.Service
	Restrictions  restrictiondomain.Service
	Notifications notificationdomain.Service
	Sequences     sequencedomain.Service
}

type Processor struct {
	db            *gorm.DB
	log           *zap.Logger
	clock         clock.Clock
	config        *config.ECertConfigHolder
	eligibility   domain.EligibilityRepository
	overawards    overawarddomain.Service
	restrictions  restrictiondomain.Service
	notifications notificationdomain.Service
	sequences     sequencedomain.Service
	writer        *calculationWriter
	tracer        trace.Tracer
	metrics       *obsmetrics.ECertMetrics
}

func NewProcessor(p Params) domain.Processor {
	return &Processor{
		db:            p.DB,
		log:           p.Log.Named("ecert.processor"),
		clock:         p.Clock,
		config:        p.Config,
		eligibility:   p.Eligibility,
		overawards:    p.Overawards,
		restrictions:  p.Restrictions,
		notifications: p.Notifications,
		sequences:     p.Sequences,
		writer:        &calculationWriter{repo: p.Disbursements, genID: p.GenID, clock: p.Clock},
		tracer:        otel.Tracer("github.com/smallbiznis/sims/internal/ecert"),
		metrics:       obsmetrics.ECert(),
	}
}

// Steps returns the ordered calculation for an intensity.
func (p *Processor) Steps(intensity appdomain.OfferingIntensity, cfg config.ECertConfig) []domain.Step {
	steps := []domain.Step{
		ValidateStep{},
		NewOverawardDeductionStep(p.overawards),
		EffectiveValueStep{},
		RestrictionApplicationStep{},
	}
	if intensity == appdomain.OfferingIntensityPartTime {
		steps = append(steps, NewCSLPLifetimeGateStep(cfg.CSLPLifetimeMaximum))
	} else {
		steps = append(steps, NewLifetimeMaximumStep(p.restrictions))
	}
	return append(steps,
		TuitionRemittanceCapStep{},
		AggregateGrantStep{},
		&PersistStep{writer: p.writer, sequences: p.sequences, gap: cfg.DocumentNumberGap},
		&RestrictionBypassResolutionStep{restrictions: p.restrictions},
	)
}

// Process calculates every eligible disbursement of intensity. Students run
// in parallel; one student's disbursements run in date order and the first
// unexpected error skips the rest of that student only.
func (p *Processor) Process(ctx context.Context, intensity appdomain.OfferingIntensity, log *summary.Log) (domain.Result, error) {
	if !intensity.Valid() {
		return domain.Result{}, domain.ErrInvalidIntensity
	}
	if log == nil {
		log = summary.New(p.log, "ecert "+string(intensity))
	}

	cfg := p.config.Get()
	limitDate := p.clock.Now().AddDate(0, 0, cfg.AnticipationDays)
	students, err := p.eligibility.EligibleDisbursements(ctx, p.db, intensity, limitDate)
	if err != nil {
		return domain.Result{}, fmt.Errorf("eligible disbursements: %w", err)
	}
	log.Info(fmt.Sprintf("found %d students with eligible disbursements", len(students)),
		zap.String("intensity", string(intensity)),
		zap.Time("limit_date", limitDate),
	)

	steps := p.Steps(intensity, cfg)
	result := domain.Result{Students: len(students)}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(cfg.WorkerCount())
	for _, student := range students {
		g.Go(func() error {
			outcome := p.processStudent(ctx, intensity, cfg, steps, student, log)
			mu.Lock()
			result.Processed += outcome.Processed
			result.Blocked += outcome.Blocked
			result.Failed += outcome.Failed
			result.Skipped += outcome.Skipped
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	log.Info("ecert.calculation.finished",
		zap.Int("processed", result.Processed),
		zap.Int("blocked", result.Blocked),
		zap.Int("failed", result.Failed),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}

func (p *Processor) processStudent(ctx context.Context, intensity appdomain.OfferingIntensity, cfg config.ECertConfig, steps []domain.Step, student *domain.StudentDisbursements, parent *summary.Log) (out domain.Result) {
	started := time.Now()
	log := parent.Child(fmt.Sprintf("student %d", student.StudentID), zap.Int64("student_id", student.StudentID))
	current := 0

	defer func() {
		if r := recover(); r != nil {
			log.Error("ecert.student.panic", fmt.Errorf("panic: %v", r))
			p.countFailure(intensity, &out, len(student.Disbursements)-current)
		}
		p.metrics.ObserveStudent(string(intensity), time.Since(started).Seconds())
	}()

	if err := p.prepare(ctx, cfg, student); err != nil {
		log.Error("ecert.student.prepare_failed", err)
		p.countFailure(intensity, &out, len(student.Disbursements))
		return out
	}

	for i, d := range student.Disbursements {
		current = i
		dlog := log.Child(fmt.Sprintf("disbursement %d", d.Disbursement.ID),
			zap.Int64("disbursement_schedule_id", d.Disbursement.ID),
			zap.String("application_number", d.ApplicationNumber),
		)
		blockedAt, err := p.processDisbursement(ctx, steps, d, dlog)
		if err != nil {
			dlog.Error("ecert.disbursement.failed", err)
			p.countFailure(intensity, &out, len(student.Disbursements)-i)
			return out
		}
		if blockedAt != "" {
			out.Blocked++
			p.metrics.IncDisbursement(string(intensity), obsmetrics.OutcomeBlocked)
			p.metrics.IncBlocked(string(intensity), blockedAt)
			continue
		}
		out.Processed++
		p.metrics.IncDisbursement(string(intensity), obsmetrics.OutcomeProcessed)
	}
	current = len(student.Disbursements)
	return out
}

// countFailure books the failing disbursement and skips the remaining ones.
func (p *Processor) countFailure(intensity appdomain.OfferingIntensity, out *domain.Result, remaining int) {
	if remaining <= 0 {
		return
	}
	out.Failed++
	out.Skipped += remaining - 1
	p.metrics.IncDisbursement(string(intensity), obsmetrics.OutcomeFailed)
	for i := 1; i < remaining; i++ {
		p.metrics.IncDisbursement(string(intensity), obsmetrics.OutcomeSkipped)
	}
}

// prepare loads the state shared by the student's disbursements.
func (p *Processor) prepare(ctx context.Context, cfg config.ECertConfig, student *domain.StudentDisbursements) error {
	balances, err := p.overawards.Balances(ctx, p.db, student.StudentID)
	if err != nil {
		return fmt.Errorf("overaward balances: %w", err)
	}
	items, err := p.restrictions.ActiveRestrictions(ctx, p.db, student.StudentID)
	if err != nil {
		return fmt.Errorf("active restrictions: %w", err)
	}
	snapshot := restrictiondomain.NewSnapshot(items)

	bypasses := make(map[int64][]*restrictiondomain.Bypass)
	for _, d := range student.Disbursements {
		if _, ok := bypasses[d.ApplicationID]; !ok {
			loaded, err := p.restrictions.ActiveBypasses(ctx, p.db, d.ApplicationID)
			if err != nil {
				return fmt.Errorf("active bypasses: %w", err)
			}
			bypasses[d.ApplicationID] = loaded
		}
		d.Balances = balances
		d.Restrictions = snapshot
		d.Bypasses = bypasses[d.ApplicationID]
		d.MaxLifetimeBCLoanAmount = cfg.MaxLifetimeBCLoanAmount
	}
	return nil
}

// processDisbursement runs every step in one transaction. A step that
// stops the pipeline still commits what was calculated so far; an error
// rolls the whole disbursement back. It returns the blocking step name.
func (p *Processor) processDisbursement(ctx context.Context, steps []domain.Step, d *domain.EligibleDisbursement, log *summary.Log) (string, error) {
	ctx, span := p.tracer.Start(ctx, "ecert.disbursement", trace.WithAttributes(
		attribute.Int64("disbursement_schedule_id", d.Disbursement.ID),
		attribute.Int64("student_id", d.StudentID),
		attribute.String("intensity", string(d.Intensity)),
	))
	defer span.End()

	var blockedAt string
	err := p.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, step := range steps {
			ok, err := step.Execute(ctx, d, tx, log)
			if err != nil {
				return fmt.Errorf("%s: %w", step.Name(), err)
			}
			if ok {
				continue
			}
			blockedAt = step.Name()
			return p.block(ctx, tx, d, step.Name(), log)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}
	if blockedAt != "" {
		span.SetAttributes(attribute.String("blocked_at", blockedAt))
	}
	return blockedAt, nil
}

func (p *Processor) block(ctx context.Context, tx *gorm.DB, d *domain.EligibleDisbursement, step string, log *summary.Log) error {
	if err := p.writer.Save(ctx, tx, d.Disbursement); err != nil {
		return fmt.Errorf("save blocked disbursement: %w", err)
	}
	notified, err := p.notifications.RecordBlockedDisbursement(ctx, tx, notificationdomain.BlockedDisbursement{
		StudentID:              d.StudentID,
		ApplicationNumber:      d.ApplicationNumber,
		DisbursementScheduleID: d.Disbursement.ID,
		Intensity:              string(d.Intensity),
		Reason:                 d.BlockReason,
	})
	if err != nil {
		return fmt.Errorf("blocked notification: %w", err)
	}
	log.Warn(fmt.Sprintf("disbursement blocked at %s", step),
		zap.String("reason", d.BlockReason),
		zap.Bool("notified", notified),
	)
	return nil
}
