package scheduler

import (
	"context"
	"errors"
	"time"

	appdomain "github.com/smallbiznis/sims/internal/application/domain"
	ecertdomain "github.com/smallbiznis/sims/internal/ecert/domain"
	"github.com/smallbiznis/sims/internal/integration/cra"
	ecertfile "github.com/smallbiznis/sims/internal/integration/ecert"
	"github.com/smallbiznis/sims/internal/integration/fedrestriction"
	"github.com/smallbiznis/sims/internal/integration/loanbalance"
	"github.com/smallbiznis/sims/internal/integration/msfaa"
	"github.com/smallbiznis/sims/internal/integration/receipt"
	"github.com/smallbiznis/sims/internal/integration/sinvalidation"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
)

const (
	JobSINValidationRequest  = "sin-validation-request"
	JobSINValidationResponse = "sin-validation-response"
	JobMSFAARequestFullTime  = "msfaa-request-fulltime"
	JobMSFAARequestPartTime  = "msfaa-request-parttime"
	JobMSFAAResponse         = "msfaa-response"
	JobECertFullTime         = "ecert-fulltime"
	JobECertPartTime         = "ecert-parttime"
	JobECertFeedbackFullTime = "ecert-feedback-fulltime"
	JobECertFeedbackPartTime = "ecert-feedback-parttime"
	JobCRARequest            = "cra-request"
	JobCRAResponse           = "cra-response"
	JobDisbursementReceipts  = "disbursement-receipts"
	JobFederalRestrictions   = "federal-restrictions"
	JobLoanBalances          = "loan-balances"
)

const (
	outboundTimeout = 10 * time.Minute
	inboundTimeout  = 30 * time.Minute
	ecertTimeout    = time.Hour
)

// JobSet is the ordered job table the scheduler runs.
type JobSet struct {
	jobs []Job
}

func NewJobSet(jobs ...Job) JobSet {
	return JobSet{jobs: jobs}
}

func (j JobSet) Jobs() []Job {
	return append([]Job(nil), j.jobs...)
}

type JobParams struct {
	fx.In

	Processor     ecertdomain.Processor
	SINValidation *sinvalidation.Service
	MSFAA         *msfaa.Service
	ECert         *ecertfile.Service
	CRA           *cra.Service
	Receipts      *receipt.Service
	Restrictions  *fedrestriction.Service
	LoanBalances  *loanbalance.Service
}

// ProvideJobSet registers the file exchange jobs. Requests go out before
// responses are read so one tick can complete a round trip on a local
// file store.
func ProvideJobSet(p JobParams) JobSet {
	return NewJobSet(
		Job{
			Name:        JobSINValidationRequest,
			Description: "send pending SIN validation requests",
			Timeout:     outboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.SINValidation.SendRequests(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobSINValidationResponse,
			Description: "apply SIN validation responses",
			Timeout:     inboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.SINValidation.ProcessResponses(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobMSFAARequestFullTime,
			Description: "send full-time MSFAA requests",
			Timeout:     outboundTimeout,
			Run:         msfaaRequest(p.MSFAA, appdomain.OfferingIntensityFullTime),
		},
		Job{
			Name:        JobMSFAARequestPartTime,
			Description: "send part-time MSFAA requests",
			Timeout:     outboundTimeout,
			Run:         msfaaRequest(p.MSFAA, appdomain.OfferingIntensityPartTime),
		},
		Job{
			Name:        JobMSFAAResponse,
			Description: "apply signed and cancelled MSFAA responses",
			Timeout:     inboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.MSFAA.ProcessResponses(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobECertFullTime,
			Description: "calculate and send full-time e-certs",
			Timeout:     ecertTimeout,
			Run:         ecertRun(p.Processor, p.ECert, appdomain.OfferingIntensityFullTime),
		},
		Job{
			Name:        JobECertPartTime,
			Description: "calculate and send part-time e-certs",
			Timeout:     ecertTimeout,
			Run:         ecertRun(p.Processor, p.ECert, appdomain.OfferingIntensityPartTime),
		},
		Job{
			Name:        JobECertFeedbackFullTime,
			Description: "record full-time e-cert feedback errors",
			Timeout:     inboundTimeout,
			Run:         ecertFeedback(p.ECert, appdomain.OfferingIntensityFullTime),
		},
		Job{
			Name:        JobECertFeedbackPartTime,
			Description: "record part-time e-cert feedback errors",
			Timeout:     inboundTimeout,
			Run:         ecertFeedback(p.ECert, appdomain.OfferingIntensityPartTime),
		},
		Job{
			Name:        JobCRARequest,
			Description: "send CRA income verification requests",
			Timeout:     outboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.CRA.SendRequests(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobCRAResponse,
			Description: "apply CRA income verification responses",
			Timeout:     inboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.CRA.ProcessResponses(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobDisbursementReceipts,
			Description: "store disbursement receipts",
			Timeout:     inboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.Receipts.ProcessReceipts(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobFederalRestrictions,
			Description: "reconcile the federal restriction snapshot",
			Timeout:     inboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.Restrictions.ProcessSnapshots(ctx, log)
				return err
			},
		},
		Job{
			Name:        JobLoanBalances,
			Description: "store CSL balances",
			Timeout:     inboundTimeout,
			Run: func(ctx context.Context, log *summary.Log) error {
				_, err := p.LoanBalances.ProcessBalances(ctx, log)
				return err
			},
		},
	)
}

func msfaaRequest(svc *msfaa.Service, intensity appdomain.OfferingIntensity) JobFunc {
	return func(ctx context.Context, log *summary.Log) error {
		_, err := svc.SendRequests(ctx, intensity, log)
		return err
	}
}

// ecertRun calculates the eligible disbursements and sends everything
// that became ready. A calculation failure still lets disbursements
// readied by earlier runs go out.
func ecertRun(processor ecertdomain.Processor, sender *ecertfile.Service, intensity appdomain.OfferingIntensity) JobFunc {
	return func(ctx context.Context, log *summary.Log) error {
		_, calcErr := processor.Process(ctx, intensity, log.Child("calculation"))
		if calcErr != nil {
			log.Error("ecert.calculation.failed", calcErr)
		}
		_, sendErr := sender.SendECerts(ctx, intensity, log.Child("send"))
		return errors.Join(calcErr, sendErr)
	}
}

func ecertFeedback(svc *ecertfile.Service, intensity appdomain.OfferingIntensity) JobFunc {
	return func(ctx context.Context, log *summary.Log) error {
		_, err := svc.ProcessFeedback(ctx, intensity, log)
		return err
	}
}
