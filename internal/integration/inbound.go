package integration

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
	obsmetrics "github.com/smallbiznis/sims/internal/observability/metrics"
	"github.com/smallbiznis/sims/pkg/fixedwidth"
	"github.com/smallbiznis/sims/pkg/log/ctxlogger"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Disposal is what happens to a response file once it was processed.
type Disposal int

const (
	DisposalArchive Disposal = iota
	DisposalDelete
)

// InboundSpec describes one family of response files.
type InboundSpec struct {
	Integration string
	Pattern     *regexp.Regexp
	Disposal    Disposal
}

// Inbound response file patterns.
var (
	SINResponsePattern           = regexp.MustCompile(`^[A-Z]SINR\d{6}\.DAT$`)
	MSFAAResponsePattern         = regexp.MustCompile(`^[A-Z]MSFR\d{6}\.DAT$`)
	ECertFullTimeFeedbackPattern = regexp.MustCompile(`^[A-Z]ECFF\d{6}\.DAT$`)
	ECertPartTimeFeedbackPattern = regexp.MustCompile(`^[A-Z]ECFP\d{6}\.DAT$`)
	CRAResponsePattern           = regexp.MustCompile(`^[A-Z]CRAS\d{5}\.TXT$`)
	ReceiptPattern               = regexp.MustCompile(`^[A-Z]RCPT\d{6}\.DAT$`)
	FederalRestrictionPattern    = regexp.MustCompile(`^[A-Z]FEDR\d{6}\.DAT$`)
	StudentLoanBalancePattern    = regexp.MustCompile(`^[A-Z]BALS\d{6}\.DAT$`)
)

// InboundFile is a downloaded response file handed to a family handler.
type InboundFile struct {
	Name          string
	CorrelationID string
	Lines         []string
	Log           *summary.Log
}

// InboundHandler persists the content of one file. Returning an error keeps
// the file in place for the next run.
type InboundHandler func(ctx context.Context, file InboundFile) error

// FileResult is the outcome of one response file.
type FileResult struct {
	Name          string
	CorrelationID string
	Err           error
}

type InboundResult struct {
	Files []FileResult
}

func (r InboundResult) Processed() int {
	n := 0
	for _, f := range r.Files {
		if f.Err == nil {
			n++
		}
	}
	return n
}

type RunnerParams struct {
	fx.In

	Transport Transport
	Log       *zap.Logger
}

// InboundRunner discovers response files in name order and processes each
// one in isolation.
type InboundRunner struct {
	transport Transport
	log       *zap.Logger
	metrics   *obsmetrics.IntegrationMetrics
	now       func() time.Time
}

func NewInboundRunner(p RunnerParams) *InboundRunner {
	return &InboundRunner{
		transport: p.Transport,
		log:       p.Log.Named("integration.inbound"),
		metrics:   obsmetrics.Integration(),
		now:       time.Now,
	}
}

// Process runs handle for every file matching spec. Failed files are left
// in the response folder and reported in the joined error; the remaining
// files are still processed.
func (r *InboundRunner) Process(ctx context.Context, spec InboundSpec, parent *summary.Log, handle InboundHandler) (InboundResult, error) {
	if parent == nil {
		parent = summary.New(r.log, spec.Integration)
	}
	files, err := r.transport.List(ctx, spec.Pattern)
	if err != nil {
		return InboundResult{}, fmt.Errorf("list %s files: %w", spec.Integration, err)
	}
	if len(files) == 0 {
		parent.Info(fmt.Sprintf("no %s files to process", spec.Integration))
		return InboundResult{}, nil
	}

	var result InboundResult
	var errs []error
	for _, file := range files {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		outcome := r.processFile(ctx, spec, file, parent, handle)
		result.Files = append(result.Files, outcome)
		if outcome.Err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", file.Name, outcome.Err))
		}
	}
	return result, errors.Join(errs...)
}

func (r *InboundRunner) processFile(ctx context.Context, spec InboundSpec, file RemoteFile, parent *summary.Log, handle InboundHandler) FileResult {
	correlationID := ulid.MustNew(ulid.Timestamp(r.now()), ulid.DefaultEntropy()).String()
	log := parent.Child("file "+file.Name,
		zap.String("integration", spec.Integration),
		zap.String("file", file.Name),
		zap.String("correlation_id", correlationID),
	)
	out := FileResult{Name: file.Name, CorrelationID: correlationID}
	ctx = ctxlogger.ContextWithFile(ctx, file.Name)

	content, err := r.transport.Download(ctx, file.Name)
	if err != nil {
		out.Err = err
		r.fail(spec, log, err)
		return out
	}

	err = handle(ctx, InboundFile{
		Name:          file.Name,
		CorrelationID: correlationID,
		Lines:         fixedwidth.SplitLines(content),
		Log:           log,
	})
	if err != nil {
		out.Err = err
		r.fail(spec, log, err)
		return out
	}

	if spec.Disposal == DisposalDelete {
		err = r.transport.Delete(ctx, file.Name)
	} else {
		err = r.transport.Archive(ctx, file.Name)
	}
	if err != nil {
		// the content is persisted; the file will be seen again and must be idempotent
		out.Err = err
		log.Error("integration.file.dispose_failed", err)
		r.metrics.IncFile(spec.Integration, obsmetrics.FileOutcomeFailed)
		return out
	}

	log.Info("integration.file.processed")
	r.metrics.IncFile(spec.Integration, obsmetrics.FileOutcomeProcessed)
	return out
}

func (r *InboundRunner) fail(spec InboundSpec, log *summary.Log, err error) {
	var envErr *fixedwidth.EnvelopeError
	if errors.As(err, &envErr) {
		log.Error("integration.file.envelope_invalid", err, zap.String("kind", envErr.Kind.String()))
		r.metrics.IncEnvelopeError(spec.Integration, envErr.Kind.String())
	} else {
		log.Error("integration.file.failed", err)
	}
	r.metrics.IncFile(spec.Integration, obsmetrics.FileOutcomeFailed)
}

// ReportRecords books the decoded and skipped details of a file.
func ReportRecords(integration string, log *summary.Log, decoded int, skipped []*fixedwidth.RecordError) {
	metrics := obsmetrics.Integration()
	metrics.AddRecords(integration, decoded)
	if len(skipped) == 0 {
		return
	}
	metrics.AddRecordsSkipped(integration, len(skipped))
	for _, recErr := range skipped {
		log.Warn("integration.record.skipped", zap.Int("line", recErr.Line), zap.String("field", recErr.Field), zap.Error(recErr.Err))
	}
}
