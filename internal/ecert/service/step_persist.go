package service

import (
	"context"
	"fmt"

	disbursementdomain "github.com/smallbiznis/sims/internal/disbursement/domain"
	"github.com/smallbiznis/sims/internal/ecert/domain"
	restrictiondomain "github.com/smallbiznis/sims/internal/restriction/domain"
	sequencedomain "github.com/smallbiznis/sims/internal/sequence/domain"
	"github.com/smallbiznis/sims/pkg/summary"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// PersistStep marks the disbursement ready to send, assigning its document
// number on first calculation.
type PersistStep struct {
	writer    *calculationWriter
	sequences sequencedomain.Service
	gap       int64
}

func (s *PersistStep) Name() string { return "persist" }

func (s *PersistStep) Execute(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error) {
	schedule := d.Disbursement
	if schedule.DocumentNumber == nil {
		seq, err := s.sequences.NextSequence(ctx, tx, sequencedomain.DocumentNumberGroup)
		if err != nil {
			return false, fmt.Errorf("document number: %w", err)
		}
		documentNumber := sequencedomain.WithGap(seq, s.gap)
		schedule.DocumentNumber = &documentNumber
	}

	now := s.writer.clock.Now()
	schedule.Status = disbursementdomain.ScheduleStatusReadyToSend
	schedule.ReadyToSendDate = &now
	if err := s.writer.Save(ctx, tx, schedule); err != nil {
		return false, err
	}

	log.Info("ecert.disbursement.ready_to_send", zap.Int64("document_number", *schedule.DocumentNumber))
	return true, nil
}

// RestrictionBypassResolutionStep retires bypasses that only covered the
// next disbursement of the application.
type RestrictionBypassResolutionStep struct {
	restrictions restrictiondomain.Service
}

func (s *RestrictionBypassResolutionStep) Name() string { return "restriction_bypass_resolution" }

func (s *RestrictionBypassResolutionStep) Execute(ctx context.Context, d *domain.EligibleDisbursement, tx *gorm.DB, log *summary.Log) (bool, error) {
	for _, bypass := range d.Bypasses {
		if !bypass.SingleUse() || bypass.Consumed {
			continue
		}
		note := fmt.Sprintf("Bypass removed after E-Cert calculation of disbursement %d.", d.Disbursement.ID)
		if d.Disbursement.DocumentNumber != nil {
			note = fmt.Sprintf("Bypass removed after E-Cert calculation of document number %d.", *d.Disbursement.DocumentNumber)
		}
		if err := s.restrictions.DeactivateBypass(ctx, tx, bypass, note); err != nil {
			return false, fmt.Errorf("deactivate bypass %d: %w", bypass.ID, err)
		}
		log.Info(fmt.Sprintf("bypass of %s removed", bypass.RestrictionCode), zap.Int64("bypass_id", bypass.ID))
	}
	return true, nil
}
