// Package service owns disbursement rows after the application service has
// created them: gateway payouts, failure marking and reads.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"beasiswaku_backend/internals/features/scholarship/disbursements/model"
	"beasiswaku_backend/internals/helpers/apperror"
)

type Service struct {
	DB      *gorm.DB
	Gateway PayoutGateway
	Log     logrus.FieldLogger
	Now     func() time.Time
}

func New(db *gorm.DB, gateway PayoutGateway, log logrus.FieldLogger) *Service {
	return &Service{DB: db, Gateway: gateway, Log: log, Now: time.Now}
}

func (s *Service) now() time.Time { return s.Now().UTC() }

// RequestPayout sends a pending gateway disbursement to the provider. On
// failure the row is marked failed and returned with the error, so the
// officer can pay it manually and release with a reference number.
func (s *Service) RequestPayout(ctx context.Context, id uuid.UUID) (*model.DisbursementModel, error) {
	d, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.DisbursementMethod != model.MethodGateway {
		return d, apperror.Field("disbursement_method", "is not gateway")
	}
	if d.DisbursementStatus != model.StatusPending {
		return d, apperror.New(apperror.KindConflict, "disbursement is no longer pending")
	}
	if d.DisbursementGatewayReference != nil {
		return d, nil
	}

	log := s.Log.WithFields(logrus.Fields{
		"disbursement_id": id.String(),
		"application_id":  d.DisbursementApplicationID.String(),
		"amount":          d.DisbursementAmount,
	})

	gateway := s.Gateway
	if gateway == nil {
		gateway = GatewayFunc(func(context.Context, model.DisbursementModel) (string, error) {
			return "", ErrGatewayDisabled
		})
	}
	ref, payErr := gateway.Payout(ctx, *d)
	if payErr != nil {
		log.WithError(payErr).Warn("gateway payout failed")
		failed, err := s.MarkFailed(ctx, id, payErr.Error())
		if err != nil {
			log.WithError(err).Error("could not mark disbursement failed")
			return d, payErr
		}
		return failed, payErr
	}

	now := s.now()
	if err := s.DB.WithContext(ctx).Model(&model.DisbursementModel{}).
		Where("disbursement_id = ? AND disbursement_status = ?", id, model.StatusPending).
		Updates(map[string]any{
			"disbursement_gateway_reference": ref,
			"disbursement_updated_at":        now,
		}).Error; err != nil {
		return d, err
	}
	log.WithField("gateway_reference", ref).Info("gateway payout requested")
	d.DisbursementGatewayReference = &ref
	d.DisbursementUpdatedAt = now
	return d, nil
}

// MarkFailed flips a pending disbursement to failed. Completed rows are
// left alone.
func (s *Service) MarkFailed(ctx context.Context, id uuid.UUID, reason string) (*model.DisbursementModel, error) {
	var d model.DisbursementModel
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("disbursement_id = ?", id).
			Take(&d).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.NotFound("disbursement")
		}
		if err != nil {
			return err
		}
		if d.DisbursementStatus != model.StatusPending {
			return apperror.New(apperror.KindConflict, "only pending disbursements can fail")
		}
		now := s.now()
		d.DisbursementStatus = model.StatusFailed
		d.DisbursementFailureReason = &reason
		d.DisbursementUpdatedAt = now
		return tx.Model(&model.DisbursementModel{}).
			Where("disbursement_id = ?", id).
			Updates(map[string]any{
				"disbursement_status":         model.StatusFailed,
				"disbursement_failure_reason": reason,
				"disbursement_updated_at":     now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*model.DisbursementModel, error) {
	var d model.DisbursementModel
	err := s.DB.WithContext(ctx).Where("disbursement_id = ?", id).Take(&d).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperror.NotFound("disbursement")
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Service) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]model.DisbursementModel, error) {
	var rows []model.DisbursementModel
	err := s.DB.WithContext(ctx).
		Where("disbursement_application_id = ?", applicationID).
		Order("disbursement_created_at ASC").
		Find(&rows).Error
	return rows, err
}

type ListFilter struct {
	BudgetID      *uuid.UUID
	Status        model.Status
	Offset, Limit int
}

func (s *Service) List(ctx context.Context, f ListFilter) ([]model.DisbursementModel, int64, error) {
	q := s.DB.WithContext(ctx).Model(&model.DisbursementModel{})
	if f.BudgetID != nil {
		q = q.Where("disbursement_budget_id = ?", *f.BudgetID)
	}
	if f.Status != "" {
		q = q.Where("disbursement_status = ?", f.Status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []model.DisbursementModel
	err := q.Order("disbursement_created_at DESC").Offset(f.Offset).Limit(f.Limit).Find(&rows).Error
	return rows, total, err
}
