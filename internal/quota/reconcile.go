package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/retry"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/pkg/metrics"
	"gorm.io/gorm"
)

// ErrReconcileInProgress means another run holds the broker's lock.
var ErrReconcileInProgress = errors.New("reconciliation already running for broker")

type ReconcilerConfig struct {
	LockTTL     time.Duration
	MaxAttempts int
	BaseDelay   time.Duration
}

// Reconciler rewrites usage counters from the authoritative counts of active
// staff and clients. Runs are mutually exclusive per broker.
type Reconciler struct {
	db     *gorm.DB
	locker Locker
	cfg    ReconcilerConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewReconciler(db *gorm.DB, locker Locker, cfg ReconcilerConfig, logger *slog.Logger) *Reconciler {
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = time.Minute
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 200 * time.Millisecond
	}
	return &Reconciler{db: db, locker: locker, cfg: cfg, now: time.Now, logger: logger}
}

// Result describes one broker's reconciliation.
type Result struct {
	BrokerID      uuid.UUID `json:"broker_id"`
	StaffBefore   int       `json:"staff_before"`
	StaffAfter    int       `json:"staff_after"`
	ClientsBefore int       `json:"clients_before"`
	ClientsAfter  int       `json:"clients_after"`
	Drifted       bool      `json:"drifted"`
	ReconciledAt  time.Time `json:"reconciled_at"`
}

// Reconcile recomputes one broker's counters. It returns
// ErrReconcileInProgress if the broker is already being reconciled.
func (r *Reconciler) Reconcile(ctx context.Context, brokerID uuid.UUID) (*Result, error) {
	release, ok, err := r.locker.TryLock(ctx, "quota:reconcile:"+brokerID.String(), r.cfg.LockTTL)
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	if !ok {
		metrics.ReconcileRunsTotal.WithLabelValues("skipped").Inc()
		return nil, ErrReconcileInProgress
	}
	defer release()

	var result *Result
	err = retry.Do(ctx, r.cfg.MaxAttempts, r.cfg.BaseDelay, func() error {
		res, err := r.reconcileOnce(ctx, brokerID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return retry.Permanent(err)
			}
			r.logger.Warn("reconcile attempt failed", "broker_id", brokerID, "error", err)
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		metrics.ReconcileRunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("reconciling broker %s: %w", brokerID, err)
	}

	metrics.ReconcileRunsTotal.WithLabelValues("ok").Inc()
	if result.Drifted {
		r.logger.Warn("usage drift corrected",
			"broker_id", brokerID,
			"staff_before", result.StaffBefore,
			"staff_after", result.StaffAfter,
			"clients_before", result.ClientsBefore,
			"clients_after", result.ClientsAfter,
		)
	}
	return result, nil
}

func (r *Reconciler) reconcileOnce(ctx context.Context, brokerID uuid.UUID) (*Result, error) {
	var result Result
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var broker models.Company
		if err := tx.Select("id", "type").First(&broker, "id = ? AND type = ?", brokerID, tenancy.KindBroker).Error; err != nil {
			return err
		}

		var staff, clients int64
		if err := tx.Model(&models.User{}).
			Where("company_id = ? AND is_active = ? AND role IN ?", brokerID, true,
				[]tenancy.Role{tenancy.RoleBrokerAdmin, tenancy.RoleBrokerUser}).
			Count(&staff).Error; err != nil {
			return fmt.Errorf("counting staff: %w", err)
		}
		if err := tx.Model(&models.Company{}).
			Where("parent_broker_id = ? AND type = ? AND is_active = ?", brokerID, tenancy.KindClient, true).
			Count(&clients).Error; err != nil {
			return fmt.Errorf("counting clients: %w", err)
		}

		tracker := &Tracker{db: tx, now: r.now, logger: r.logger}
		usage, err := tracker.usage(ctx, brokerID)
		if err != nil {
			return err
		}

		now := r.now()
		result = Result{
			BrokerID:      brokerID,
			StaffBefore:   usage.CurrentStaff,
			StaffAfter:    int(staff),
			ClientsBefore: usage.CurrentClients,
			ClientsAfter:  int(clients),
			ReconciledAt:  now,
		}
		if result.StaffBefore != result.StaffAfter {
			result.Drifted = true
			metrics.ReconcileCorrectionsTotal.WithLabelValues(string(Staff)).Inc()
		}
		if result.ClientsBefore != result.ClientsAfter {
			result.Drifted = true
			metrics.ReconcileCorrectionsTotal.WithLabelValues(string(Clients)).Inc()
		}

		return tx.Model(&models.UsageTracking{}).
			Where("broker_id = ?", brokerID).
			Updates(map[string]interface{}{
				"current_staff":      result.StaffAfter,
				"current_clients":    result.ClientsAfter,
				"last_reconciled_at": now,
				"updated_at":         now,
			}).Error
	})
	if err != nil {
		return nil, err
	}
	return &result, nil
}

// Report summarizes a ReconcileAll pass.
type Report struct {
	Checked int       `json:"checked"`
	Skipped int       `json:"skipped"`
	Failed  int       `json:"failed"`
	Drifted []*Result `json:"drifted"`
}

// ReconcileAll reconciles every active broker. A failure on one broker is
// logged and counted; the pass continues.
func (r *Reconciler) ReconcileAll(ctx context.Context) (*Report, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).Model(&models.Company{}).
		Where("type = ? AND is_active = ?", tenancy.KindBroker, true).
		Order("created_at ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, fmt.Errorf("listing brokers: %w", err)
	}

	report := &Report{}
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res, err := r.Reconcile(ctx, id)
		switch {
		case errors.Is(err, ErrReconcileInProgress):
			report.Skipped++
		case err != nil:
			report.Failed++
			r.logger.Error("reconcile failed", "broker_id", id, "error", err)
		default:
			report.Checked++
			if res.Drifted {
				report.Drifted = append(report.Drifted, res)
			}
		}
	}

	r.logger.Info("reconciliation pass finished",
		"checked", report.Checked,
		"skipped", report.Skipped,
		"failed", report.Failed,
		"drifted", len(report.Drifted),
	)
	return report, nil
}
