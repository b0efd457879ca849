package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/hugh/brokerdesk/internal/quota"
	"gorm.io/gorm"
)

type Handler struct {
	reconciler *quota.Reconciler
	logger     *slog.Logger
}

func NewHandler(reconciler *quota.Reconciler, logger *slog.Logger) *Handler {
	return &Handler{
		reconciler: reconciler,
		logger:     logger,
	}
}

func (h *Handler) RegisterHandlers(mux *asynq.ServeMux) {
	mux.HandleFunc(TypeReconcileBroker, h.HandleReconcileBroker)
	mux.HandleFunc(TypeReconcileAll, h.HandleReconcileAll)
}

func (h *Handler) HandleReconcileBroker(ctx context.Context, t *asynq.Task) error {
	var payload ReconcileBrokerPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.BrokerID == uuid.Nil {
		return fmt.Errorf("missing broker_id: %w", asynq.SkipRetry)
	}

	h.logger.Info("reconciling broker usage", "broker_id", payload.BrokerID)

	result, err := h.reconciler.Reconcile(ctx, payload.BrokerID)
	switch {
	case errors.Is(err, quota.ErrReconcileInProgress):
		// The run holding the lock produces the same counters.
		h.logger.Info("reconcile skipped, already running", "broker_id", payload.BrokerID)
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("broker %s not found: %w", payload.BrokerID, asynq.SkipRetry)
	case err != nil:
		return err
	}

	h.logger.Info("broker usage reconciled",
		"broker_id", result.BrokerID,
		"drifted", result.Drifted,
		"staff", result.StaffAfter,
		"clients", result.ClientsAfter,
	)
	if w := t.ResultWriter(); w != nil {
		if data, err := json.Marshal(result); err == nil {
			_, _ = w.Write(data)
		}
	}
	return nil
}

func (h *Handler) HandleReconcileAll(ctx context.Context, t *asynq.Task) error {
	report, err := h.reconciler.ReconcileAll(ctx)
	if err != nil {
		return err
	}
	if report.Failed > 0 {
		h.logger.Warn("reconciliation pass had failures", "failed", report.Failed)
	}
	if w := t.ResultWriter(); w != nil {
		if data, err := json.Marshal(report); err == nil {
			_, _ = w.Write(data)
		}
	}
	return nil
}
