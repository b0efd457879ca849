package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hibiken/asynq"
	"github.com/hugh/brokerdesk/internal/access"
	"github.com/hugh/brokerdesk/internal/api/dto"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/quota"
	"github.com/hugh/brokerdesk/internal/subscription"
	"github.com/hugh/brokerdesk/internal/tasks"
)

type SubscriptionHandler struct {
	subscriptions *subscription.Service
	logger        *slog.Logger
}

func NewSubscriptionHandler(subscriptions *subscription.Service, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{subscriptions: subscriptions, logger: logger}
}

// ListPlans handles GET /api/v1/plans
func (h *SubscriptionHandler) ListPlans(w http.ResponseWriter, r *http.Request) {
	plans, err := h.subscriptions.ListPlans(r.Context(), queryBool(r, "include_inactive"))
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if plans == nil {
		plans = []models.SubscriptionPlan{}
	}
	writeJSON(w, http.StatusOK, plans)
}

// CreatePlan handles POST /api/v1/plans
func (h *SubscriptionHandler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req dto.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := h.subscriptions.CreatePlan(r.Context(), actor(r), req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, plan)
}

// UpdatePlan handles PUT /api/v1/plans/{id}
func (h *SubscriptionHandler) UpdatePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.PlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	plan, err := h.subscriptions.UpdatePlan(r.Context(), actor(r), id, req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// Subscribe handles POST /api/v1/brokers/{id}/subscriptions
func (h *SubscriptionHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	var req dto.SubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub, err := h.subscriptions.Subscribe(r.Context(), actor(r), brokerID, req.Input())
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

// Current handles GET /api/v1/brokers/{id}/subscription
func (h *SubscriptionHandler) Current(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.subscriptions.Current(r.Context(), actor(r), brokerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// History handles GET /api/v1/brokers/{id}/subscriptions
func (h *SubscriptionHandler) History(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	subs, err := h.subscriptions.History(r.Context(), actor(r), brokerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if subs == nil {
		subs = []models.BrokerSubscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// Cancel handles POST /api/v1/subscriptions/{id}/cancel
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	sub, err := h.subscriptions.Cancel(r.Context(), actor(r), id)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

// Enqueuer is satisfied by *asynq.Client.
type Enqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TaskInspector is satisfied by *asynq.Inspector.
type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

type QuotaHandler struct {
	tracker   *quota.Tracker
	queue     Enqueuer
	inspector TaskInspector
	logger    *slog.Logger
}

// NewQuotaHandler wires quota reads. queue and inspector may be nil when
// no worker is deployed; reconcile endpoints then answer 503.
func NewQuotaHandler(tracker *quota.Tracker, queue Enqueuer, inspector TaskInspector, logger *slog.Logger) *QuotaHandler {
	return &QuotaHandler{tracker: tracker, queue: queue, inspector: inspector, logger: logger}
}

// Get handles GET /api/v1/brokers/{id}/quota
func (h *QuotaHandler) Get(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := access.Guard(actor(r), access.QuotaView, access.QuotaView, access.Target{BrokerID: brokerID}, "broker"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	snap, err := h.tracker.Snapshot(r.Context(), brokerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewQuotaResponse(snap))
}

// Reconcile handles POST /api/v1/brokers/{id}/quota/reconcile
func (h *QuotaHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := access.Guard(actor(r), access.QuotaView, access.SubscriptionManage, access.Target{BrokerID: brokerID}, "broker"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if h.queue == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Task queue unavailable", Code: "queue_unavailable"})
		return
	}

	task, err := tasks.NewReconcileBrokerTask(brokerID)
	if err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	info, err := h.queue.Enqueue(task)
	if err != nil {
		if errors.Is(err, asynq.ErrDuplicateTask) {
			writeJSON(w, http.StatusConflict, dto.ErrorResponse{Error: "Reconciliation already queued", Code: "conflict"})
			return
		}
		h.logger.Error("failed to enqueue reconcile", "broker_id", brokerID, "error", err)
		writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Error: "Failed to queue reconciliation", Code: "internal"})
		return
	}

	writeJSON(w, http.StatusAccepted, dto.ReconcileResponse{TaskID: info.ID, Queue: info.Queue})
}

// ReconcileStatus handles GET /api/v1/brokers/{id}/quota/reconcile/{taskID}
func (h *QuotaHandler) ReconcileStatus(w http.ResponseWriter, r *http.Request) {
	brokerID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := access.Guard(actor(r), access.QuotaView, access.SubscriptionManage, access.Target{BrokerID: brokerID}, "broker"); err != nil {
		writeError(w, h.logger, r, err)
		return
	}
	if h.inspector == nil {
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Error: "Task queue unavailable", Code: "queue_unavailable"})
		return
	}

	info, err := h.inspector.GetTaskInfo(tasks.QueueMaintenance, chi.URLParam(r, "taskID"))
	if err != nil {
		if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
			writeError(w, h.logger, r, apperr.NotFound("task not found"))
			return
		}
		writeError(w, h.logger, r, err)
		return
	}
	var payload tasks.ReconcileBrokerPayload
	if info.Type != tasks.TypeReconcileBroker || json.Unmarshal(info.Payload, &payload) != nil || payload.BrokerID != brokerID {
		writeError(w, h.logger, r, apperr.NotFound("task not found"))
		return
	}

	writeJSON(w, http.StatusOK, dto.TaskStatusResponse{
		TaskID:  info.ID,
		State:   info.State.String(),
		Retried: info.Retried,
		LastErr: info.LastErr,
		Result:  info.Result,
	})
}
