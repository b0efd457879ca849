// Package quota enforces the per-broker staff and client caps granted by a
// subscription. Reservations are a single conditional UPDATE on the broker's
// usage row, so concurrent requests for one broker serialize on that row and
// never overshoot the cap.
package quota

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/hugh/brokerdesk/internal/apperr"
	"github.com/hugh/brokerdesk/internal/database/models"
	"github.com/hugh/brokerdesk/internal/subscription"
	"github.com/hugh/brokerdesk/internal/tenancy"
	"github.com/hugh/brokerdesk/pkg/metrics"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Resource string

const (
	Staff   Resource = "staff"
	Clients Resource = "clients"
)

func (r Resource) column() string {
	if r == Staff {
		return "current_staff"
	}
	return "current_clients"
}

type Tracker struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger
}

func NewTracker(db *gorm.DB, logger *slog.Logger) *Tracker {
	return &Tracker{db: db, now: time.Now, logger: logger}
}

// WithTx returns a tracker bound to tx, so a reservation commits or rolls
// back with the write it accompanies.
func (t *Tracker) WithTx(tx *gorm.DB) *Tracker {
	cp := *t
	cp.db = tx
	return &cp
}

// WithClock replaces the time source.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	cp := *t
	cp.now = now
	return &cp
}

// Snapshot is the quota picture of one broker. DaysUntilExpiry is nil for an
// open-ended subscription or when there is no active subscription.
type Snapshot struct {
	BrokerID        uuid.UUID `json:"broker_id"`
	HasSubscription bool      `json:"has_subscription"`
	MaxStaff        int       `json:"max_staff"`
	CurrentStaff    int       `json:"current_staff"`
	MaxClients      int       `json:"max_clients"`
	CurrentClients  int       `json:"current_clients"`
	DaysUntilExpiry *int      `json:"days_until_expiry,omitempty"`
}

func (s Snapshot) RemainingStaff() int   { return remaining(s.MaxStaff, s.CurrentStaff) }
func (s Snapshot) RemainingClients() int { return remaining(s.MaxClients, s.CurrentClients) }

func remaining(max, current int) int {
	if r := max - current; r > 0 {
		return r
	}
	return 0
}

// EnsureUsage creates the broker's usage row if it does not exist yet.
func (t *Tracker) EnsureUsage(ctx context.Context, brokerID uuid.UUID) error {
	err := t.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.UsageTracking{BrokerID: brokerID, UpdatedAt: t.now()}).Error
	if err != nil {
		return fmt.Errorf("ensuring usage row: %w", err)
	}
	return nil
}

func (t *Tracker) usage(ctx context.Context, brokerID uuid.UUID) (*models.UsageTracking, error) {
	if err := t.EnsureUsage(ctx, brokerID); err != nil {
		return nil, err
	}
	var u models.UsageTracking
	if err := t.db.WithContext(ctx).First(&u, "broker_id = ?", brokerID).Error; err != nil {
		return nil, fmt.Errorf("loading usage: %w", err)
	}
	return &u, nil
}

// broker fails with apperr.ErrNotFound unless id names a customs broker.
func (t *Tracker) broker(ctx context.Context, id uuid.UUID) error {
	var c models.Company
	err := t.db.WithContext(ctx).Select("id", "type").First(&c, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && c.Type != tenancy.KindBroker) {
		return apperr.NotFound("broker not found")
	}
	if err != nil {
		return fmt.Errorf("loading broker: %w", err)
	}
	return nil
}

// readUsage loads the usage row without creating it; a broker that has
// never reserved anything reads as zero usage.
func (t *Tracker) readUsage(ctx context.Context, brokerID uuid.UUID) (*models.UsageTracking, error) {
	var u models.UsageTracking
	err := t.db.WithContext(ctx).First(&u, "broker_id = ?", brokerID).Error
	switch {
	case err == nil:
		return &u, nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &models.UsageTracking{BrokerID: brokerID}, nil
	}
	return nil, fmt.Errorf("loading usage: %w", err)
}

// Snapshot reports limits and usage. A missing subscription yields zero
// limits with HasSubscription false rather than an error; an id that is not a
// broker yields apperr.ErrNotFound. Snapshot never writes.
func (t *Tracker) Snapshot(ctx context.Context, brokerID uuid.UUID) (*Snapshot, error) {
	if err := t.broker(ctx, brokerID); err != nil {
		return nil, err
	}
	u, err := t.readUsage(ctx, brokerID)
	if err != nil {
		return nil, err
	}

	snap := &Snapshot{
		BrokerID:       brokerID,
		CurrentStaff:   u.CurrentStaff,
		CurrentClients: u.CurrentClients,
	}

	now := t.now()
	sub, err := subscription.Active(ctx, t.db, brokerID, now)
	switch {
	case err == nil:
		snap.HasSubscription = true
		snap.MaxStaff = sub.EffectiveMaxStaff()
		snap.MaxClients = sub.EffectiveMaxClients()
		if sub.EndDate != nil {
			days := int(math.Ceil(sub.EndDate.Sub(now).Hours() / 24))
			if days < 0 {
				days = 0
			}
			snap.DaysUntilExpiry = &days
		}
	case errors.Is(err, apperr.ErrSubscriptionMissing):
	default:
		return nil, err
	}

	return snap, nil
}

func (t *Tracker) limit(ctx context.Context, brokerID uuid.UUID, r Resource) (int, error) {
	sub, err := subscription.Active(ctx, t.db, brokerID, t.now())
	if err != nil {
		return 0, err
	}
	if r == Staff {
		return sub.EffectiveMaxStaff(), nil
	}
	return sub.EffectiveMaxClients(), nil
}

func (t *Tracker) remainingFor(ctx context.Context, brokerID uuid.UUID, r Resource) (int, error) {
	if err := t.broker(ctx, brokerID); err != nil {
		return 0, err
	}
	max, err := t.limit(ctx, brokerID, r)
	if err != nil {
		return 0, err
	}
	u, err := t.readUsage(ctx, brokerID)
	if err != nil {
		return 0, err
	}
	if r == Staff {
		return remaining(max, u.CurrentStaff), nil
	}
	return remaining(max, u.CurrentClients), nil
}

// RemainingStaffQuota returns how many more staff the broker may add. It
// fails with apperr.ErrSubscriptionMissing when no subscription is active.
func (t *Tracker) RemainingStaffQuota(ctx context.Context, brokerID uuid.UUID) (int, error) {
	return t.remainingFor(ctx, brokerID, Staff)
}

func (t *Tracker) RemainingClientQuota(ctx context.Context, brokerID uuid.UUID) (int, error) {
	return t.remainingFor(ctx, brokerID, Clients)
}

// CanAddStaff is advisory; only OnStaffAdded reserves a slot.
func (t *Tracker) CanAddStaff(ctx context.Context, brokerID uuid.UUID) (bool, error) {
	n, err := t.RemainingStaffQuota(ctx, brokerID)
	return n > 0, err
}

func (t *Tracker) CanAddClient(ctx context.Context, brokerID uuid.UUID) (bool, error) {
	n, err := t.RemainingClientQuota(ctx, brokerID)
	return n > 0, err
}

// OnStaffAdded reserves one staff slot or fails with a *LimitExceededError.
func (t *Tracker) OnStaffAdded(ctx context.Context, brokerID uuid.UUID) error {
	return t.reserve(ctx, brokerID, Staff)
}

// OnClientAdded reserves one client slot or fails with a *LimitExceededError.
func (t *Tracker) OnClientAdded(ctx context.Context, brokerID uuid.UUID) error {
	return t.reserve(ctx, brokerID, Clients)
}

func (t *Tracker) OnStaffRemoved(ctx context.Context, brokerID uuid.UUID) error {
	return t.release(ctx, brokerID, Staff)
}

func (t *Tracker) OnClientRemoved(ctx context.Context, brokerID uuid.UUID) error {
	return t.release(ctx, brokerID, Clients)
}

func (t *Tracker) reserve(ctx context.Context, brokerID uuid.UUID, r Resource) error {
	max, err := t.limit(ctx, brokerID, r)
	if err != nil {
		if errors.Is(err, apperr.ErrSubscriptionMissing) {
			metrics.QuotaReservationsTotal.WithLabelValues(string(r), "no_subscription").Inc()
		}
		return err
	}
	if err := t.EnsureUsage(ctx, brokerID); err != nil {
		return err
	}

	col := r.column()
	res := t.db.WithContext(ctx).Model(&models.UsageTracking{}).
		Where("broker_id = ? AND "+col+" < ?", brokerID, max).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col + " + 1"),
			"updated_at": t.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("reserving %s slot: %w", r, res.Error)
	}

	if res.RowsAffected == 0 {
		metrics.QuotaReservationsTotal.WithLabelValues(string(r), "limit_exceeded").Inc()
		u, err := t.usage(ctx, brokerID)
		if err != nil {
			return err
		}
		current := u.CurrentStaff
		if r == Clients {
			current = u.CurrentClients
		}
		t.logger.Info("quota limit reached",
			"broker_id", brokerID,
			"resource", r,
			"max", max,
			"current", current,
		)
		return &LimitExceededError{Resource: r, Max: max, Current: current, Remaining: remaining(max, current)}
	}

	metrics.QuotaReservationsTotal.WithLabelValues(string(r), "ok").Inc()
	return nil
}

func (t *Tracker) release(ctx context.Context, brokerID uuid.UUID, r Resource) error {
	col := r.column()
	res := t.db.WithContext(ctx).Model(&models.UsageTracking{}).
		Where("broker_id = ? AND "+col+" > 0", brokerID).
		Updates(map[string]interface{}{
			col:          gorm.Expr(col + " - 1"),
			"updated_at": t.now(),
		})
	if res.Error != nil {
		return fmt.Errorf("releasing %s slot: %w", r, res.Error)
	}
	if res.RowsAffected == 0 {
		t.logger.Warn("quota release with counter already at zero", "broker_id", brokerID, "resource", r)
		return nil
	}
	metrics.QuotaReleasesTotal.WithLabelValues(string(r)).Inc()
	return nil
}
