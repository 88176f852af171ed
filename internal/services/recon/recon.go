package recon

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/seetara/ReconBox/internal/broker/messages"
	"github.com/seetara/ReconBox/internal/integrations/courier"
	"github.com/seetara/ReconBox/internal/models"
	"github.com/seetara/ReconBox/internal/status"
)

type OrderStore interface {
	FindEligibleOrders(ctx context.Context, providers []string) ([]*models.Order, error)
	UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) error
	AppendTimelineEntry(ctx context.Context, orderID, st, note string) error
}

type CommentStore interface {
	FindExistingComment(ctx context.Context, orderID, provider, externalID, text string) (*models.LogisticsComment, error)
	InsertComment(ctx context.Context, c *models.LogisticsComment) error
}

type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// Reconciler runs the per-order reconciliation procedures: pull the courier's
// verbatim status and comment feed, map, guard, persist.
type Reconciler struct {
	orders   OrderStore
	comments CommentStore
	courier  courier.Client

	producer    Producer
	statusTopic string

	now func() time.Time
}

func New(orders OrderStore, comments CommentStore, c courier.Client) *Reconciler {
	return &Reconciler{
		orders:   orders,
		comments: comments,
		courier:  c,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// WithProducer enables order.status.changed publication after guarded updates.
func (r *Reconciler) WithProducer(p Producer, topic string) *Reconciler {
	r.producer = p
	r.statusTopic = topic
	return r
}

func (r *Reconciler) withNow(now func() time.Time) *Reconciler {
	r.now = now
	return r
}

// StatusOutcome reports what one status reconciliation did to the order.
type StatusOutcome struct {
	Changed   bool
	NewStatus models.OrderStatus
}

// ReconcileOrderStatus pulls the courier's current status for the order and
// applies it. The verbatim mirror fields update on any change; the internal
// status only moves when the mapper recognizes the text and the progression
// guard approves the transition. rto_initiated_at/rto_reason are write-once,
// captured the first time an rto_initiated mapping is seen.
//
// The rto_verification_pending holding state is deliberately inventory-neutral:
// nothing stock-affecting happens here, the package is not confirmed back yet.
func (r *Reconciler) ReconcileOrderStatus(ctx context.Context, o *models.Order) (StatusOutcome, error) {
	if o.ExternalOrderID == nil || *o.ExternalOrderID == "" {
		return StatusOutcome{}, errors.New("order has no external order id")
	}

	res, err := r.courier.PullStatus(ctx, *o.ExternalOrderID)
	if err != nil {
		return StatusOutcome{}, errors.Wrap(err, "pull status")
	}
	if res == nil || res.Status == "" {
		// Courier has nothing for us; successful no-op.
		return StatusOutcome{}, nil
	}
	if strings.EqualFold(res.Status, o.LogisticsStatus) {
		return StatusOutcome{}, nil
	}

	raw := res.Status
	upd := models.OrderUpdate{
		LogisticsStatus:  &raw,
		CourierRawStatus: &raw,
	}

	mapped, recognized := status.MapStatus(raw)

	if recognized && mapped == models.OrderStatusRTOInitiated && o.RTOInitiatedAt == nil {
		now := r.now()
		upd.RTOInitiatedAt = &now
		upd.RTOReason = &raw
	}

	out := StatusOutcome{}
	if recognized && !o.Status.IsTerminal() && status.CanTransition(o.Status, mapped) {
		upd.Status = &mapped
		out = StatusOutcome{Changed: true, NewStatus: mapped}
	}

	if err := r.orders.UpdateOrder(ctx, o.ID, upd); err != nil {
		return StatusOutcome{}, errors.Wrap(err, "update order")
	}

	r.appendTimelineBestEffort(ctx, o, raw, upd.Status)

	if out.Changed {
		r.publishStatusChanged(ctx, o, raw, mapped)
	}

	// Keep the in-memory copy current for the rest of the pass.
	o.LogisticsStatus = raw
	o.CourierRawStatus = raw
	if upd.RTOInitiatedAt != nil {
		o.RTOInitiatedAt = upd.RTOInitiatedAt
		o.RTOReason = upd.RTOReason
	}
	if upd.Status != nil {
		o.Status = *upd.Status
	}

	return out, nil
}

// SyncOrderComments pulls the courier conversation feed and inserts anything
// not stored yet. Dedup is by external comment id or exact text, so re-polling
// the same feed is idempotent. A single bad comment never aborts the rest.
func (r *Reconciler) SyncOrderComments(ctx context.Context, o *models.Order) (int, error) {
	if o.ExternalOrderID == nil || *o.ExternalOrderID == "" {
		return 0, errors.New("order has no external order id")
	}

	list, err := r.courier.GetOrderComments(ctx, *o.ExternalOrderID)
	if err != nil {
		return 0, errors.Wrap(err, "get order comments")
	}

	added := 0
	for _, cm := range list {
		if cm.Text == "" {
			continue
		}

		existing, err := r.comments.FindExistingComment(ctx, o.ID, o.LogisticsProvider, cm.ExternalID, cm.Text)
		if err != nil {
			slog.Error("lookup comment", "order_id", o.ID, "error", err.Error())
			continue
		}
		if existing != nil {
			continue
		}

		createdAt := r.now()
		if cm.CreatedAt != nil {
			createdAt = *cm.CreatedAt
		}
		err = r.comments.InsertComment(ctx, &models.LogisticsComment{
			OrderID:    o.ID,
			Comment:    cm.Text,
			Sender:     status.ClassifySender(cm.Author),
			SenderName: cm.Author,
			ExternalID: cm.ExternalID,
			Provider:   o.LogisticsProvider,
			IsSynced:   true,
			CreatedAt:  createdAt,
		})
		if err != nil {
			slog.Error("insert comment", "order_id", o.ID, "error", err.Error())
			continue
		}
		added++
	}
	return added, nil
}

// appendTimelineBestEffort writes the audit entry for a seen courier status.
// It never fails the caller; a lost timeline row is log-only.
func (r *Reconciler) appendTimelineBestEffort(ctx context.Context, o *models.Order, raw string, newStatus *models.OrderStatus) {
	st := string(o.Status)
	if newStatus != nil {
		st = string(*newStatus)
	}
	if err := r.orders.AppendTimelineEntry(ctx, o.ID, st, "courier status: "+raw); err != nil {
		slog.Warn("append timeline", "order_id", o.ID, "error", err.Error())
	}
}

func (r *Reconciler) publishStatusChanged(ctx context.Context, o *models.Order, raw string, newStatus models.OrderStatus) {
	if r.producer == nil || r.statusTopic == "" {
		return
	}
	ext := ""
	if o.ExternalOrderID != nil {
		ext = *o.ExternalOrderID
	}
	b, err := json.Marshal(messages.OrderStatusChanged{
		OrderID:         o.ID,
		ExternalOrderID: ext,
		Provider:        o.LogisticsProvider,
		OldStatus:       string(o.Status),
		NewStatus:       string(newStatus),
		RawStatus:       raw,
		ChangedAt:       r.now(),
	})
	if err != nil {
		slog.Warn("marshal status changed", "order_id", o.ID, "error", err.Error())
		return
	}

	// Best-effort with a short retry; downstream consumers tolerate gaps, the
	// database is the source of truth.
	var pubErr error
	for i := 0; i < 3; i++ {
		if pubErr = r.producer.Publish(ctx, r.statusTopic, []byte(o.ID), b); pubErr == nil {
			return
		}
		time.Sleep(time.Duration(150*(i+1)) * time.Millisecond)
	}
	slog.Warn("publish status changed", "order_id", o.ID, "error", pubErr.Error())
}
