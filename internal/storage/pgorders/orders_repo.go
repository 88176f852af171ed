package pgorders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/seetara/ReconBox/internal/models"
)

const orderColumns = `
  id, external_order_id, status,
  logistics_status, courier_raw_status,
  rto_initiated_at, rto_reason,
  logistics_provider, is_synced,
  created_at, updated_at`

// FindEligibleOrders selects the polling working set: orders affiliated with
// one of the given provider spellings, already handed to the courier, with an
// external id, and not in a terminal state. Newest first.
func (s *Storage) FindEligibleOrders(ctx context.Context, providers []string) ([]*models.Order, error) {
	lowered := make([]string, 0, len(providers))
	for _, p := range providers {
		lowered = append(lowered, strings.ToLower(strings.TrimSpace(p)))
	}
	terminal := make([]string, 0, len(models.TerminalStatuses))
	for _, t := range models.TerminalStatuses {
		terminal = append(terminal, string(t))
	}

	rows, err := s.db.Query(ctx, `
SELECT`+orderColumns+`
FROM orders
WHERE lower(logistics_provider) = ANY($1)
  AND is_synced = TRUE
  AND external_order_id IS NOT NULL
  AND external_order_id <> ''
  AND lower(status) <> ALL($2)
ORDER BY created_at DESC
`, lowered, terminal)
	if err != nil {
		return nil, errors.Wrap(err, "select eligible orders")
	}
	defer rows.Close()

	var out []*models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func (s *Storage) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	rows, err := s.db.Query(ctx, `SELECT`+orderColumns+` FROM orders WHERE id = $1`, id)
	if err != nil {
		return nil, errors.Wrap(err, "select order")
	}
	defer rows.Close()

	if !rows.Next() {
		if rows.Err() != nil {
			return nil, errors.Wrap(rows.Err(), "rows")
		}
		return nil, errors.New("order not found")
	}
	return scanOrder(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var st string
	if err := row.Scan(
		&o.ID, &o.ExternalOrderID, &st,
		&o.LogisticsStatus, &o.CourierRawStatus,
		&o.RTOInitiatedAt, &o.RTOReason,
		&o.LogisticsProvider, &o.IsSynced,
		&o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		return nil, errors.Wrap(err, "scan order")
	}
	o.Status = models.OrderStatus(st)
	return &o, nil
}

// UpdateOrder applies a partial update. rto_initiated_at and rto_reason are
// written only when rto_initiated_at is still NULL, which keeps the first-RTO
// capture write-once even if two passes race on the same order.
func (s *Storage) UpdateOrder(ctx context.Context, id string, upd models.OrderUpdate) error {
	sets := []string{"updated_at = now()"}
	args := []any{id}
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if upd.Status != nil {
		sets = append(sets, "status = "+arg(string(*upd.Status)))
	}
	if upd.LogisticsStatus != nil {
		sets = append(sets, "logistics_status = "+arg(*upd.LogisticsStatus))
	}
	if upd.CourierRawStatus != nil {
		sets = append(sets, "courier_raw_status = "+arg(*upd.CourierRawStatus))
	}
	if upd.RTOInitiatedAt != nil {
		reason := ""
		if upd.RTOReason != nil {
			reason = *upd.RTOReason
		}
		sets = append(sets,
			"rto_reason = CASE WHEN rto_initiated_at IS NULL THEN "+arg(reason)+" ELSE rto_reason END",
			"rto_initiated_at = COALESCE(rto_initiated_at, "+arg(upd.RTOInitiatedAt.UTC())+")",
		)
	}

	q := "UPDATE orders SET " + strings.Join(sets, ", ") + " WHERE id = $1"
	ct, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return errors.Wrap(err, "update order")
	}
	if ct.RowsAffected() == 0 {
		return errors.New("order not found")
	}
	return nil
}

// UpsertSyncedOrder registers an order coming off the orders.synced feed.
// Re-delivered messages only refresh the sync flag; an existing order's status
// is never overwritten from the feed.
func (s *Storage) UpsertSyncedOrder(ctx context.Context, id, externalOrderID, provider string, st models.OrderStatus, syncedAt time.Time) error {
	if st == "" {
		st = models.OrderStatusHandoverToCourier
	}
	if syncedAt.IsZero() {
		syncedAt = time.Now().UTC()
	}
	_, err := s.db.Exec(ctx, `
INSERT INTO orders (
  id, external_order_id, status, logistics_provider, is_synced, created_at, updated_at
)
VALUES ($1,$2,$3,$4,TRUE,$5,$5)
ON CONFLICT (id)
DO UPDATE SET
  external_order_id = EXCLUDED.external_order_id,
  is_synced = TRUE,
  updated_at = now()
`, id, externalOrderID, string(st), provider, syncedAt.UTC())
	return errors.Wrap(err, "upsert synced order")
}

func (s *Storage) AppendTimelineEntry(ctx context.Context, orderID, st, note string) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO order_timeline (order_id, status, note, actor, created_at)
VALUES ($1,$2,$3,'system', now())
`, orderID, st, note)
	return errors.Wrap(err, "insert timeline entry")
}

func (s *Storage) ListTimeline(ctx context.Context, orderID string, limit int) ([]*models.TimelineEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT id, order_id, status, note, actor, created_at
FROM order_timeline
WHERE order_id = $1
ORDER BY created_at DESC
LIMIT $2
`, orderID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select timeline")
	}
	defer rows.Close()

	var out []*models.TimelineEntry
	for rows.Next() {
		var e models.TimelineEntry
		if err := rows.Scan(&e.ID, &e.OrderID, &e.Status, &e.Note, &e.Actor, &e.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan timeline entry")
		}
		out = append(out, &e)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
