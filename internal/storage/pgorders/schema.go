package pgorders

import (
	"context"

	"github.com/pkg/errors"
)

func (s *Storage) initSchema(ctx context.Context) error {
	stmts := []string{
		`
CREATE TABLE IF NOT EXISTS orders (
  id TEXT PRIMARY KEY,
  external_order_id TEXT NULL,
  status TEXT NOT NULL DEFAULT 'pending',
  logistics_status TEXT NOT NULL DEFAULT '',
  courier_raw_status TEXT NOT NULL DEFAULT '',
  rto_initiated_at TIMESTAMPTZ NULL,
  rto_reason TEXT NULL,
  logistics_provider TEXT NOT NULL DEFAULT '',
  is_synced BOOLEAN NOT NULL DEFAULT FALSE,
  created_at TIMESTAMPTZ NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_orders_provider_external
  ON orders(lower(logistics_provider), external_order_id)
  WHERE external_order_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_orders_eligibility
  ON orders(is_synced, lower(status), created_at DESC)`,
		`
CREATE TABLE IF NOT EXISTS logistics_comments (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  comment TEXT NOT NULL,
  sender TEXT NOT NULL,
  sender_name TEXT NOT NULL DEFAULT '',
  external_id TEXT NOT NULL DEFAULT '',
  provider TEXT NOT NULL DEFAULT '',
  is_synced BOOLEAN NOT NULL DEFAULT TRUE,
  created_at TIMESTAMPTZ NOT NULL
)`,
		// Dedup keys for idempotent re-polls: by courier comment id, and by
		// exact text for feeds that send no id.
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_comments_external
  ON logistics_comments(order_id, provider, external_id)
  WHERE external_id <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uq_comments_text
  ON logistics_comments(order_id, provider, comment)`,
		`
CREATE TABLE IF NOT EXISTS order_timeline (
  id BIGSERIAL PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
  status TEXT NOT NULL,
  note TEXT NOT NULL DEFAULT '',
  actor TEXT NOT NULL DEFAULT 'system',
  created_at TIMESTAMPTZ NOT NULL
)`,
		`CREATE INDEX IF NOT EXISTS idx_order_timeline_order_id ON order_timeline(order_id, created_at DESC)`,
	}

	for _, q := range stmts {
		if _, err := s.db.Exec(ctx, q); err != nil {
			return errors.Wrap(err, "init schema")
		}
	}
	return nil
}
