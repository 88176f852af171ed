package pgorders

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
	"github.com/seetara/ReconBox/internal/models"
)

const commentColumns = `
  id, order_id, comment, sender, sender_name,
  external_id, provider, is_synced, created_at`

// FindExistingComment looks a comment up by either duplicate key: courier
// comment id first, exact text second.
func (s *Storage) FindExistingComment(ctx context.Context, orderID, provider, externalID, text string) (*models.LogisticsComment, error) {
	row := s.db.QueryRow(ctx, `
SELECT`+commentColumns+`
FROM logistics_comments
WHERE order_id = $1
  AND provider = $2
  AND (($3 <> '' AND external_id = $3) OR comment = $4)
LIMIT 1
`, orderID, provider, externalID, text)

	c, err := scanComment(row)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Storage) InsertComment(ctx context.Context, c *models.LogisticsComment) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	// ON CONFLICT DO NOTHING backs the dual unique dedup indexes, so a racing
	// duplicate insert is silently absorbed.
	_, err := s.db.Exec(ctx, `
INSERT INTO logistics_comments (
  order_id, comment, sender, sender_name, external_id, provider, is_synced, created_at
)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
ON CONFLICT DO NOTHING
`, c.OrderID, c.Comment, string(c.Sender), c.SenderName, c.ExternalID, c.Provider, c.IsSynced, c.CreatedAt.UTC())
	return errors.Wrap(err, "insert comment")
}

func (s *Storage) ListComments(ctx context.Context, orderID string, limit int) ([]*models.LogisticsComment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := s.db.Query(ctx, `
SELECT`+commentColumns+`
FROM logistics_comments
WHERE order_id = $1
ORDER BY created_at ASC
LIMIT $2
`, orderID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select comments")
	}
	defer rows.Close()

	var out []*models.LogisticsComment
	for rows.Next() {
		c, err := scanComment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func scanComment(row rowScanner) (*models.LogisticsComment, error) {
	var c models.LogisticsComment
	var sender string
	err := row.Scan(
		&c.ID, &c.OrderID, &c.Comment, &sender, &c.SenderName,
		&c.ExternalID, &c.Provider, &c.IsSynced, &c.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, errors.Wrap(err, "scan comment")
	}
	c.Sender = models.CommentSender(sender)
	return &c, nil
}
