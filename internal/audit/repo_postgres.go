package audit

import (
	"context"
	"fmt"

	"github.com/Andres1439/verify-cod-orders/pkg/utils"
)

type PostgresRepo struct {
	db utils.DB
}

func NewPostgresRepo(db utils.DB) *PostgresRepo { return &PostgresRepo{db: db} }

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
INSERT INTO audit_events (id, shop_domain, order_id, call_uuid, type, actor, message, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,NULLIF($8,'')::jsonb,$9)
`
	_, err := r.db.Exec(ctx, q,
		e.ID,
		e.ShopDomain,
		e.OrderID,
		e.CallUUID,
		string(e.Type),
		e.Actor,
		e.Message,
		e.Metadata,
		e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}
