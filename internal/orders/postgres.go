package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Andres1439/verify-cod-orders/pkg/utils"

	"github.com/jackc/pgx/v5"
)

// NOTE: This repository assumes the schema in migrations/001_init.sql:
// - order_confirmations (call_uuid indexed, unique when non-empty)
// - shops

const orderColumns = `id, shop_domain, internal_order_number, commerce_order_id, commerce_order_name,
  customer_phone, customer_name, customer_email,
  order_items, order_total, shop_currency, shop_country_code, shop_timezone, shipping_address,
  status, call_status, call_uuid, dtmf_response, retry_count, call_attempts,
  created_at, updated_at, call_started_at, confirmed_at, declined_at, last_event_at, expires_at`

// PostgresStore implements Store and ShopStore on pgx.
type PostgresStore struct {
	db  utils.DB
	log *slog.Logger
}

func NewPostgresStore(db utils.DB, log *slog.Logger) *PostgresStore {
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{db: db, log: log.With("component", "orders_store_pg")}
}

func (s *PostgresStore) Create(ctx context.Context, o Order) error {
	if o.ID == "" {
		return ErrInvalidInput
	}
	if err := o.State().Validate(); err != nil {
		return err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return fmt.Errorf("encode order items: %w", err)
	}
	addr, err := json.Marshal(o.ShippingAddress)
	if err != nil {
		return fmt.Errorf("encode shipping address: %w", err)
	}

	const q = `
INSERT INTO order_confirmations (
  id, shop_domain, internal_order_number, commerce_order_id, commerce_order_name,
  customer_phone, customer_name, customer_email,
  order_items, order_total, shop_currency, shop_country_code, shop_timezone, shipping_address,
  status, call_status, call_uuid, dtmf_response, retry_count, call_attempts,
  created_at, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22
)
`
	_, err = s.db.Exec(ctx, q,
		o.ID,
		o.ShopDomain,
		o.InternalOrderNumber,
		o.CommerceOrderID,
		o.CommerceOrderName,
		o.CustomerPhone,
		o.CustomerName,
		o.CustomerEmail,
		items,
		o.Total,
		o.Currency,
		o.CountryCode,
		o.Timezone,
		addr,
		string(o.Status),
		string(o.CallStatus),
		o.CallUUID,
		o.DTMFResponse,
		o.RetryCount,
		o.CallAttempts,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Order, error) {
	q := `SELECT ` + orderColumns + ` FROM order_confirmations WHERE id = $1`
	o, err := scanOrder(s.db.QueryRow(ctx, q, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) GetByCallUUID(ctx context.Context, callUUID string) (Order, error) {
	if callUUID == "" {
		return Order{}, ErrNotFound
	}
	q := `SELECT ` + orderColumns + ` FROM order_confirmations WHERE call_uuid = $1 LIMIT 1`
	o, err := scanOrder(s.db.QueryRow(ctx, q, callUUID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("get order by call uuid: %w", err)
	}
	return o, nil
}

func (s *PostgresStore) Apply(ctx context.Context, id string, t Transition, ch Changes) (Order, error) {
	q, args := buildGuardedUpdate("id", id, t, ch)
	q += ` RETURNING ` + orderColumns

	o, err := scanOrder(s.db.QueryRow(ctx, q, args...))
	if err == nil {
		return o, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return Order{}, fmt.Errorf("apply %s: %w", t.Name, err)
	}

	var one int
	err = s.db.QueryRow(ctx, `SELECT 1 FROM order_confirmations WHERE id = $1`, id).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("apply %s: %w", t.Name, err)
	}
	return Order{}, fmt.Errorf("%w: %s guard did not match order %s", ErrConflict, t.Name, id)
}

func (s *PostgresStore) ApplyByCallUUID(ctx context.Context, callUUID string, t Transition, ch Changes) (int64, error) {
	if callUUID == "" {
		return 0, nil
	}
	q, args := buildGuardedUpdate("call_uuid", callUUID, t, ch)
	tag, err := s.db.Exec(ctx, q, args...)
	if err != nil {
		return 0, fmt.Errorf("apply %s by call uuid: %w", t.Name, err)
	}
	s.log.DebugContext(ctx, "guarded update", "transition", t.Name, "call_uuid", callUUID, "rows", tag.RowsAffected())
	return tag.RowsAffected(), nil
}

func (s *PostgresStore) ListPending(ctx context.Context, limit int) ([]Order, error) {
	q := `SELECT ` + orderColumns + `
FROM order_confirmations
WHERE status = $1 AND call_status <> ALL($2)
ORDER BY created_at ASC
LIMIT $3`
	rows, err := s.db.Query(ctx, q,
		string(StatusPendingCall),
		[]string{string(CallStatusNoAnswer), string(CallStatusFailed)},
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending: %w", err)
	}
	return collectOrders(rows)
}

func (s *PostgresStore) ListStale(ctx context.Context, sq StaleQuery) ([]Order, error) {
	callStatuses := make([]string, 0, len(sq.CallStatuses))
	for _, c := range sq.CallStatuses {
		callStatuses = append(callStatuses, string(c))
	}
	excluded := make([]string, 0, len(sq.ExcludeStatuses))
	for _, st := range sq.ExcludeStatuses {
		excluded = append(excluded, string(st))
	}

	q := `SELECT ` + orderColumns + `
FROM order_confirmations
WHERE call_status = ANY($1)
  AND status <> ALL($2)
  AND updated_at < $3
  AND created_at >= $4
ORDER BY updated_at ASC
LIMIT $5`
	rows, err := s.db.Query(ctx, q, callStatuses, excluded, sq.UpdatedBefore, sq.CreatedAfter, sq.Limit)
	if err != nil {
		return nil, fmt.Errorf("list stale: %w", err)
	}
	return collectOrders(rows)
}

// CountByStatus tallies the shop's orders by status.
func (s *PostgresStore) CountByStatus(ctx context.Context, shopDomain string) (StatusCounts, error) {
	const q = `
SELECT status, count(*)
FROM order_confirmations
WHERE shop_domain = $1
GROUP BY status
`
	rows, err := s.db.Query(ctx, q, shopDomain)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	out := StatusCounts{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		out[Status(status)] = n
	}
	return out, rows.Err()
}

// ListRecent returns the shop's orders, newest first.
func (s *PostgresStore) ListRecent(ctx context.Context, shopDomain string, limit, offset int) ([]Order, error) {
	q := `SELECT ` + orderColumns + `
FROM order_confirmations
WHERE shop_domain = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`
	rows, err := s.db.Query(ctx, q, shopDomain, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return collectOrders(rows)
}

func (s *PostgresStore) GetShop(ctx context.Context, domain string) (Shop, error) {
	const q = `
SELECT shop_domain, access_token, currency, country_code, timezone, created_at, updated_at
FROM shops
WHERE shop_domain = $1
`
	var sh Shop
	if err := s.db.QueryRow(ctx, q, domain).Scan(
		&sh.Domain,
		&sh.AccessToken,
		&sh.Currency,
		&sh.CountryCode,
		&sh.Timezone,
		&sh.CreatedAt,
		&sh.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Shop{}, ErrNotFound
		}
		return Shop{}, fmt.Errorf("get shop: %w", err)
	}
	return sh, nil
}

func (s *PostgresStore) UpsertShop(ctx context.Context, sh Shop) error {
	if sh.Domain == "" {
		return ErrInvalidInput
	}
	const q = `
INSERT INTO shops (shop_domain, access_token, currency, country_code, timezone, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$6)
ON CONFLICT (shop_domain)
DO UPDATE SET access_token = EXCLUDED.access_token,
              currency = EXCLUDED.currency,
              country_code = EXCLUDED.country_code,
              timezone = EXCLUDED.timezone,
              updated_at = EXCLUDED.updated_at
`
	_, err := s.db.Exec(ctx, q, sh.Domain, sh.AccessToken, sh.Currency, sh.CountryCode, sh.Timezone, sh.UpdatedAt)
	if err != nil {
		return fmt.Errorf("upsert shop: %w", err)
	}
	return nil
}

// buildGuardedUpdate renders the conditional UPDATE for a transition.
// Argument order: SET values, then the key, then guard pairs, then the
// optional retry_count guard.
func buildGuardedUpdate(keyCol, key string, t Transition, ch Changes) (string, []any) {
	var sets []string
	var args []any
	set := func(col string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if t.ToStatus != nil {
		set("status", string(*t.ToStatus))
	}
	if t.ToCallStatus != nil {
		set("call_status", string(*t.ToCallStatus))
	}
	if ch.CallUUID != nil {
		set("call_uuid", *ch.CallUUID)
	}
	if ch.DTMFResponse != nil {
		set("dtmf_response", *ch.DTMFResponse)
	}
	if ch.RetryCount != nil {
		set("retry_count", *ch.RetryCount)
	}
	if ch.CallStartedAt != nil {
		set("call_started_at", *ch.CallStartedAt)
	}
	if ch.ConfirmedAt != nil {
		set("confirmed_at", *ch.ConfirmedAt)
	}
	if ch.DeclinedAt != nil {
		set("declined_at", *ch.DeclinedAt)
	}
	if ch.LastEventAt != nil {
		set("last_event_at", *ch.LastEventAt)
	}
	if ch.ExpiresAt != nil {
		set("expires_at", *ch.ExpiresAt)
	}
	set("updated_at", ch.UpdatedAt)
	if ch.AddCallAttempt {
		sets = append(sets, "call_attempts = call_attempts + 1")
	}

	args = append(args, key)
	where := []string{fmt.Sprintf("%s = $%d", keyCol, len(args))}

	pairs := make([]string, 0, len(t.From))
	for _, f := range t.From {
		args = append(args, string(f.Status), string(f.CallStatus))
		pairs = append(pairs, fmt.Sprintf("($%d,$%d)", len(args)-1, len(args)))
	}
	where = append(where, "(status, call_status) IN ("+strings.Join(pairs, ",")+")")

	if ch.IfRetryCount != nil {
		args = append(args, *ch.IfRetryCount)
		where = append(where, fmt.Sprintf("retry_count = $%d", len(args)))
	}

	q := "UPDATE order_confirmations SET " + strings.Join(sets, ", ") +
		" WHERE " + strings.Join(where, " AND ")
	return q, args
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o          Order
		items      []byte
		addr       []byte
		status     string
		callStatus string
	)
	err := row.Scan(
		&o.ID,
		&o.ShopDomain,
		&o.InternalOrderNumber,
		&o.CommerceOrderID,
		&o.CommerceOrderName,
		&o.CustomerPhone,
		&o.CustomerName,
		&o.CustomerEmail,
		&items,
		&o.Total,
		&o.Currency,
		&o.CountryCode,
		&o.Timezone,
		&addr,
		&status,
		&callStatus,
		&o.CallUUID,
		&o.DTMFResponse,
		&o.RetryCount,
		&o.CallAttempts,
		&o.CreatedAt,
		&o.UpdatedAt,
		&o.CallStartedAt,
		&o.ConfirmedAt,
		&o.DeclinedAt,
		&o.LastEventAt,
		&o.ExpiresAt,
	)
	if err != nil {
		return Order{}, err
	}
	o.Status = Status(status)
	o.CallStatus = CallStatus(callStatus)
	if len(items) > 0 {
		if err := json.Unmarshal(items, &o.Items); err != nil {
			return Order{}, fmt.Errorf("decode order items: %w", err)
		}
	}
	if len(addr) > 0 {
		if err := json.Unmarshal(addr, &o.ShippingAddress); err != nil {
			return Order{}, fmt.Errorf("decode shipping address: %w", err)
		}
	}
	return o, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	var out []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
