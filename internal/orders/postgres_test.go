package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGuardedUpdate(t *testing.T) {
	now := time.Now()
	q, args := buildGuardedUpdate("call_uuid", "leg", TransitionReprompt, Changes{
		RetryCount:   Ptr(1),
		IfRetryCount: Ptr(0),
		UpdatedAt:    now,
	})

	assert.Equal(t,
		"UPDATE order_confirmations SET retry_count = $1, updated_at = $2"+
			" WHERE call_uuid = $3 AND (status, call_status) IN (($4,$5),($6,$7),($8,$9)) AND retry_count = $10",
		q)
	require.Len(t, args, 10)
	assert.Equal(t, "leg", args[2])
	assert.Equal(t, "PENDING_CALL", args[3])
	assert.Equal(t, "", args[4])
	assert.Equal(t, 0, args[9])
}

func TestBuildGuardedUpdate_CallAttempts(t *testing.T) {
	q, _ := buildGuardedUpdate("id", "o1", TransitionCallPlaced, Changes{CallUUID: Ptr("leg"), AddCallAttempt: true, UpdatedAt: time.Now()})
	assert.True(t, strings.HasPrefix(q, "UPDATE order_confirmations SET call_status = $1, call_uuid = $2, updated_at = $3, call_attempts = call_attempts + 1 WHERE id = $4"))
}

func TestPostgresStore_ApplyByCallUUID(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE order_confirmations SET status = \$1, call_status = \$2, dtmf_response = \$3`).
		WithArgs("CONFIRMED", "COMPLETED", "1", now, now, "leg-1",
			"PENDING_CALL", "", "PENDING_CALL", "PENDING", "PENDING_CALL", "COMPLETED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	store := NewPostgresStore(mock, nil)
	n, err := store.ApplyByCallUUID(context.Background(), "leg-1", TransitionConfirm, Changes{
		DTMFResponse: Ptr("1"),
		ConfirmedAt:  &now,
		UpdatedAt:    now,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyByCallUUID_EmptyKeyIsNoop(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	n, err := NewPostgresStore(mock, nil).ApplyByCallUUID(context.Background(), "", TransitionLegFailed, Changes{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ApplyDistinguishesConflictFromNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	store := NewPostgresStore(mock, nil)
	ch := Changes{UpdatedAt: time.Now()}

	mock.ExpectQuery(`UPDATE order_confirmations SET status`).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT 1 FROM order_confirmations WHERE id = \$1`).
		WithArgs("o1").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}).AddRow(1))

	_, err = store.Apply(context.Background(), "o1", TransitionMarkExpired, ch)
	assert.ErrorIs(t, err, ErrConflict)

	mock.ExpectQuery(`UPDATE order_confirmations SET status`).WillReturnRows(pgxmock.NewRows([]string{"id"}))
	mock.ExpectQuery(`SELECT 1 FROM order_confirmations WHERE id = \$1`).
		WithArgs("o2").
		WillReturnRows(pgxmock.NewRows([]string{"?column?"}))

	_, err = store.Apply(context.Background(), "o2", TransitionMarkExpired, ch)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM order_confirmations WHERE id = \$1`).
		WithArgs("nope").
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	_, err = NewPostgresStore(mock, nil).Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CountByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`SELECT status, count\(\*\)`).
		WithArgs("demo.myshopify.com").
		WillReturnRows(pgxmock.NewRows([]string{"status", "count"}).
			AddRow("CONFIRMED", 3).
			AddRow("NO_ANSWER", 1))

	counts, err := NewPostgresStore(mock, nil).CountByStatus(context.Background(), "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, 3, counts[StatusConfirmed])
	assert.Equal(t, 1, counts[StatusNoAnswer])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListStaleArgs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	before := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	after := before.Add(-46 * time.Hour)
	mock.ExpectQuery(`WHERE call_status = ANY\(\$1\)`).
		WithArgs([]string{"NO_ANSWER", "FAILED"}, []string{"CONFIRMED", "DECLINED", "EXPIRED"}, before, after, 20).
		WillReturnRows(pgxmock.NewRows([]string{"id"}))

	out, err := NewPostgresStore(mock, nil).ListStale(context.Background(), StaleQuery{
		CallStatuses:    []CallStatus{CallStatusNoAnswer, CallStatusFailed},
		ExcludeStatuses: []Status{StatusConfirmed, StatusDeclined, StatusExpired},
		UpdatedBefore:   before,
		CreatedAfter:    after,
		Limit:           20,
	})
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.NoError(t, mock.ExpectationsWereMet())
}
