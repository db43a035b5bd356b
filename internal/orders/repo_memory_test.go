package orders

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedOrder(t *testing.T, repo *MemoryRepo, id string, created time.Time) Order {
	t.Helper()
	o := Order{
		ID:            id,
		ShopDomain:    "demo.myshopify.com",
		CustomerPhone: "51987654321",
		Items:         []LineItem{{Title: "Polo", Quantity: 2, Price: decimal.RequireFromString("25.00")}},
		Total:         decimal.RequireFromString("50.00"),
		Currency:      "PEN",
		Status:        StatusPendingCall,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, repo.Create(context.Background(), o))
	return o
}

func TestMemoryRepo_CreateRejectsInvalidState(t *testing.T) {
	repo := NewMemoryRepo()
	err := repo.Create(context.Background(), Order{ID: "a", Status: StatusConfirmed})
	assert.ErrorIs(t, err, ErrInvalidState)

	err = repo.Create(context.Background(), Order{Status: StatusPendingCall})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestMemoryRepo_ApplyGuards(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	seedOrder(t, repo, "o1", now)

	o, err := repo.Apply(ctx, "o1", TransitionCallPlaced, Changes{
		CallUUID:       Ptr("leg-1"),
		CallStartedAt:  &now,
		AddCallAttempt: true,
		UpdatedAt:      now,
	})
	require.NoError(t, err)
	assert.Equal(t, CallStatusPending, o.CallStatus)
	assert.Equal(t, 1, o.CallAttempts)
	require.NotNil(t, o.CallStartedAt)

	n, err := repo.ApplyByCallUUID(ctx, "leg-1", TransitionConfirm, Changes{DTMFResponse: Ptr("1"), ConfirmedAt: &now, UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// replay
	n, err = repo.ApplyByCallUUID(ctx, "leg-1", TransitionConfirm, Changes{DTMFResponse: Ptr("1"), UpdatedAt: now})
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	_, err = repo.Apply(ctx, "o1", TransitionMarkExpired, Changes{UpdatedAt: now})
	assert.ErrorIs(t, err, ErrConflict)

	_, err = repo.Apply(ctx, "missing", TransitionMarkExpired, Changes{UpdatedAt: now})
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := repo.GetByCallUUID(ctx, "leg-1")
	require.NoError(t, err)
	assert.Equal(t, State{StatusConfirmed, CallStatusCompleted}, got.State())
}

func TestMemoryRepo_IfRetryCountGuard(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewMemoryRepo()
	seedOrder(t, repo, "o1", now)
	_, err := repo.Apply(ctx, "o1", TransitionCallPlaced, Changes{CallUUID: Ptr("leg"), UpdatedAt: now})
	require.NoError(t, err)

	ch := Changes{RetryCount: Ptr(1), IfRetryCount: Ptr(0), UpdatedAt: now}
	n, err := repo.ApplyByCallUUID(ctx, "leg", TransitionReprompt, ch)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = repo.ApplyByCallUUID(ctx, "leg", TransitionReprompt, ch)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestMemoryRepo_ListPendingAndStale(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	repo := NewMemoryRepo()
	seedOrder(t, repo, "new", now.Add(-time.Hour))
	seedOrder(t, repo, "old", now.Add(-3*time.Hour))
	seedOrder(t, repo, "failed", now.Add(-5*time.Hour))
	_, err := repo.Apply(ctx, "failed", TransitionInvalidNumber, Changes{UpdatedAt: now.Add(-4 * time.Hour)})
	require.NoError(t, err)

	pending, err := repo.ListPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "old", pending[0].ID)

	stale, err := repo.ListStale(ctx, StaleQuery{
		CallStatuses:    []CallStatus{CallStatusNoAnswer, CallStatusFailed},
		ExcludeStatuses: []Status{StatusConfirmed, StatusDeclined, StatusExpired},
		UpdatedBefore:   now.Add(-2 * time.Hour),
		CreatedAfter:    now.Add(-48 * time.Hour),
		Limit:           20,
	})
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "failed", stale[0].ID)
}

func TestMemoryRepo_ReportingQueries(t *testing.T) {
	ctx := context.Background()
	now := time.Now()
	repo := NewMemoryRepo()
	for i, id := range []string{"a", "b", "c"} {
		seedOrder(t, repo, id, now.Add(time.Duration(i)*time.Minute))
	}
	_, err := repo.Apply(ctx, "a", TransitionDecline, Changes{UpdatedAt: now})
	require.NoError(t, err)

	counts, err := repo.CountByStatus(ctx, "demo.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, 2, counts[StatusPendingCall])
	assert.Equal(t, 1, counts[StatusDeclined])

	page, err := repo.ListRecent(ctx, "demo.myshopify.com", 2, 0)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "c", page[0].ID)

	page, err = repo.ListRecent(ctx, "demo.myshopify.com", 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)
}

func TestMemoryRepo_Shops(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepo()
	_, err := repo.GetShop(ctx, "x.myshopify.com")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, repo.UpsertShop(ctx, Shop{Domain: "x.myshopify.com", AccessToken: "shpat", Currency: "PEN"}))
	sh, err := repo.GetShop(ctx, "x.myshopify.com")
	require.NoError(t, err)
	assert.Equal(t, "shpat", sh.AccessToken)
}
