package audit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_AppendRequiresOrderAndType(t *testing.T) {
	svc := NewService(NewMemoryRepo())

	assert.ErrorIs(t, svc.Append(context.Background(), Event{Type: EventTypeCallOutcome}), ErrInvalidEvent)
	assert.ErrorIs(t, svc.Append(context.Background(), Event{OrderID: "o1"}), ErrInvalidEvent)
}

func TestService_RecordFillsIDAndMetadata(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	svc.clock = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("PET", -5*3600)) }

	err := svc.Record(context.Background(), Event{
		OrderID:  "o1",
		CallUUID: "leg-1",
		Type:     EventTypeCallOutcome,
		Actor:    ActorProvider,
		Message:  "confirmed",
	}, map[string]any{"digits": "1"})
	require.NoError(t, err)

	evs := repo.Events()
	require.Len(t, evs, 1)
	assert.NotEmpty(t, evs[0].ID)
	assert.Equal(t, time.UTC, evs[0].CreatedAt.Location())

	var meta map[string]string
	require.NoError(t, json.Unmarshal([]byte(evs[0].Metadata), &meta))
	assert.Equal(t, "1", meta["digits"])
}

func TestPostgresRepo_Append(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	now := time.Now().UTC()
	mock.ExpectExec(`INSERT INTO audit_events`).
		WithArgs("e1", "demo.myshopify.com", "o1", "leg-1", "retry_action", "codctl", "mark_expired", "", now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = NewPostgresRepo(mock).Append(context.Background(), Event{
		ID:         "e1",
		ShopDomain: "demo.myshopify.com",
		OrderID:    "o1",
		CallUUID:   "leg-1",
		Type:       EventTypeRetryAction,
		Actor:      "codctl",
		Message:    "mark_expired",
		CreatedAt:  now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
