package events

import (
	"bytes"
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/commerce"
	"github.com/Andres1439/verify-cod-orders/internal/orders"
	"github.com/Andres1439/verify-cod-orders/internal/telephony"
	"github.com/Andres1439/verify-cod-orders/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

type recordingTagger struct {
	mu   sync.Mutex
	tags []string
}

func (r *recordingTagger) TagOrder(ctx context.Context, o orders.Order, tag string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, o.ID+":"+tag)
	return nil
}

func setup(t *testing.T, st orders.State) (*Ingestor, *orders.MemoryRepo, *recordingTagger) {
	t.Helper()
	repo := orders.NewMemoryRepo()
	require.NoError(t, repo.Create(context.Background(), orders.Order{
		ID:         "o-1",
		CallUUID:   "call-1",
		Status:     st.Status,
		CallStatus: st.CallStatus,
		CreatedAt:  now.Add(-time.Hour),
		UpdatedAt:  now.Add(-time.Hour),
	}))
	tagger := &recordingTagger{}
	in := NewIngestor(repo, tagger, logger.Discard())
	in.Now = func() time.Time { return now }
	return in, repo, tagger
}

func state(o orders.Order) orders.State { return o.State() }

func TestIngest_Mapping(t *testing.T) {
	pending := orders.State{Status: orders.StatusPendingCall, CallStatus: orders.CallStatusPending}

	cases := []struct {
		status string
		from   orders.State
		want   orders.State
		tagged bool
	}{
		{"ringing", orders.State{Status: orders.StatusPendingCall}, pending, false},
		{"answered", pending, pending, false},
		{"completed", pending, orders.State{Status: orders.StatusPendingCall, CallStatus: orders.CallStatusCompleted}, false},
		{"completed", orders.State{Status: orders.StatusConfirmed, CallStatus: orders.CallStatusCompleted}, orders.State{Status: orders.StatusConfirmed, CallStatus: orders.CallStatusCompleted}, false},
		{"busy", pending, orders.State{Status: orders.StatusNoAnswer, CallStatus: orders.CallStatusNoAnswer}, true},
		{"unallocated_number", orders.State{Status: orders.StatusPendingCall}, orders.State{Status: orders.StatusNoAnswer, CallStatus: orders.CallStatusNoAnswer}, true},
		// never regresses a finished leg
		{"ringing", orders.State{Status: orders.StatusPendingCall, CallStatus: orders.CallStatusCompleted}, orders.State{Status: orders.StatusPendingCall, CallStatus: orders.CallStatusCompleted}, false},
		{"timeout", orders.State{Status: orders.StatusConfirmed, CallStatus: orders.CallStatusCompleted}, orders.State{Status: orders.StatusConfirmed, CallStatus: orders.CallStatusCompleted}, false},
	}
	for _, tc := range cases {
		t.Run(tc.status+"_from_"+tc.from.String(), func(t *testing.T) {
			in, repo, tagger := setup(t, tc.from)

			res, err := in.Ingest(context.Background(), telephony.Event{Status: tc.status, UUID: "call-1"})
			require.NoError(t, err)
			assert.Equal(t, MessageProcessed, res.Message)

			o, err := repo.Get(context.Background(), "o-1")
			require.NoError(t, err)
			assert.Equal(t, tc.want, state(o))
			if tc.tagged {
				assert.Equal(t, []string{"o-1:" + commerce.TagNoAnswer}, tagger.tags)
			} else {
				assert.Empty(t, tagger.tags)
			}
			if res.Updated > 0 {
				require.NotNil(t, o.LastEventAt)
				assert.True(t, o.UpdatedAt.Equal(now))
			}
		})
	}
}

func TestIngest_Ignored(t *testing.T) {
	in, repo, _ := setup(t, orders.State{Status: orders.StatusPendingCall, CallStatus: orders.CallStatusPending})
	ctx := context.Background()

	res, err := in.Ingest(ctx, telephony.Event{UUID: "call-1"})
	assert.ErrorIs(t, err, ErrMissingData)
	assert.Equal(t, MessageMissingData, res.Message)

	res, err = in.Ingest(ctx, telephony.Event{Status: "transfer", UUID: "call-1"})
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Equal(t, MessageUnknown, res.Message)

	res, err = in.Ingest(ctx, telephony.Event{Status: "failed", UUID: "other-leg"})
	require.NoError(t, err)
	assert.Equal(t, int64(0), res.Updated)

	o, _ := repo.Get(ctx, "o-1")
	assert.Equal(t, orders.CallStatusPending, o.CallStatus)
}

func TestIngest_UnknownStatusLoggedAtInfo(t *testing.T) {
	in, _, _ := setup(t, orders.State{Status: orders.StatusPendingCall, CallStatus: orders.CallStatusPending})
	var buf bytes.Buffer
	in.log = logger.NewWithWriter(&buf, "production")

	_, err := in.Ingest(context.Background(), telephony.Event{Status: "transfer", UUID: "call-1"})
	assert.ErrorIs(t, err, ErrUnknownStatus)
	assert.Contains(t, buf.String(), `"msg":"unknown call status"`)
	assert.Contains(t, buf.String(), `"status":"transfer"`)
}
