package main

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/apiclient"
	"github.com/Andres1439/verify-cod-orders/internal/retry"
	"github.com/Andres1439/verify-cod-orders/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSweepClient struct {
	mu        sync.Mutex
	orders    []retry.Candidate
	listErr   error
	actErr    map[string]error
	initErr   map[string]error
	acted     []string
	actions   map[string]retry.Action
	initiated []string
}

func (f *fakeSweepClient) Candidates(ctx context.Context, q retry.Query) (retry.Candidates, error) {
	return retry.Candidates{Success: true, Count: len(f.orders), Orders: f.orders}, f.listErr
}

func (f *fakeSweepClient) Act(ctx context.Context, id string, a retry.Action) (retry.ActionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.actErr[id]; err != nil {
		return retry.ActionResult{}, err
	}
	f.acted = append(f.acted, id)
	if f.actions == nil {
		f.actions = map[string]retry.Action{}
	}
	f.actions[id] = a
	return retry.ActionResult{Success: true, OrderID: id, Action: a}, nil
}

func (f *fakeSweepClient) Initiate(ctx context.Context, id string) (apiclient.InitiateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.initErr[id]; err != nil {
		return apiclient.InitiateResponse{}, err
	}
	f.initiated = append(f.initiated, id)
	return apiclient.InitiateResponse{Success: true, CallUUID: "call-" + id}, nil
}

var sweepNow = time.Date(2026, 3, 10, 15, 0, 0, 0, time.UTC)

func TestRunSweep_ActsThenInitiates(t *testing.T) {
	recent := sweepNow.Add(-3 * time.Hour)
	f := &fakeSweepClient{
		orders: []retry.Candidate{
			{ID: "a", CreatedAt: recent},
			{ID: "b", CreatedAt: recent},
			{ID: "c", CreatedAt: recent},
			{ID: "d", CreatedAt: recent},
			{ID: "e", CreatedAt: sweepNow.Add(-30 * time.Hour)},
		},
		actErr: map[string]error{
			"b": &apiclient.APIError{StatusCode: http.StatusConflict, Code: "conflict"},
			"c": &apiclient.APIError{StatusCode: http.StatusInternalServerError},
		},
		initErr: map[string]error{"d": errors.New("boom")},
	}

	rep, err := runSweep(context.Background(), f, sweepOptions{
		Concurrency: 2,
		MaxAge:      24 * time.Hour,
		Now:         func() time.Time { return sweepNow },
	}, logger.Discard())
	require.NoError(t, err)
	assert.Equal(t, sweepReport{Candidates: 5, Placed: 1, Expired: 1, Skipped: 1, Failed: 2}, rep)
	assert.ElementsMatch(t, []string{"a", "d", "e"}, f.acted)
	assert.Equal(t, retry.ActionRetryAttempted, f.actions["a"])
	assert.Equal(t, retry.ActionMarkExpired, f.actions["e"])
	assert.Equal(t, []string{"a"}, f.initiated)
}

func TestRunSweep_ListFailure(t *testing.T) {
	f := &fakeSweepClient{listErr: errors.New("down")}
	_, err := runSweep(context.Background(), f, sweepOptions{}, logger.Discard())
	require.Error(t, err)
	assert.Empty(t, f.acted)
}

func TestSplitScopes(t *testing.T) {
	assert.Equal(t, []string{"calls:write", "retry:read"}, splitScopes(" calls:write, ,retry:read "))
	assert.Nil(t, splitScopes(""))
}
