package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/Andres1439/verify-cod-orders/internal/apiclient"
	"github.com/Andres1439/verify-cod-orders/internal/retry"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
)

// sweepClient is the slice of the API the sweep drives.
type sweepClient interface {
	Candidates(ctx context.Context, q retry.Query) (retry.Candidates, error)
	Act(ctx context.Context, orderID string, action retry.Action) (retry.ActionResult, error)
	Initiate(ctx context.Context, orderID string) (apiclient.InitiateResponse, error)
}

type sweepOptions struct {
	Query       retry.Query
	Concurrency int
	// MaxAge expires candidates created longer ago instead of calling them.
	MaxAge time.Duration
	Now    func() time.Time
}

type sweepReport struct {
	Candidates int
	Placed     int64
	Expired    int64
	Skipped    int64
	Failed     int64
}

func apiClient() (*apiclient.Client, error) {
	base := viper.GetString("api-url")
	if base == "" {
		return nil, errors.New("--api-url (or COD_API_URL) is required")
	}
	return apiclient.New(apiclient.Options{
		BaseURL: base,
		Token:   viper.GetString("token"),
		Timeout: viper.GetDuration("timeout"),
	}), nil
}

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Re-dial unanswered orders that are due for another attempt",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			rep, err := runSweep(cmd.Context(), client, sweepOptions{
				Query: retry.Query{
					Limit:    viper.GetInt("limit"),
					HoursAgo: viper.GetInt("hours-ago"),
				},
				Concurrency: viper.GetInt("concurrency"),
				MaxAge:      viper.GetDuration("max-age"),
			}, newLogger())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "candidates=%d placed=%d expired=%d skipped=%d failed=%d\n",
				rep.Candidates, rep.Placed, rep.Expired, rep.Skipped, rep.Failed)
			return nil
		},
	}
	addAPIFlags(cmd)
	cmd.Flags().Int("limit", retry.DefaultLimit, "Maximum candidates per run")
	cmd.Flags().Int("hours-ago", 0, "Minimum idle hours; 0 uses the server cooldown")
	cmd.Flags().Int("concurrency", 4, "Calls placed in parallel")
	cmd.Flags().Duration("max-age", 24*time.Hour, "Expire candidates older than this instead of calling")
	return cmd
}

func initiateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "initiate <order-id>",
		Short: "Place a confirmation call for one order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := apiClient()
			if err != nil {
				return err
			}
			res, err := client.Initiate(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "call %s placed to %s (%s)\n", res.CallUUID, res.Phone, res.Status)
			return nil
		},
	}
	addAPIFlags(cmd)
	return cmd
}

func addAPIFlags(cmd *cobra.Command) {
	cmd.Flags().String("api-url", "", "Base URL of the API")
	cmd.Flags().String("token", "", "Service token (see codctl token)")
	cmd.Flags().Duration("timeout", 0, "Per-request timeout")
}

// runSweep expires candidates past MaxAge and, for the rest, marks the
// order as re-attempted and then places the call. Per-order failures are
// logged and counted; only listing fails the run.
func runSweep(ctx context.Context, c sweepClient, opts sweepOptions, log *slog.Logger) (sweepReport, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	list, err := c.Candidates(ctx, opts.Query)
	if err != nil {
		return sweepReport{}, fmt.Errorf("list candidates: %w", err)
	}
	rep := sweepReport{Candidates: len(list.Orders)}
	now := opts.Now()

	var placed, expired, skipped, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Concurrency)
	for _, cand := range list.Orders {
		g.Go(func() error {
			l := log.With("order_id", cand.ID)

			action := retry.ActionRetryAttempted
			if opts.MaxAge > 0 && now.Sub(cand.CreatedAt) > opts.MaxAge {
				action = retry.ActionMarkExpired
			}
			if _, err := c.Act(gctx, cand.ID, action); err != nil {
				if isConflict(err) {
					skipped.Add(1)
					l.InfoContext(gctx, "candidate moved on", "err", err)
					return nil
				}
				failed.Add(1)
				l.WarnContext(gctx, "retry action failed", "action", action, "err", err)
				return nil
			}
			if action == retry.ActionMarkExpired {
				expired.Add(1)
				l.InfoContext(gctx, "candidate expired", "created_at", cand.CreatedAt)
				return nil
			}

			res, err := c.Initiate(gctx, cand.ID)
			if err != nil {
				failed.Add(1)
				l.WarnContext(gctx, "retry call failed", "err", err)
				return nil
			}
			placed.Add(1)
			l.InfoContext(gctx, "retry call placed", "call_uuid", res.CallUUID)
			return nil
		})
	}
	_ = g.Wait()

	rep.Placed, rep.Expired = placed.Load(), expired.Load()
	rep.Skipped, rep.Failed = skipped.Load(), failed.Load()
	return rep, nil
}

func isConflict(err error) bool {
	var apiErr *apiclient.APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusConflict
}
