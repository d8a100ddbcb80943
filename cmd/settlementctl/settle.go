package main

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/internal/retry"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

func settleCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settle [reference]",
		Short: "Settle a confirmed payment into an ownership grant",
		Long: `Settle runs the settlement pipeline for one payment reference.
Re-running a reference that already finished prints the stored outcome.
A reference held by another worker is retried with backoff.
Rejections exit with status 2.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			propertyArg, _ := cmd.Flags().GetString("property")
			user, _ := cmd.Flags().GetString("user")
			units, _ := cmd.Flags().GetInt64("units")
			amount, _ := cmd.Flags().GetInt64("amount")
			attempts, _ := cmd.Flags().GetInt("attempts")

			pid, err := settlement.ParsePropertyID(propertyArg)
			if err != nil {
				return err
			}
			req := settlement.Request{
				Reference:  args[0],
				PropertyID: pid,
				UserID:     user,
				Units:      units,
				Amount:     types.Money(amount),
			}

			return withApp(cmd, func(ctx context.Context, a *app) error {
				cfg := &retry.Config{
					MaxAttempts:       attempts,
					InitialBackoff:    250 * time.Millisecond,
					MaxBackoff:        5 * time.Second,
					BackoffMultiplier: 2,
					ShouldRetry: func(err error) bool {
						return errors.Is(err, settlement.ErrSettlementInProgress)
					},
				}

				var rejection error
				res, err := retry.Do(ctx, cfg, a.log, "settle", func(ctx context.Context) (*settlement.Result, error) {
					res, err := a.engine.Settle(ctx, req)
					if err != nil && res != nil && settlement.IsRejection(err) {
						// A recorded rejection is a final answer, not a retry.
						rejection = err
						return res, nil
					}
					return res, err
				})
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), res); err != nil {
					return err
				}
				return rejected(rejection)
			})
		},
	}

	cmd.Flags().String("property", "", "Property ID (prop_...)")
	cmd.Flags().String("user", "", "Buyer user ID")
	cmd.Flags().Int64("units", 0, "Units purchased")
	cmd.Flags().Int64("amount", 0, "Confirmed payment amount")
	cmd.Flags().Int("attempts", 5, "Attempts while the reference is held elsewhere")
	for _, name := range []string{"property", "user", "units", "amount"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}
