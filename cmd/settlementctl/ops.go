package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/finance"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Grant missing capabilities to every KYC-approved user",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.engine.ReconcileCapabilities(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func recoverCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "recover",
		Short: "Drive stale pending settlements to a terminal state",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				report, err := a.engine.RecoverStale(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), report)
			})
		},
	}
}

func splitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "split [gross]",
		Short: "Split gross rental income 80/15/5",
		Long: `Split prints the member pool, facility and platform shares of a
gross rental amount. With --property it also pays the member pool
pro rata across the property's holdings.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			gross, err := decimal.NewFromString(args[0])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[0], err)
			}

			propertyArg, _ := cmd.Flags().GetString("property")
			if propertyArg == "" {
				return printJSON(cmd.OutOrStdout(), finance.RentalSplit(gross))
			}

			pid, err := settlement.ParsePropertyID(propertyArg)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				dist, err := a.engine.DistributionPreview(ctx, pid, types.FromDecimal(gross))
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), dist)
			})
		},
	}

	cmd.Flags().String("property", "", "Preview the payout for this property")

	return cmd
}

func projectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "project [units]",
		Short: "Project conservative and market returns for a purchase",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, err := decimal.NewFromString(args[0])
			if err != nil || !units.IsInteger() {
				return fmt.Errorf("invalid unit count %q", args[0])
			}

			priceArg, _ := cmd.Flags().GetString("price")
			propertyArg, _ := cmd.Flags().GetString("property")

			if propertyArg == "" {
				price, err := decimal.NewFromString(priceArg)
				if err != nil {
					return fmt.Errorf("--price or --property is required: %w", err)
				}
				return printJSON(cmd.OutOrStdout(), finance.Projections(units.IntPart(), price))
			}

			pid, err := settlement.ParsePropertyID(propertyArg)
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.engine.ProjectInvestment(ctx, pid, units.IntPart())
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}

	cmd.Flags().String("price", "", "Price per unit")
	cmd.Flags().String("property", "", "Use this property's price per unit")

	return cmd
}
