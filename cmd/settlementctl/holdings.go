package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/capability"
	"github.com/NIMOLA/hermeos-backend-sub002/ownership"
)

func tierCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tier [user-id]",
		Short: "Show a user's tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			recompute, _ := cmd.Flags().GetBool("recompute")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				get := a.engine.GetTier
				if recompute {
					get = a.engine.RecomputeTier
				}
				t, err := get(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", t, t.Label())
				return nil
			})
		},
	}

	cmd.Flags().BoolP("recompute", "r", false, "Recompute from active holdings before printing")

	return cmd
}

func exitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exit [ownership-id]",
		Short: "Approve an exit and return the units to inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := settlement.ParseOwnershipID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				o, err := a.engine.ApproveExit(ctx, oid)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), o)
			})
		},
	}
	cmd.AddCommand(holdingsCmd())
	cmd.AddCommand(lockCmd(true))
	cmd.AddCommand(lockCmd(false))
	return cmd
}

func holdingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List holdings",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			propertyArg, _ := cmd.Flags().GetString("property")
			limit, _ := cmd.Flags().GetInt("limit")

			opts := ownership.ListOpts{UserID: user, Limit: limit}
			if propertyArg != "" {
				pid, err := settlement.ParsePropertyID(propertyArg)
				if err != nil {
					return err
				}
				opts.PropertyID = pid
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				list, err := a.engine.ListOwnerships(ctx, opts)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), list)
			})
		},
	}

	cmd.Flags().String("user", "", "Filter by user ID")
	cmd.Flags().String("property", "", "Filter by property ID")
	cmd.Flags().IntP("limit", "n", 50, "Maximum results")

	return cmd
}

func lockCmd(lock bool) *cobra.Command {
	use, short := "unlock [ownership-id]", "Release a locked holding"
	if lock {
		use, short = "lock [ownership-id]", "Lock a holding against exit"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			oid, err := settlement.ParseOwnershipID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				apply := a.engine.UnlockOwnership
				if lock {
					apply = a.engine.LockOwnership
				}
				o, err := apply(ctx, oid)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), o)
			})
		},
	}
}

func kycCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kyc",
		Short: "Manage KYC state and capabilities",
	}
	cmd.AddCommand(kycSetCmd())
	cmd.AddCommand(&cobra.Command{
		Use:   "revoke [user-id]",
		Short: "Revoke every capability that requires verification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				removed, err := a.engine.RevokeVerifiedCapabilities(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), removed)
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "capabilities [user-id]",
		Short: "List a user's capability grants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				grants, err := a.engine.Capabilities(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), grants)
			})
		},
	})
	return cmd
}

func kycSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set [user-id] [PENDING|SUBMITTED|APPROVED|REJECTED]",
		Short: "Record a KYC decision",
		Long: `Set records the user's KYC status. Approval grants any missing
verified capabilities. Use "kyc revoke" to withdraw them.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status := capability.KYCStatus(args[1])
			if !status.Valid() {
				return fmt.Errorf("invalid KYC status %q", args[1])
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.engine.SetKYCStatus(ctx, args[0], status); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", args[0], status)
				return nil
			})
		},
	}
}
