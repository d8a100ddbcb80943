package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	settlement "github.com/NIMOLA/hermeos-backend-sub002"
	"github.com/NIMOLA/hermeos-backend-sub002/property"
	"github.com/NIMOLA/hermeos-backend-sub002/types"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the settlement schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.store.Migrate(ctx); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "migrated %s store\n", a.cfg.Store.Driver)
				return nil
			})
		},
	}
}

func propertyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "property",
		Short: "Manage property inventory",
	}
	cmd.AddCommand(propertyRegisterCmd())
	cmd.AddCommand(propertyShowCmd())
	cmd.AddCommand(propertyListCmd())
	cmd.AddCommand(propertyResumeCmd())
	return cmd
}

func propertyRegisterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register [name]",
		Short: "Register a property with all units available",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			units, _ := cmd.Flags().GetInt64("units")
			price, _ := cmd.Flags().GetInt64("price")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p := &property.Property{
					Name:         args[0],
					TotalUnits:   units,
					PricePerUnit: types.Money(price),
				}
				if err := a.engine.RegisterProperty(ctx, p); err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), p)
			})
		},
	}

	cmd.Flags().Int64P("units", "u", 0, "Total units on offer")
	cmd.Flags().Int64P("price", "p", 0, "Price per unit")
	_ = cmd.MarkFlagRequired("units")
	_ = cmd.MarkFlagRequired("price")

	return cmd
}

func propertyShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [property-id]",
		Short: "Show a property and verify its inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := settlement.ParsePropertyID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				p, err := a.engine.GetProperty(ctx, pid)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), p); err != nil {
					return err
				}
				return a.engine.VerifyInventory(ctx, pid)
			})
		},
	}
}

func propertyListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List properties",
		RunE: func(cmd *cobra.Command, args []string) error {
			halted, _ := cmd.Flags().GetBool("halted")
			limit, _ := cmd.Flags().GetInt("limit")
			return withApp(cmd, func(ctx context.Context, a *app) error {
				props, err := a.engine.ListProperties(ctx, property.ListOpts{HaltedOnly: halted, Limit: limit})
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), props)
			})
		},
	}

	cmd.Flags().Bool("halted", false, "Only halted properties")
	cmd.Flags().IntP("limit", "n", 50, "Maximum results")

	return cmd
}

func propertyResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [property-id]",
		Short: "Lift a write halt after the inventory has been repaired",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := settlement.ParsePropertyID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				if err := a.engine.ResumeProperty(ctx, pid); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "resumed %s\n", pid)
				return nil
			})
		},
	}
}

func availableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "available [property-id]",
		Short: "Print the units still on offer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := settlement.ParsePropertyID(args[0])
			if err != nil {
				return err
			}
			return withApp(cmd, func(ctx context.Context, a *app) error {
				units, err := a.engine.GetAvailableUnits(ctx, pid)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), units)
				return nil
			})
		},
	}
}
