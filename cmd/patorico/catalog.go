package main

import (
	"context"
	"strings"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"

	"github.com/spf13/cobra"
)

func categoriesCmd() *cobra.Command {
	var txType string

	cmd := &cobra.Command{
		Use:   "categories",
		Short: "List categories",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				items, err := a.ledger.Categories(ctx, domain.TransactionType(strings.ToUpper(txType)))
				if err != nil {
					return err
				}
				printCategories(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&txType, "type", "", "INCOME or OUTCOME (default all)")
	return cmd
}

func expenseTypesCmd() *cobra.Command {
	return goalCatalogCmd("expense-types", "List expense types and their goals",
		func(ctx context.Context, a *app) ([]domain.ExpenseType, error) {
			return a.ledger.ExpenseTypes(ctx)
		})
}

func reservationsCmd() *cobra.Command {
	return goalCatalogCmd("reservations", "List reservations and their goals",
		func(ctx context.Context, a *app) ([]domain.ExpenseType, error) {
			return a.ledger.Reservations(ctx)
		})
}

func goalCatalogCmd(use, short string, list func(ctx context.Context, a *app) ([]domain.ExpenseType, error)) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				items, err := list(ctx, a)
				if err != nil {
					return err
				}
				printExpenseTypes(cmd.OutOrStdout(), items)
				return nil
			})
		},
	}
}
