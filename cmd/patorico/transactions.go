package main

import (
	"context"
	"errors"
	"io"
	"strconv"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/service"
	"github.com/boddenberg/pato-rico-bfa/internal/tui"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"tx"},
		Short:   "List, filter and edit transactions",
		Long: `Read and write ledger entries. filter, clear and page change the persisted
ledger query and print the resulting page, like editing the address bar.`,
	}

	cmd.AddCommand(listTransactionsCmd())
	cmd.AddCommand(filterTransactionsCmd())
	cmd.AddCommand(clearTransactionsCmd())
	cmd.AddCommand(pageTransactionsCmd())
	cmd.AddCommand(showTransactionCmd())
	cmd.AddCommand(createTransactionCmd())
	cmd.AddCommand(deleteTransactionCmd())

	return cmd
}

// withLedger runs fn with a signed-in context and the persisted filters.
// Every successful filter mutation is saved as it happens, so a failed read
// afterwards keeps the edit. Rejected input leaves the file untouched.
func withLedger(ctx context.Context, fn func(ctx context.Context, a *app, filters *filter.Synchronizer) error) error {
	return withApp(func(a *app) error {
		ctx, err := a.signedIn(ctx)
		if err != nil {
			return err
		}
		filters, err := a.filters()
		if err != nil {
			return err
		}

		var saveErr error
		unsubscribe := filters.Subscribe(func(filter.State) {
			if err := a.saveFilters(filters); err != nil {
				saveErr = err
			}
		})
		defer unsubscribe()

		if err := fn(ctx, a, filters); err != nil {
			return err
		}
		if saveErr != nil {
			return saveErr
		}
		return a.saveFilters(filters)
	})
}

func showPage(ctx context.Context, w io.Writer, a *app, filters *filter.Synchronizer) error {
	st := filters.State()
	page, err := a.ledger.List(ctx, st)
	if err != nil {
		return err
	}
	printFilterSummary(w, st)
	printLedger(w, view.NewLedger(page))
	return nil
}

func listTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show the current ledger page",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, a *app, filters *filter.Synchronizer) error {
				return showPage(ctx, cmd.OutOrStdout(), a, filters)
			})
		},
	}
}

func filterTransactionsCmd() *cobra.Command {
	var in filter.Input

	cmd := &cobra.Command{
		Use:   "filter",
		Short: "Apply date and category filters",
		Long: `Apply the filter form. Only the flags given change; an empty value
removes that filter. Applying filters goes back to the first page.`,
		Example: `  patorico transactions filter --from 2024-05-01 --to 2024-05-31
  patorico transactions filter --category ""`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, a *app, filters *filter.Synchronizer) error {
				form := filters.Form()
				flags := cmd.Flags()
				if flags.Changed("from") {
					form.InitialDate = in.InitialDate
				}
				if flags.Changed("to") {
					form.EndDate = in.EndDate
				}
				if flags.Changed("category") {
					form.CategoryID = in.CategoryID
				}
				if err := filters.Submit(form); err != nil {
					return err
				}
				return showPage(ctx, cmd.OutOrStdout(), a, filters)
			})
		},
	}

	cmd.Flags().StringVar(&in.InitialDate, "from", "", "initial date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.EndDate, "to", "", "end date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&in.CategoryID, "category", "", "category id")

	return cmd
}

func clearTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Reset filters to the current month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, a *app, filters *filter.Synchronizer) error {
				filters.Clear()
				return showPage(ctx, cmd.OutOrStdout(), a, filters)
			})
		},
	}
}

func pageTransactionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page <n|next|prev>",
		Short: "Go to a ledger page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, a *app, filters *filter.Synchronizer) error {
				index, err := pageIndex(args[0], filters.State().PageIndex)
				if err != nil {
					return err
				}
				if err := filters.Paginate(index); err != nil {
					return err
				}
				return showPage(ctx, cmd.OutOrStdout(), a, filters)
			})
		},
	}
}

// pageIndex turns a 1-based page number, "next" or "prev" into a
// zero-based index.
func pageIndex(arg string, current int) (int, error) {
	switch arg {
	case "next":
		return current + 1, nil
	case "prev":
		return current - 1, nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, domain.NewValidation("page", "Página inválida")
	}
	return n - 1, nil
}

func showTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Show one transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				tx, err := a.ledger.Get(ctx, args[0])
				if err != nil {
					return err
				}
				printTransaction(cmd.OutOrStdout(), tx)
				return nil
			})
		},
	}
}

func createTransactionCmd() *cobra.Command {
	var in service.TransactionInput

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a transaction",
		Example: `  patorico transactions create --name Mercado --date 2024-05-10 --value 123,45 \
    --category c1 --expense-type e1`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.ledger.Create(ctx, in); err != nil {
					if domain.IsUnauthorized(err) || isValidation(err) {
						return err
					}
					printNotification(cmd.ErrOrStderr(), view.Failure(view.MsgTransactionCreateFailed))
					return err
				}
				printNotification(cmd.OutOrStdout(), view.Success(view.MsgTransactionCreated))
				return nil
			})
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&in.Name, "name", "", "name")
	flags.StringVar(&in.Description, "description", "", "description")
	flags.StringVar(&in.Date, "date", "", "date (YYYY-MM-DD)")
	flags.StringVar(&in.Value, "value", "", "value in reais (e.g. 1.234,56)")
	flags.StringVar(&in.Type, "type", "", "INCOME or OUTCOME (default OUTCOME)")
	flags.StringVar(&in.PaymentForm, "payment-form", "", "CREDIT, MONEY, DEBIT or PIX (outcomes default to CREDIT)")
	flags.StringVar(&in.CategoryID, "category", "", "category id")
	flags.StringVar(&in.TypeOfExpenseID, "expense-type", "", "expense type id")

	return cmd
}

func deleteTransactionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a transaction",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				if err := a.ledger.Delete(ctx, args[0]); err != nil {
					if domain.IsUnauthorized(err) || isValidation(err) {
						return err
					}
					printNotification(cmd.ErrOrStderr(), view.Failure(view.MsgTransactionDeleteFailed))
					return err
				}
				printNotification(cmd.OutOrStdout(), view.Success(view.MsgTransactionDeleted))
				return nil
			})
		},
	}
}

func browseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "browse",
		Short: "Browse the ledger interactively",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withLedger(cmd.Context(), func(ctx context.Context, a *app, filters *filter.Synchronizer) error {
				return tui.Run(ctx, a.ledger, filters, func() {
					if err := a.store.Clear(ctx); err != nil {
						a.logger.Warn("failed to clear session file", zap.Error(err))
					}
				})
			})
		},
	}
}

func isValidation(err error) bool {
	var verr *domain.ErrValidation
	return errors.As(err, &verr)
}
