package main

import (
	"strings"
	"time"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"

	"github.com/spf13/cobra"
)

func dashboardCmd() *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "dashboard",
		Short: "Show month metrics and spending goals",
		Long: `Show income, outcome and total for the period plus spending per category,
expense type and reservation. Defaults to the current month. A card whose
read fails is reported without hiding the others.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := dashboardRange(from, to, time.Now())
			if err != nil {
				return err
			}

			return withApp(func(a *app) error {
				ctx, err := a.signedIn(cmd.Context())
				if err != nil {
					return err
				}
				d, err := a.dashboard.Summary(ctx, r)
				if err != nil {
					return err
				}
				printDashboard(cmd.OutOrStdout(), d)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start date (YYYY-MM-DD, default first day of this month)")
	cmd.Flags().StringVar(&to, "to", "", "end date (YYYY-MM-DD, default last day of this month)")
	return cmd
}

// dashboardRange parses the period flags. Missing bounds default to the
// month of now.
func dashboardRange(from, to string, now time.Time) (domain.DateRange, error) {
	first, last := filter.MonthBounds(now)
	r := domain.DateRange{From: first, To: last}

	verr := &domain.ErrValidation{}
	if s := strings.TrimSpace(from); s != "" {
		d, err := time.ParseInLocation(domain.DateLayout, s, now.Location())
		if err != nil {
			verr.Add("from", "Data inicial inválida")
		}
		r.From = d
	}
	if s := strings.TrimSpace(to); s != "" {
		d, err := time.ParseInLocation(domain.DateLayout, s, now.Location())
		if err != nil {
			verr.Add("to", "Data final inválida")
		}
		r.To = d
	}
	if err := verr.OrNil(); err != nil {
		return domain.DateRange{}, err
	}
	return r, nil
}
