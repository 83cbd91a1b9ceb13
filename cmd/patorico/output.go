package main

import (
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#2E7D32"))
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E7D32"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C62828"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	successStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#2E7D32"))
	errorStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#C62828"))
)

// printError renders a command failure for humans.
func printError(w io.Writer, err error) {
	var verr *domain.ErrValidation
	var unauthorized *domain.ErrUnauthorized
	switch {
	case errors.As(err, &verr):
		fields := make([]string, 0, len(verr.Fields))
		for f := range verr.Fields {
			fields = append(fields, f)
		}
		sort.Strings(fields)
		for _, f := range fields {
			fmt.Fprintf(w, "%s %s\n", errorStyle.Render(f+":"), verr.Fields[f])
		}
	case errors.As(err, &unauthorized) && unauthorized.Message != "":
		fmt.Fprintln(w, errorStyle.Render(unauthorized.Message))
	case domain.IsUnauthorized(err):
		fmt.Fprintln(w, errorStyle.Render(view.MsgSessionExpired))
	default:
		fmt.Fprintln(w, errorStyle.Render("Erro:"), err)
	}
}

func printNotification(w io.Writer, n view.Notification) {
	if n.Level == view.LevelError {
		fmt.Fprintln(w, errorStyle.Render(n.Message))
		return
	}
	fmt.Fprintln(w, successStyle.Render(n.Message))
}

func toneStyle(t view.Tone) lipgloss.Style {
	if t == view.ToneNegative {
		return negativeStyle
	}
	return positiveStyle
}

func printFilterSummary(w io.Writer, st filter.State) {
	category := "todas"
	if st.CategoryID != "" {
		category = st.CategoryID
	}
	fmt.Fprintln(w, mutedStyle.Render(fmt.Sprintf("De %s até %s · Categoria: %s",
		st.InitialDate.Format("02/01/2006"), st.EndDate.Format("02/01/2006"), category)))
}

func printLedger(w io.Writer, ledger view.Ledger) {
	if len(ledger.Rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("Nenhuma transação encontrada."))
	} else {
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			headerStyle.Render("ID"),
			headerStyle.Render("Data"),
			headerStyle.Render("Nome"),
			headerStyle.Render("Valor"),
			headerStyle.Render("Categoria"),
			headerStyle.Render("Tipo de gasto"),
			headerStyle.Render("Pagamento"))
		for _, r := range ledger.Rows {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				r.ID, r.Date, r.Name, toneStyle(r.Tone).Render(r.Value), r.Category, r.ExpenseType, r.PaymentForm)
		}
		_ = tw.Flush()
	}
	fmt.Fprintln(w, mutedStyle.Render(ledger.Pagination.Total+" · "+ledger.Pagination.Label))
}

func printTransaction(w io.Writer, tx *domain.Transaction) {
	row := view.NewTransactionRow(*tx)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fields := [][2]string{
		{"ID", row.ID},
		{"Nome", row.Name},
		{"Descrição", row.Description},
		{"Data", row.Date},
		{"Valor", toneStyle(row.Tone).Render(row.Value)},
		{"Categoria", row.Category},
		{"Tipo de gasto", row.ExpenseType},
		{"Reserva", row.Reservation},
		{"Pagamento", row.PaymentForm},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\n", headerStyle.Render(f[0]), f[1])
	}
	_ = tw.Flush()
}

func printDashboard(w io.Writer, d *view.Dashboard) {
	for _, card := range []view.MetricCard{d.Income, d.Outcome, d.Total} {
		printCard(w, card)
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, headerStyle.Render(d.OutcomeByCategory.Title))
	switch {
	case d.OutcomeByCategory.State == view.CardError:
		fmt.Fprintln(w, "  "+errorStyle.Render(d.OutcomeByCategory.Error))
	case len(d.OutcomeByCategory.Slices) == 0:
		fmt.Fprintln(w, "  "+mutedStyle.Render("Sem gastos no período"))
	default:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, s := range d.OutcomeByCategory.Slices {
			fmt.Fprintf(tw, "  %s\t%s\n", s.Category, s.Label)
		}
		_ = tw.Flush()
	}

	for _, chart := range []view.GoalChart{d.OutcomeByExpenseType, d.OutcomeByReservation} {
		fmt.Fprintln(w)
		printGoalChart(w, chart)
	}
}

func printCard(w io.Writer, c view.MetricCard) {
	title := c.Title
	switch c.Trend {
	case view.TrendUp:
		title += " ↑"
	case view.TrendDown:
		title += " ↓"
	}
	if c.State == view.CardError {
		fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(title), errorStyle.Render(c.Error))
		return
	}
	fmt.Fprintf(w, "%s  %s\n", headerStyle.Render(title), toneStyle(c.Tone).Render(c.Value))
}

func printGoalChart(w io.Writer, c view.GoalChart) {
	fmt.Fprintln(w, headerStyle.Render(c.Title))
	if c.State == view.CardError {
		fmt.Fprintln(w, "  "+errorStyle.Render(c.Error))
		return
	}
	if len(c.Bars) == 0 {
		fmt.Fprintln(w, "  "+mutedStyle.Render("Nenhuma meta cadastrada"))
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for _, b := range c.Bars {
		value := b.ValueLabel
		if b.Over {
			value = negativeStyle.Render(value)
		}
		fmt.Fprintf(tw, "  %s\t%s\t%s\n", b.Name, value, mutedStyle.Render("meta "+b.MetaLabel))
	}
	_ = tw.Flush()
}

func printCategories(w io.Writer, items []domain.Category) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("Nenhuma categoria encontrada."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\n", headerStyle.Render("ID"), headerStyle.Render("Nome"), headerStyle.Render("Descrição"))
	for _, c := range items {
		desc := c.Description
		if desc == "" {
			desc = mutedStyle.Render("(sem descrição)")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", c.ID, c.Name, desc)
	}
	_ = tw.Flush()
}

func printExpenseTypes(w io.Writer, items []domain.ExpenseType) {
	if len(items) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("Nenhum item encontrado."))
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", headerStyle.Render("ID"), headerStyle.Render("Nome"),
		headerStyle.Render("Percentual"), headerStyle.Render("Meta"))
	for _, e := range items {
		percent, goal := "-", "-"
		if e.Percentage != nil {
			percent = view.FormatPercent(*e.Percentage) + "%"
		}
		if e.GoalValue != nil {
			goal = view.FormatBRL(int64(*e.GoalValue))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.ID, e.Name, percent, goal)
	}
	_ = tw.Flush()
}

func printProfile(w io.Writer, p *domain.Profile) {
	lines := []string{headerStyle.Render(p.Name), p.Email}
	if p.Phone != "" {
		lines = append(lines, p.Phone)
	}
	fmt.Fprintln(w, strings.Join(lines, "\n"))
}
