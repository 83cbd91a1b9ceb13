package view

import (
	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

// CardState is the lifecycle of a dashboard card.
type CardState string

const (
	CardLoading CardState = "loading"
	CardReady   CardState = "ready"
	CardError   CardState = "error"
)

// Trend is the arrow next to a card title.
type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

// Card titles.
const (
	TitleIncome               = "Receita (mês)"
	TitleOutcome              = "Saída"
	TitleTotal                = "Total"
	TitleOutcomeByCategory    = "Gasto por Categoria"
	TitleOutcomeByExpenseType = "Saida e metas por tipo de gasto"
	TitleOutcomeByReservation = "Saída e metas por tipo de reserva"
)

// readFailedMessage replaces a card's body when its read failed.
const readFailedMessage = "Não foi possível carregar"

// MetricCard is a single-amount card.
type MetricCard struct {
	Title string    `json:"title"`
	State CardState `json:"state"`
	Value string    `json:"value,omitempty"`
	Cents int64     `json:"cents"`
	Tone  Tone      `json:"tone,omitempty"`
	Trend Trend     `json:"trend,omitempty"`
	Error string    `json:"error,omitempty"`
}

// LoadingCard is a card whose read has not finished.
func LoadingCard(title string) MetricCard {
	return MetricCard{Title: title, State: CardLoading}
}

// FailedCard is a card whose read failed; the rest of the page still renders.
func FailedCard(title string) MetricCard {
	return MetricCard{Title: title, State: CardError, Error: readFailedMessage}
}

// IncomeCard renders month income.
func IncomeCard(a domain.MonthAmount) MetricCard {
	return MetricCard{
		Title: TitleIncome,
		State: CardReady,
		Value: FormatBRL(int64(a.Amount)),
		Cents: int64(a.Amount),
		Tone:  TonePositive,
		Trend: TrendUp,
	}
}

// OutcomeCard renders month outcome.
func OutcomeCard(a domain.MonthAmount) MetricCard {
	return MetricCard{
		Title: TitleOutcome,
		State: CardReady,
		Value: FormatBRL(int64(a.Amount)),
		Cents: int64(a.Amount),
		Tone:  ToneNegative,
		Trend: TrendDown,
	}
}

// TotalCard renders the month balance: positive balances go up, anything
// else is shown with "- " in the negative tone.
func TotalCard(a domain.MonthAmount) MetricCard {
	cents := int64(a.Amount)
	card := MetricCard{
		Title: TitleTotal,
		State: CardReady,
		Cents: cents,
		Tone:  TonePositive,
		Trend: TrendUp,
	}
	if cents <= 0 {
		card.Tone = ToneNegative
		card.Trend = TrendDown
	}
	card.Value = FormatSignedBRL(cents, cents < 0)
	return card
}

// Slice is one pie slice.
type Slice struct {
	Category string `json:"category"`
	Amount   int64  `json:"amount"`
	Label    string `json:"label"`
	Fill     string `json:"fill,omitempty"`
}

// PieChart is the outcome-by-category card. Config is passed through to the
// chart library untouched.
type PieChart struct {
	Title  string         `json:"title"`
	State  CardState      `json:"state"`
	Slices []Slice        `json:"slices"`
	Config map[string]any `json:"config,omitempty"`
	Error  string         `json:"error,omitempty"`
}

// NewPieChart renders the category breakdown.
func NewPieChart(b domain.CategoryBreakdown) PieChart {
	slices := make([]Slice, 0, len(b.Result))
	for _, s := range b.Result {
		slices = append(slices, Slice{
			Category: s.Category,
			Amount:   int64(s.Amount),
			Label:    FormatBRL(int64(s.Amount)),
			Fill:     s.Fill,
		})
	}
	return PieChart{Title: TitleOutcomeByCategory, State: CardReady, Slices: slices, Config: b.Config}
}

// Bar is one spent-versus-goal pair.
type Bar struct {
	Name       string `json:"name"`
	Value      int64  `json:"value"`
	Meta       int64  `json:"meta"`
	ValueLabel string `json:"valueLabel"`
	MetaLabel  string `json:"metaLabel"`
	Over       bool   `json:"over"`
}

// Series names one bar series for the chart legend.
type Series struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// GoalChart is a spent-versus-goal bar chart.
type GoalChart struct {
	Title  string    `json:"title"`
	State  CardState `json:"state"`
	Series []Series  `json:"series"`
	Bars   []Bar     `json:"bars"`
	Error  string    `json:"error,omitempty"`
}

// ExpenseTypeChart renders outcome versus goal per expense type.
func ExpenseTypeChart(items []domain.GoalProgress) GoalChart {
	return newGoalChart(TitleOutcomeByExpenseType, "Gasto", items)
}

// ReservationChart renders outcome versus goal per reservation.
func ReservationChart(items []domain.GoalProgress) GoalChart {
	return newGoalChart(TitleOutcomeByReservation, "Saida", items)
}

func newGoalChart(title, valueLabel string, items []domain.GoalProgress) GoalChart {
	bars := make([]Bar, 0, len(items))
	for _, g := range items {
		bars = append(bars, Bar{
			Name:       g.Name,
			Value:      int64(g.Value),
			Meta:       int64(g.Meta),
			ValueLabel: FormatBRL(int64(g.Value)),
			MetaLabel:  FormatBRL(int64(g.Meta)),
			Over:       g.Meta > 0 && g.Value > g.Meta,
		})
	}
	return GoalChart{
		Title:  title,
		State:  CardReady,
		Series: []Series{{Key: "value", Label: valueLabel}, {Key: "meta", Label: "Meta"}},
		Bars:   bars,
	}
}

// FailedPieChart is the category card after a failed read.
func FailedPieChart() PieChart {
	return PieChart{Title: TitleOutcomeByCategory, State: CardError, Slices: []Slice{}, Error: readFailedMessage}
}

// FailedGoalChart is a goal card after a failed read.
func FailedGoalChart(title string) GoalChart {
	return GoalChart{Title: title, State: CardError, Bars: []Bar{}, Error: readFailedMessage}
}

// Dashboard is the whole dashboard page.
type Dashboard struct {
	Income               MetricCard `json:"income"`
	Outcome              MetricCard `json:"outcome"`
	Total                MetricCard `json:"total"`
	OutcomeByCategory    PieChart   `json:"outcomeByCategory"`
	OutcomeByExpenseType GoalChart  `json:"outcomeByExpenseType"`
	OutcomeByReservation GoalChart  `json:"outcomeByReservation"`
}
