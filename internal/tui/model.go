// Package tui is the interactive ledger browser. It drives the same filter
// synchronizer and query observer as the BFA: every key press that changes
// the view goes through the synchronizer, and fetched pages arrive as
// messages from the observer.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/query"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// LedgerState is what the observer exposes for the active ledger key.
type LedgerState = query.State[*domain.Page[domain.Transaction]]

// Source is the active-key subscription feeding the table.
type Source interface {
	State() LedgerState
	SetKey(key query.Key)
	Refetch()
}

// Deleter removes a transaction.
type Deleter interface {
	Delete(ctx context.Context, id string) error
}

// Mode of the browser.
type Mode int

const (
	ModeBrowse Mode = iota
	ModeFilter
)

const (
	fieldInitialDate = iota
	fieldEndDate
	fieldCategory
	fieldCount
)

var fieldNames = [fieldCount]string{filter.ParamInitialDate, filter.ParamEndDate, filter.ParamCategoryID}

// Config wires a Model.
type Config struct {
	// Context carries the credential scope used for deletes.
	Context context.Context
	Filters *filter.Synchronizer
	Source  Source
	Deleter Deleter
	// Updates receives a value whenever Source has a new state.
	Updates <-chan struct{}
	// OnUnauthorized runs once when the API rejects the credential.
	OnUnauthorized func()
}

// Model is the ledger browser.
type Model struct {
	ctx            context.Context
	filters        *filter.Synchronizer
	source         Source
	deleter        Deleter
	updates        <-chan struct{}
	onUnauthorized func()

	keys   KeyMap
	help   help.Model
	table  table.Model
	inputs [fieldCount]textinput.Model
	focus  int

	mode         Mode
	state        LedgerState
	rows         []view.TransactionRow
	pagination   view.Pagination
	fieldErrors  map[string]string
	notification *view.Notification
	pending      string

	unauthorized bool
	quitting     bool
	width        int
}

// New creates the browser and points the source at the current filters.
// Later filter changes follow through the synchronizer subscription.
func New(cfg Config) Model {
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	t := table.New(
		table.WithColumns(columns(100)),
		table.WithFocused(true),
		table.WithHeight(12),
	)
	t.SetStyles(tableStyles())

	var inputs [fieldCount]textinput.Model
	placeholders := [fieldCount]string{"AAAA-MM-DD", "AAAA-MM-DD", "id da categoria"}
	for i := range inputs {
		in := textinput.New()
		in.Placeholder = placeholders[i]
		in.CharLimit = 64
		inputs[i] = in
	}

	cfg.Filters.Subscribe(func(st filter.State) {
		cfg.Source.SetKey(st.Key())
	})
	cfg.Source.SetKey(cfg.Filters.Key())

	return Model{
		ctx:            ctx,
		filters:        cfg.Filters,
		source:         cfg.Source,
		deleter:        cfg.Deleter,
		updates:        cfg.Updates,
		onUnauthorized: cfg.OnUnauthorized,
		keys:           DefaultKeyMap(),
		help:           help.New(),
		table:          t,
		inputs:         inputs,
		state:          cfg.Source.State(),
		width:          100,
	}
}

func columns(width int) []table.Column {
	name := max(width-74, 16)
	return []table.Column{
		{Title: "Data", Width: 10},
		{Title: "Nome", Width: name},
		{Title: "Valor", Width: 16},
		{Title: "Categoria", Width: 16},
		{Title: "Tipo de gasto", Width: 18},
		{Title: "Pagamento", Width: 10},
	}
}

// Init starts listening for observer updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.listen(), func() tea.Msg { return ledgerChangedMsg{} })
}

func (m Model) listen() tea.Cmd {
	if m.updates == nil {
		return nil
	}
	updates := m.updates
	return func() tea.Msg {
		if _, ok := <-updates; !ok {
			return nil
		}
		return ledgerChangedMsg{}
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.table.SetColumns(columns(msg.Width))
		m.table.SetHeight(max(msg.Height-12, 5))
		return m, nil

	case ledgerChangedMsg:
		m.applyState(m.source.State())
		if m.unauthorized {
			return m.endSession()
		}
		return m, m.listen()

	case deleteDoneMsg:
		m.pending = ""
		if domain.IsUnauthorized(msg.err) {
			m.unauthorized = true
			return m.endSession()
		}
		if msg.err != nil {
			note := view.Failure(view.MsgTransactionDeleteFailed)
			m.notification = &note
			return m, nil
		}
		note := view.Success(view.MsgTransactionDeleted)
		m.notification = &note
		return m, nil

	case tea.KeyMsg:
		if m.mode == ModeFilter {
			return m.updateFilter(msg)
		}
		return m.updateBrowse(msg)
	}
	return m, nil
}

func (m Model) endSession() (tea.Model, tea.Cmd) {
	if m.onUnauthorized != nil {
		m.onUnauthorized()
	}
	m.quitting = true
	return m, tea.Quit
}

// applyState copies the observer state into the table. The table always
// shows the active key's data or nothing.
func (m *Model) applyState(st LedgerState) {
	m.state = st
	if domain.IsUnauthorized(st.Err) {
		m.unauthorized = true
	}

	if !st.HasData || st.Data == nil {
		m.rows = nil
		m.pagination = view.Pagination{}
		m.table.SetRows(nil)
		return
	}

	ledger := view.NewLedger(st.Data)
	m.rows = ledger.Rows
	m.pagination = ledger.Pagination

	rows := make([]table.Row, 0, len(ledger.Rows))
	for _, r := range ledger.Rows {
		rows = append(rows, table.Row{r.Date, r.Name, r.Value, r.Category, r.ExpenseType, r.PaymentForm})
	}
	m.table.SetRows(rows)
	if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m Model) updateBrowse(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit

	case key.Matches(msg, m.keys.NextPage):
		if m.pagination.HasNext {
			m.notification = nil
			_ = m.filters.Paginate(m.filters.State().PageIndex + 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.PrevPage):
		if idx := m.filters.State().PageIndex; idx > 0 {
			m.notification = nil
			_ = m.filters.Paginate(idx - 1)
		}
		return m, nil

	case key.Matches(msg, m.keys.Filter):
		m.openFilterForm()
		return m, textinput.Blink

	case key.Matches(msg, m.keys.Clear):
		m.notification = nil
		m.filters.Clear()
		return m, nil

	case key.Matches(msg, m.keys.Refresh):
		m.source.Refetch()
		return m, nil

	case key.Matches(msg, m.keys.Delete):
		return m.startDelete()
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m Model) startDelete() (tea.Model, tea.Cmd) {
	if m.pending != "" || m.deleter == nil {
		return m, nil
	}
	idx := m.table.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return m, nil
	}

	id := m.rows[idx].ID
	m.pending = id
	m.notification = nil
	ctx, deleter := m.ctx, m.deleter
	return m, func() tea.Msg {
		return deleteDoneMsg{id: id, err: deleter.Delete(ctx, id)}
	}
}

func (m *Model) openFilterForm() {
	form := m.filters.Form()
	m.inputs[fieldInitialDate].SetValue(form.InitialDate)
	m.inputs[fieldEndDate].SetValue(form.EndDate)
	m.inputs[fieldCategory].SetValue(form.CategoryID)
	m.fieldErrors = nil
	m.mode = ModeFilter
	m.focusField(fieldInitialDate)
}

func (m *Model) focusField(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
		} else {
			m.inputs[j].Blur()
		}
	}
}

func (m Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Cancel):
		m.mode = ModeBrowse
		m.fieldErrors = nil
		return m, nil

	case key.Matches(msg, m.keys.NextField):
		step := 1
		if msg.String() == "shift+tab" {
			step = fieldCount - 1
		}
		m.focusField((m.focus + step) % fieldCount)
		return m, nil

	case key.Matches(msg, m.keys.Submit):
		err := m.filters.Submit(filter.Input{
			InitialDate: m.inputs[fieldInitialDate].Value(),
			EndDate:     m.inputs[fieldEndDate].Value(),
			CategoryID:  m.inputs[fieldCategory].Value(),
		})
		var verr *domain.ErrValidation
		if errors.As(err, &verr) {
			m.fieldErrors = verr.Fields
			return m, nil
		}
		m.fieldErrors = nil
		m.notification = nil
		m.mode = ModeBrowse
		return m, nil
	}

	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	sections := []string{titleStyle.Render("Pato Rico · Transações"), m.filterSummary()}

	if m.mode == ModeFilter {
		sections = append(sections, m.filterForm())
	}

	switch {
	case m.state.IsLoading:
		sections = append(sections, mutedStyle.Render("Carregando..."))
	case m.state.Err != nil && !m.state.HasData:
		sections = append(sections, errorStyle.Render(view.MsgReadFailed))
	default:
		sections = append(sections, m.table.View(), m.footer())
	}

	if m.pending != "" {
		sections = append(sections, mutedStyle.Render("Excluindo..."))
	}
	if m.notification != nil {
		style := successStyle
		if m.notification.Level == view.LevelError {
			style = errorStyle
		}
		sections = append(sections, style.Render(m.notification.Message))
	}

	bindings := m.keys.browseHelp()
	if m.mode == ModeFilter {
		bindings = m.keys.filterHelp()
	}
	sections = append(sections, m.help.ShortHelpView(bindings))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) filterSummary() string {
	st := m.filters.State()
	category := "todas"
	if st.CategoryID != "" {
		category = st.CategoryID
	}
	return mutedStyle.Render(fmt.Sprintf("De %s até %s · Categoria: %s",
		st.InitialDate.Format("02/01/2006"), st.EndDate.Format("02/01/2006"), category))
}

func (m Model) filterForm() string {
	labels := [fieldCount]string{"Data inicial", "Data final", "Categoria"}
	lines := make([]string, 0, fieldCount*2)
	for i := range m.inputs {
		lines = append(lines, labelStyle.Render(labels[i])+m.inputs[i].View())
		if msg, ok := m.fieldErrors[fieldNames[i]]; ok {
			lines = append(lines, errorStyle.Render(strings.Repeat(" ", 14)+msg))
		}
	}
	return boxStyle.Render(strings.Join(lines, "\n"))
}

func (m Model) footer() string {
	if m.pagination.Pages == 0 {
		return ""
	}
	return mutedStyle.Render(m.pagination.Total + " · " + m.pagination.Label)
}

// Unauthorized reports whether the session ended because the API rejected
// the credential.
func (m Model) Unauthorized() bool {
	return m.unauthorized
}
