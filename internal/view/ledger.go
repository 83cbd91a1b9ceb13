package view

import (
	"fmt"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
)

// Tone colours an amount.
type Tone string

const (
	TonePositive Tone = "positive"
	ToneNegative Tone = "negative"
)

var paymentFormLabels = map[domain.PaymentForm]string{
	domain.PaymentCredit: "Crédito",
	domain.PaymentMoney:  "Dinheiro",
	domain.PaymentDebit:  "Débito",
	domain.PaymentPix:    "Pix",
}

// PaymentFormLabel returns the pt-BR label of a payment form.
func PaymentFormLabel(p domain.PaymentForm) string {
	if label, ok := paymentFormLabels[p]; ok {
		return label
	}
	return string(p)
}

// TransactionRow is one ledger table line.
type TransactionRow struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Value       string `json:"value"`
	Tone        Tone   `json:"tone"`
	Category    string `json:"category"`
	ExpenseType string `json:"expenseType"`
	Reservation string `json:"reservation,omitempty"`
	Date        string `json:"date"`
	PaymentForm string `json:"paymentForm,omitempty"`
}

// NewTransactionRow renders a transaction. Outcomes are shown with a "- "
// prefix in the negative tone.
func NewTransactionRow(tx domain.Transaction) TransactionRow {
	outcome := tx.Type == domain.TransactionOutcome
	tone := TonePositive
	if outcome {
		tone = ToneNegative
	}

	row := TransactionRow{
		ID:          tx.ID,
		Name:        tx.Name,
		Description: tx.Description,
		Value:       FormatSignedBRL(tx.Value, outcome),
		Tone:        tone,
		Category:    tx.CategoryName,
		Reservation: tx.ReservationName,
		Date:        FormatDate(tx.Date),
	}
	if tx.PaymentForm != "" {
		row.PaymentForm = PaymentFormLabel(tx.PaymentForm)
	}
	if tx.TypeOfExpenseName != "" {
		row.ExpenseType = tx.TypeOfExpenseName
		if tx.TypeOfExpensePercentage != nil {
			row.ExpenseType = fmt.Sprintf("%s - %s%%", tx.TypeOfExpenseName, FormatPercent(*tx.TypeOfExpensePercentage))
		}
	}
	return row
}

// TransactionRows renders a page of transactions.
func TransactionRows(items []domain.Transaction) []TransactionRow {
	rows := make([]TransactionRow, 0, len(items))
	for _, tx := range items {
		rows = append(rows, NewTransactionRow(tx))
	}
	return rows
}

// Pagination drives the pager under the ledger. It is computed from the
// response meta, which is authoritative; Page is the 1-based number shown.
type Pagination struct {
	PageIndex  int    `json:"pageIndex"`
	Page       int    `json:"page"`
	Pages      int    `json:"pages"`
	PerPage    int    `json:"perPage"`
	TotalCount int    `json:"totalCount"`
	HasPrev    bool   `json:"hasPrev"`
	HasNext    bool   `json:"hasNext"`
	Label      string `json:"label"`
	Total      string `json:"total"`
}

// NewPagination builds the pager. An empty result still has one page.
func NewPagination(meta domain.PageMeta) Pagination {
	pages := 1
	if meta.PerPage > 0 && meta.TotalCount > 0 {
		pages = (meta.TotalCount + meta.PerPage - 1) / meta.PerPage
	}
	return Pagination{
		PageIndex:  meta.PageIndex,
		Page:       meta.PageIndex + 1,
		Pages:      pages,
		PerPage:    meta.PerPage,
		TotalCount: meta.TotalCount,
		HasPrev:    meta.PageIndex > 0,
		HasNext:    meta.PageIndex+1 < pages,
		Label:      fmt.Sprintf("Página %d de %d", meta.PageIndex+1, pages),
		Total:      fmt.Sprintf("Total de %d item(s)", meta.TotalCount),
	}
}

// Ledger is the transactions view: rows plus pager.
type Ledger struct {
	Rows       []TransactionRow `json:"rows"`
	Pagination Pagination       `json:"pagination"`
}

// NewLedger renders a page.
func NewLedger(page *domain.Page[domain.Transaction]) Ledger {
	return Ledger{
		Rows:       TransactionRows(page.Items),
		Pagination: NewPagination(page.Meta),
	}
}
