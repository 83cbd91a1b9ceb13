package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used on the wire and in URLs.
const DateLayout = "2006-01-02"

// ============================================================
// Transactions
// ============================================================

// TransactionType tells whether money came in or went out.
type TransactionType string

const (
	TransactionIncome  TransactionType = "INCOME"
	TransactionOutcome TransactionType = "OUTCOME"
)

// Valid reports whether t is a known transaction type.
func (t TransactionType) Valid() bool {
	return t == TransactionIncome || t == TransactionOutcome
}

// PaymentForm is how an outcome was paid.
type PaymentForm string

const (
	PaymentCredit PaymentForm = "CREDIT"
	PaymentMoney  PaymentForm = "MONEY"
	PaymentDebit  PaymentForm = "DEBIT"
	PaymentPix    PaymentForm = "PIX"
)

// Valid reports whether p is a known payment form.
func (p PaymentForm) Valid() bool {
	switch p {
	case PaymentCredit, PaymentMoney, PaymentDebit, PaymentPix:
		return true
	}
	return false
}

// Transaction is a ledger entry owned by the remote API.
// Value is in minor currency units (centavos).
type Transaction struct {
	ID                   string          `json:"id"`
	Name                 string          `json:"name"`
	Description          string          `json:"description,omitempty"`
	Date                 string          `json:"date"`
	Value                int64           `json:"value"`
	Type                 TransactionType `json:"type"`
	PaymentForm          PaymentForm     `json:"paymentForm,omitempty"`
	CategoryID           string          `json:"categoryId,omitempty"`
	CategoryName         string          `json:"categoryName,omitempty"`
	ReservationID        string          `json:"reservationId,omitempty"`
	ReservationName      string          `json:"reservationName,omitempty"`
	ReservationGoalValue *Cents          `json:"reservationGoalValue,omitempty"`

	TypeOfExpenseName       string   `json:"typeOfExpenseName,omitempty"`
	TypeOfExpensePercentage *Percent `json:"typeOfExpensePercentage,omitempty"`
}

// UnmarshalJSON accepts the field names seen across the API's list and
// detail endpoints (category/categoryName, reservation/reservationName,
// typeOfExpense, resevation* misspellings) and folds them into one shape.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	type plain Transaction
	var aux struct {
		plain
		Description         *string `json:"description"`
		Category            string  `json:"category"`
		Reservation         string  `json:"reservation"`
		ResevationName      string  `json:"resevationName"`
		ResevationGoalValue *Cents  `json:"resevationGoalValue"`
		TypeOfExpense       string  `json:"typeOfExpense"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*t = Transaction(aux.plain)
	if aux.Description != nil {
		t.Description = *aux.Description
	}
	if t.CategoryName == "" {
		t.CategoryName = aux.Category
	}
	if t.ReservationName == "" {
		t.ReservationName = firstNonEmpty(aux.Reservation, aux.ResevationName)
	}
	if t.TypeOfExpenseName == "" {
		t.TypeOfExpenseName = aux.TypeOfExpense
	}
	if t.ReservationGoalValue == nil {
		t.ReservationGoalValue = aux.ResevationGoalValue
	}
	return nil
}

// CreateTransactionRequest is the body of POST /transactions.
type CreateTransactionRequest struct {
	Name            string          `json:"name"`
	Description     string          `json:"description,omitempty"`
	Date            string          `json:"date"`
	Value           int64           `json:"value"`
	Type            TransactionType `json:"type"`
	CategoryID      string          `json:"categoryId"`
	PaymentForm     PaymentForm     `json:"paymentForm,omitempty"`
	TypeOfExpenseID string          `json:"typeOfExpenseId,omitempty"`
}

// TransactionQuery carries the list filters sent upstream.
// PageIndex is zero-based.
type TransactionQuery struct {
	InitialDate string
	EndDate     string
	CategoryID  string
	PageIndex   int
}

// ============================================================
// Catalogs
// ============================================================

// Category groups transactions; read-only from the client's perspective.
type Category struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	ReservationName string `json:"reservationName,omitempty"`
}

// ExpenseType is a spending bucket with a goal, also served as "reservation".
type ExpenseType struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description,omitempty"`
	Percentage  *Percent `json:"percentage,omitempty"`
	GoalValue   *Cents   `json:"goalValue,omitempty"`
}

// ============================================================
// Pagination
// ============================================================

// PageMeta is the server-authoritative pagination block.
type PageMeta struct {
	PageIndex  int `json:"pageIndex"`
	PerPage    int `json:"perPage"`
	TotalCount int `json:"totalCount"`
}

// Page is the uniform paged envelope.
type Page[T any] struct {
	Items []T      `json:"items"`
	Meta  PageMeta `json:"meta"`
}

// ============================================================
// Profile & session
// ============================================================

// Profile is the signed-in user.
type Profile struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
	Role  string `json:"role,omitempty"`
}

// SignInRequest is the body of POST /sessions/password.
type SignInRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignInResponse carries the bearer token.
type SignInResponse struct {
	Token string `json:"token"`
}

// ============================================================
// Dashboard metrics
// ============================================================

// Month metric names served under /metrics/.
const (
	MetricIncome  = "month-transaction-income"
	MetricOutcome = "month-transaction-outcome"
	MetricTotal   = "month-transaction-total"

	MetricOutcomeCategory      = "month-transaction-outcome-category"
	MetricOutcomeTypeOfExpense = "month-transaction-outcome-type-of-expense"
	MetricOutcomeReservation   = "month-transaction-outcome-reservation"
)

// DateRange bounds a metric query. Zero values are omitted upstream.
type DateRange struct {
	From time.Time
	To   time.Time
}

// MonthAmount is the response of the scalar month metrics.
type MonthAmount struct {
	Amount Cents `json:"amount"`
}

// CategoryShare is one slice of the outcome-by-category chart.
type CategoryShare struct {
	Category string `json:"category"`
	Amount   Cents  `json:"amount"`
	Fill     string `json:"fill,omitempty"`
}

// CategoryBreakdown is the outcome-by-category response.
type CategoryBreakdown struct {
	Result []CategoryShare `json:"result"`
	Config map[string]any  `json:"config,omitempty"`
}

// GoalProgress is one bar of the spent-versus-goal charts.
type GoalProgress struct {
	Name  string `json:"name"`
	Value Cents  `json:"value"`
	Meta  Cents  `json:"meta"`
}

// UnmarshalJSON also accepts the older "valor" spelling of value.
func (g *GoalProgress) UnmarshalJSON(data []byte) error {
	var aux struct {
		Name  string `json:"name"`
		Value *Cents `json:"value"`
		Valor *Cents `json:"valor"`
		Meta  Cents  `json:"meta"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	g.Name = aux.Name
	g.Meta = aux.Meta
	switch {
	case aux.Value != nil:
		g.Value = *aux.Value
	case aux.Valor != nil:
		g.Value = *aux.Valor
	default:
		g.Value = 0
	}
	return nil
}

// ============================================================
// Money
// ============================================================

// Cents is an integer amount of minor currency units. The API sends it
// either as a JSON number or as a numeric string.
type Cents int64

// UnmarshalJSON accepts 150000, "150000" and "1500.5".
func (c *Cents) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	s := strings.Trim(string(data), `"`)
	if s == "" {
		*c = 0
		return nil
	}
	if v, err := strconv.ParseInt(s, 10, 64); err == nil {
		*c = Cents(v)
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid amount %q", s)
	}
	*c = Cents(int64(f))
	return nil
}

// Percent is a share in percent points, sent as a number or a string.
type Percent float64

// UnmarshalJSON accepts 30, 12.5 and "30".
func (p *Percent) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	s := strings.Trim(string(data), `"`)
	if s == "" || s == "null" {
		*p = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid percentage %q", s)
	}
	*p = Percent(f)
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
