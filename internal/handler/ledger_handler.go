package handler

import (
	"net/http"
	"strings"

	"github.com/boddenberg/pato-rico-bfa/internal/domain"
	"github.com/boddenberg/pato-rico-bfa/internal/filter"
	"github.com/boddenberg/pato-rico-bfa/internal/service"
	"github.com/boddenberg/pato-rico-bfa/internal/view"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// ============================================================
// Ledger Handlers
// ============================================================

// transactionsPath is the canonical URL of the ledger view.
const transactionsPath = "/v1/transactions"

type ledgerResponse struct {
	Query   string       `json:"query"`
	Filters filter.Input `json:"filters"`
	view.Ledger
}

type filterErrorResponse struct {
	errorResponse
	Filters filter.Input `json:"filters"`
}

type writeResponse struct {
	Notification view.Notification `json:"notification"`
}

type transactionResponse struct {
	Transaction *domain.Transaction `json:"transaction"`
	Row         view.TransactionRow `json:"row"`
}

func ledgerLocation(s *filter.Synchronizer) string {
	return transactionsPath + "?" + s.Encode()
}

func listTransactionsHandler(ledger *service.Ledger, opts filter.Options, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions")
		defer span.End()

		s := filter.New(r.URL.RawQuery, opts)
		st := s.State()
		span.SetAttributes(
			attribute.String("filter.category_id", st.CategoryID),
			attribute.Int("filter.page_index", st.PageIndex),
		)

		page, err := ledger.List(ctx, st)
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, ledgerResponse{
			Query:   s.Encode(),
			Filters: s.Form(),
			Ledger:  view.NewLedger(page),
		})
	}
}

// submitFiltersHandler applies the filter form to the query string of the
// request and redirects to the resulting ledger URL.
func submitFiltersHandler(opts filter.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in filter.Input
		if !decodeJSON(w, r, &in) {
			return
		}

		s := filter.New(r.URL.RawQuery, opts)
		if err := s.Submit(in); err != nil {
			fields := map[string]string{}
			if verr, ok := err.(*domain.ErrValidation); ok {
				fields = verr.Fields
			}
			writeJSON(w, http.StatusUnprocessableEntity, filterErrorResponse{
				errorResponse: errorResponse{Error: err.Error(), Fields: fields},
				Filters:       s.Form(),
			})
			return
		}
		seeOther(w, ledgerLocation(s))
	}
}

func clearFiltersHandler(opts filter.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s := filter.New(r.URL.RawQuery, opts)
		s.Clear()
		seeOther(w, ledgerLocation(s))
	}
}

func paginateHandler(opts filter.Options) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			PageIndex int `json:"pageIndex"`
		}
		if !decodeJSON(w, r, &req) {
			return
		}

		s := filter.New(r.URL.RawQuery, opts)
		if err := s.Paginate(req.PageIndex); err != nil {
			body := errorResponse{Error: err.Error()}
			if verr, ok := err.(*domain.ErrValidation); ok {
				body.Fields = verr.Fields
			}
			writeJSON(w, http.StatusUnprocessableEntity, body)
			return
		}
		seeOther(w, ledgerLocation(s))
	}
}

func getTransactionHandler(ledger *service.Ledger, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/transactions/{id}")
		defer span.End()

		tx, err := ledger.Get(ctx, chi.URLParam(r, "id"))
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, transactionResponse{Transaction: tx, Row: view.NewTransactionRow(*tx)})
	}
}

func createTransactionHandler(ledger *service.Ledger, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/transactions")
		defer span.End()

		var in service.TransactionInput
		if !decodeJSON(w, r, &in) {
			return
		}

		if err := ledger.Create(ctx, in); err != nil {
			handleWriteError(w, r, err, ic, logger, view.MsgTransactionCreateFailed)
			return
		}
		writeJSON(w, http.StatusCreated, writeResponse{Notification: view.Success(view.MsgTransactionCreated)})
	}
}

func deleteTransactionHandler(ledger *service.Ledger, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "DELETE /v1/transactions/{id}")
		defer span.End()

		if err := ledger.Delete(ctx, chi.URLParam(r, "id")); err != nil {
			handleWriteError(w, r, err, ic, logger, view.MsgTransactionDeleteFailed)
			return
		}
		writeJSON(w, http.StatusOK, writeResponse{Notification: view.Success(view.MsgTransactionDeleted)})
	}
}

// ============================================================
// Catalog Handlers
// ============================================================

func listCategoriesHandler(ledger *service.Ledger, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/categories")
		defer span.End()

		txType := domain.TransactionType(strings.ToUpper(r.URL.Query().Get("type")))
		categories, err := ledger.Categories(ctx, txType)
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, categories)
	}
}

func listExpenseTypesHandler(ledger *service.Ledger, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/expense-types")
		defer span.End()

		types, err := ledger.ExpenseTypes(ctx)
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, types)
	}
}

func listReservationsHandler(ledger *service.Ledger, ic *Interceptor, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/reservations")
		defer span.End()

		reservations, err := ledger.Reservations(ctx)
		if err != nil {
			handleServiceError(w, r, err, ic, logger)
			return
		}
		writeJSON(w, http.StatusOK, reservations)
	}
}
