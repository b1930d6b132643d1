package handlers

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/ledgerbook/backend/internal/models"
	"github.com/ledgerbook/backend/internal/services"
	"github.com/ledgerbook/backend/internal/store"
	"github.com/shopspring/decimal"
)

type TransactionHandler struct {
	service   *services.LedgerService
	validator *services.ValidationHelper
}

func NewTransactionHandler(service *services.LedgerService) *TransactionHandler {
	return &TransactionHandler{
		service:   service,
		validator: services.NewValidationHelper(),
	}
}

// PostTransactionRequest represents a proposed transaction
// @Description Transaction posting request
type PostTransactionRequest struct {
	TransactionDate string            `json:"transactionDate" validate:"required" example:"2024-01-15"`
	Description     *string           `json:"description,omitempty" example:"January rent"`
	Lines           []PostLineRequest `json:"lines"`
}

// PostLineRequest is one proposed entry line. Amount accepts a JSON number
// or a decimal string.
type PostLineRequest struct {
	AccountID string      `json:"accountId"`
	PartnerID *string     `json:"partnerId,omitempty"`
	Side      string      `json:"side" enums:"Debit,Credit" example:"Debit"`
	Amount    json.Number `json:"amount" swaggertype:"string" example:"100.00"`
	Memo      *string     `json:"memo,omitempty"`
}

// TransactionResponse is a posted transaction with amounts as 2-dp strings
// @Description Posted transaction
type TransactionResponse struct {
	ID              int64               `json:"id"`
	TransactionDate models.Date         `json:"transactionDate" swaggertype:"string" example:"2024-01-15"`
	Description     *string             `json:"description,omitempty"`
	CreatedByUserID *string             `json:"createdByUserId,omitempty"`
	DebitTotal      string              `json:"debitTotal" example:"100.00"`
	CreditTotal     string              `json:"creditTotal" example:"100.00"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	Lines           []EntryLineResponse `json:"lines"`
}

type EntryLineResponse struct {
	ID         string      `json:"id"`
	LineNumber int         `json:"lineNumber"`
	AccountID  string      `json:"accountId"`
	PartnerID  *string     `json:"partnerId,omitempty"`
	Side       models.Side `json:"side" swaggertype:"string" enums:"Debit,Credit"`
	Amount     string      `json:"amount" example:"100.00"`
	Memo       *string     `json:"memo,omitempty"`
}

// TransactionListResponse is one page of transactions. Next is the cursor
// of the following page and is absent on the last one.
type TransactionListResponse struct {
	Transactions []TransactionResponse `json:"transactions"`
	Next         string                `json:"next,omitempty"`
}

func newTransactionResponse(t *models.Transaction) TransactionResponse {
	debit, credit := t.Totals()
	resp := TransactionResponse{
		ID:              t.ID,
		TransactionDate: t.TransactionDate,
		Description:     t.Description,
		CreatedByUserID: t.CreatedByUserID,
		DebitTotal:      debit.StringFixed(models.AmountScale),
		CreditTotal:     credit.StringFixed(models.AmountScale),
		CreatedAt:       t.CreatedAt,
		UpdatedAt:       t.UpdatedAt,
		Lines:           make([]EntryLineResponse, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		resp.Lines = append(resp.Lines, EntryLineResponse{
			ID:         l.ID,
			LineNumber: l.LineNumber,
			AccountID:  l.AccountID,
			PartnerID:  l.PartnerID,
			Side:       l.Side,
			Amount:     l.Amount.StringFixed(models.AmountScale),
			Memo:       l.Memo,
		})
	}
	return resp
}

func (req *PostTransactionRequest) toInput(userID string) (services.PostTransactionInput, error) {
	date, err := models.ParseDate(strings.TrimSpace(req.TransactionDate))
	if err != nil {
		return services.PostTransactionInput{}, &services.ValidationError{Field: "transactionDate", Message: "is not a valid date"}
	}

	in := services.PostTransactionInput{
		TransactionDate: date,
		Description:     req.Description,
		CreatedByUserID: &userID,
		Lines:           make([]services.PostLine, 0, len(req.Lines)),
	}
	for i, l := range req.Lines {
		// Unknown sides are left zero and rejected by the ledger.
		side, _ := models.ParseSide(l.Side)
		amount, err := decimal.NewFromString(l.Amount.String())
		if err != nil {
			return services.PostTransactionInput{}, &services.ValidationError{
				Field:   fmt.Sprintf("lines[%d].amount", i),
				Message: "is not a decimal number",
			}
		}
		in.Lines = append(in.Lines, services.PostLine{
			AccountID: l.AccountID,
			PartnerID: l.PartnerID,
			Side:      side,
			Amount:    amount,
			Memo:      l.Memo,
		})
	}
	return in, nil
}

// PostTransaction records a balanced transaction
// @Summary Post transaction
// @Description Validate and persist a double-entry transaction with all its lines
// @Tags Transactions
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body PostTransactionRequest true "Transaction"
// @Success 201 {object} TransactionResponse
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions [post]
func (h *TransactionHandler) PostTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	var req PostTransactionRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "Validation failed", http.StatusBadRequest, err)
		return
	}

	in, err := req.toInput(id.UserID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	txn, err := h.service.PostTransaction(r.Context(), id.CompanyID, in)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, newTransactionResponse(txn))
}

// ListTransactions returns one page of transactions ordered by date and id
// @Summary List transactions
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param from query string false "First date, inclusive (YYYY-MM-DD)"
// @Param to query string false "Last date, inclusive (YYYY-MM-DD)"
// @Param after query string false "Cursor returned as next by the previous page"
// @Param limit query int false "Page size"
// @Success 200 {object} TransactionListResponse
// @Failure 400 {object} services.ErrorResponse
// @Router /transactions [get]
func (h *TransactionHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	var rng services.DateRange
	var err error
	if rng.From, err = queryDate(q.Get("from"), "from"); err != nil {
		services.SendServiceError(w, err)
		return
	}
	if rng.To, err = queryDate(q.Get("to"), "to"); err != nil {
		services.SendServiceError(w, err)
		return
	}

	after, err := decodeCursor(q.Get("after"))
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	limit := 0
	if raw := q.Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 {
			services.SendServiceError(w, &services.ValidationError{Field: "limit", Message: "must be a positive integer"})
			return
		}
	}

	page, err := h.service.ListTransactionPage(r.Context(), id.CompanyID, rng, after, limit)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}

	resp := TransactionListResponse{Transactions: make([]TransactionResponse, 0, len(page.Transactions))}
	for i := range page.Transactions {
		resp.Transactions = append(resp.Transactions, newTransactionResponse(&page.Transactions[i]))
	}
	if page.Next != nil {
		resp.Next = encodeCursor(*page.Next)
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetTransaction returns one transaction with its lines
// @Summary Get transaction
// @Tags Transactions
// @Produce json
// @Security BearerAuth
// @Param transactionId path int true "Transaction ID"
// @Success 200 {object} TransactionResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{transactionId} [get]
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	txID, ok := transactionID(w, r)
	if !ok {
		return
	}

	txn, err := h.service.GetTransaction(r.Context(), id.CompanyID, txID)
	if err != nil {
		services.SendServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newTransactionResponse(txn))
}

// DeleteTransaction removes a transaction and its lines
// @Summary Delete transaction
// @Tags Transactions
// @Security BearerAuth
// @Param transactionId path int true "Transaction ID"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{transactionId} [delete]
func (h *TransactionHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, ok := identity(w, r)
	if !ok {
		return
	}
	txID, ok := transactionID(w, r)
	if !ok {
		return
	}

	if err := h.service.DeleteTransaction(r.Context(), id.CompanyID, txID); err != nil {
		services.SendServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func transactionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "transactionId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		services.SendServiceError(w, &services.NotFoundError{Resource: "transaction", ID: raw})
		return 0, false
	}
	return id, true
}

func queryDate(raw, field string) (*models.Date, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := models.ParseDate(raw)
	if err != nil {
		return nil, &services.ValidationError{Field: field, Message: "is not a valid date"}
	}
	return &d, nil
}

var errBadCursor = &services.ValidationError{Field: "after", Message: "is not a valid cursor"}

// Cursors are the last date and id of a page, base64url encoded.
func encodeCursor(c store.Cursor) string {
	return base64.RawURLEncoding.EncodeToString(fmt.Appendf(nil, "%s/%d", c.Date, c.ID))
}

func decodeCursor(raw string) (*store.Cursor, error) {
	if raw == "" {
		return nil, nil
	}
	b, err := base64.RawURLEncoding.DecodeString(raw)
	if err != nil {
		return nil, errBadCursor
	}
	datePart, idPart, ok := strings.Cut(string(b), "/")
	if !ok {
		return nil, errBadCursor
	}
	d, err := models.ParseDate(datePart)
	if err != nil {
		return nil, errBadCursor
	}
	id, err := strconv.ParseInt(idPart, 10, 64)
	if err != nil {
		return nil, errBadCursor
	}
	return &store.Cursor{Date: d, ID: id}, nil
}
