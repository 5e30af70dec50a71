/*
handlers.go - HTTP API handlers for the party ledger

PURPOSE:
  Exposes the ledger service via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to ledger.Service.

ENDPOINTS (under /api/merchants/{merchantID}):
  Parties:
    GET    /parties                               List parties (?q= searches)
    POST   /parties                               Create party
    GET    /parties/{partyID}                     Party details
    PUT    /parties/{partyID}                     Edit identity fields
    DELETE /parties/{partyID}                     Deactivate (soft delete)
    GET    /parties/{partyID}/balance             {amount, balance_type}
    GET    /parties/{partyID}/summary             Credit/debit totals
    GET    /parties/{partyID}/audit               Replay check

  Ledger:
    GET    /parties/{partyID}/transactions        History (?from&to&kind&limit)
    POST   /parties/{partyID}/events              Apply sale/purchase/payment
    POST   /parties/{partyID}/reversals           Reverse a document
    PUT    /parties/{partyID}/documents/{docID}   Edit a document

MERCHANT SCOPING:
  A party that belongs to another merchant is reported as not found.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid amount/kind/balance, document mismatch
  - 404: Party not found, document never applied
  - 409: Concurrent modification, duplicate idempotency key, duplicate
         party identity, document state
  - 503: Persistence failure
  - 500: Internal errors

SECURITY NOTE:
  No authentication. Merchant identity comes from the URL and is expected to
  be enforced by a gateway in front of this service.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/warp/party-ledger/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service
	Log     *zap.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler around the ledger service.
func NewHandler(svc *ledger.Service, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{Service: svc, Log: log, validate: v}
}

// =============================================================================
// PARTY HANDLERS
// =============================================================================

// ListParties returns the merchant's active parties ordered by name.
// GET .../parties?q=kumar matches name, phone or email, ignoring case.
func (h *Handler) ListParties(w http.ResponseWriter, r *http.Request) {
	merchantID := ledger.MerchantID(chi.URLParam(r, "merchantID"))

	parties, err := h.Service.SearchParties(r.Context(), merchantID, r.URL.Query().Get("q"))
	if err != nil {
		h.writeServiceError(w, r, "Failed to list parties", err)
		return
	}

	dtos := make([]PartyDTO, len(parties))
	for i, p := range parties {
		dtos[i] = toPartyDTO(p)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateParty creates a party with an optional opening balance.
func (h *Handler) CreateParty(w http.ResponseWriter, r *http.Request) {
	var req CreatePartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := ledger.NewParty{
		MerchantID: ledger.MerchantID(chi.URLParam(r, "merchantID")),
		Name:       req.Name,
		Phone:      req.Phone,
		Email:      req.Email,
		Address:    req.Address,
		GSTNumber:  strings.ToUpper(req.GSTNumber),
		PANNumber:  strings.ToUpper(req.PANNumber),
		Type:       ledger.PartyType(req.PartyType),
	}
	if ob := req.OpeningBalance; ob != nil {
		amount, err := parseAmount(ob.Amount)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid opening balance amount", err)
			return
		}
		dir, err := ledger.ParseDirection(ob.BalanceType)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid opening balance type", err)
			return
		}
		in.OpeningBalance = ledger.BalanceView{Magnitude: amount, Direction: dir}
	}

	p, err := h.Service.CreateParty(r.Context(), in)
	if err != nil {
		h.writeServiceError(w, r, "Failed to create party", err)
		return
	}
	writeJSON(w, http.StatusCreated, toPartyDTO(p))
}

// GetParty returns a single party.
func (h *Handler) GetParty(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(p))
}

// UpdateParty replaces the identity fields of a party.
func (h *Handler) UpdateParty(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	var req UpdatePartyRequest
	if !h.decode(w, r, &req) {
		return
	}

	updated, err := h.Service.UpdateParty(r.Context(), p.ID, ledger.PartyUpdate{
		Name:      req.Name,
		Phone:     req.Phone,
		Email:     req.Email,
		Address:   req.Address,
		GSTNumber: strings.ToUpper(req.GSTNumber),
		PANNumber: strings.ToUpper(req.PANNumber),
		Type:      ledger.PartyType(req.PartyType),
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to update party", err)
		return
	}
	writeJSON(w, http.StatusOK, toPartyDTO(updated))
}

// DeactivateParty soft-deletes a party. Its ledger entries are kept.
func (h *Handler) DeactivateParty(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	if err := h.Service.DeactivateParty(r.Context(), p.ID); err != nil {
		h.writeServiceError(w, r, "Failed to deactivate party", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetBalance returns the presentation view of a party's balance.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toBalanceDTO(p.Balance))
}

// GetSummary returns total credit, total debit, balance and latest entry.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	summary, err := h.Service.Summary(r.Context(), p.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to build summary", err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}

// AuditParty replays the party's entries and compares with the stored balance.
func (h *Handler) AuditParty(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	report, err := h.Service.Audit(r.Context(), p.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to audit party", err)
		return
	}
	writeJSON(w, http.StatusOK, toAuditReportDTO(report))
}

// =============================================================================
// LEDGER HANDLERS
// =============================================================================

// GetTransactions returns the party's entries, most recent first.
// GET .../transactions?from=2024-01-01&to=2024-03-31&kind=SALE&kind=PAYMENT_IN&limit=50
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}

	q := ledger.HistoryQuery{PartyID: p.ID}
	query := r.URL.Query()
	if s := query.Get("from"); s != "" {
		from, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid from date (use RFC3339 or YYYY-MM-DD)", err)
			return
		}
		q.From = &from
	}
	if s := query.Get("to"); s != "" {
		to, err := parseDate(s)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid to date (use RFC3339 or YYYY-MM-DD)", err)
			return
		}
		if len(s) == len("2006-01-02") {
			// a bare date covers the whole day
			to = to.AddDate(0, 0, 1).Add(-1)
		}
		q.To = &to
	}
	for _, raw := range query["kind"] {
		for _, s := range strings.Split(raw, ",") {
			k, err := ledger.ParseEventKind(s)
			if err != nil {
				writeError(w, http.StatusBadRequest, "Invalid kind", err)
				return
			}
			q.Kinds = append(q.Kinds, k)
		}
	}
	if s := query.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		q.Limit = limit
	}

	entries, err := h.Service.GetHistory(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load transactions", err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTOs(entries))
}

// ApplyEvent applies one economic event to the party.
// The Idempotency-Key header is used when the body has no idempotency_key.
func (h *Handler) ApplyEvent(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	var req ApplyEventRequest
	if !h.decode(w, r, &req) {
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	applyReq, err := buildApplyRequest(p.ID, req.Kind, req.Amount, ledger.DocumentRef{ID: req.DocumentID, Number: req.DocumentNumber},
		req.TransactionDate, req.DocumentBalance, req.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid event", err)
		return
	}
	applyReq.IdempotencyKey = req.IdempotencyKey

	entry, err := h.Service.ApplyEconomicEvent(r.Context(), applyReq)
	if err != nil {
		h.writeServiceError(w, r, "Failed to apply event", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// ReverseDocument takes a previously applied document back out of the balance.
func (h *Handler) ReverseDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	var req ReverseRequest
	if !h.decode(w, r, &req) {
		return
	}

	revReq, err := buildReverseRequest(p.ID, req.Kind, req.Amount, ledger.DocumentRef{ID: req.DocumentID, Number: req.DocumentNumber},
		req.TransactionDate, req.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid reversal", err)
		return
	}

	entry, err := h.Service.ReverseDocument(r.Context(), revReq)
	if err != nil {
		h.writeServiceError(w, r, "Failed to reverse document", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEntryDTO(entry))
}

// ReplaceDocument edits an applied document as reverse + apply in one unit.
func (h *Handler) ReplaceDocument(w http.ResponseWriter, r *http.Request) {
	p, ok := h.party(w, r)
	if !ok {
		return
	}
	var req ReplaceDocumentRequest
	if !h.decode(w, r, &req) {
		return
	}
	documentID := chi.URLParam(r, "documentID")

	original, err := buildReverseRequest(p.ID, req.Kind, req.Amount, ledger.DocumentRef{ID: documentID}, "", "")
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid original document", err)
		return
	}

	target := p.ID
	if rep := req.Replacement.PartyID; rep != "" && ledger.PartyID(rep) != p.ID {
		other, err := h.Service.GetParty(r.Context(), ledger.PartyID(rep))
		if err == nil && other.MerchantID != p.MerchantID {
			err = ledger.ErrPartyNotFound
		}
		if err != nil {
			h.writeServiceError(w, r, "Failed to load replacement party", err)
			return
		}
		target = other.ID
	}

	rep := req.Replacement
	replacement, err := buildApplyRequest(target, rep.Kind, rep.Amount, ledger.DocumentRef{ID: documentID, Number: rep.DocumentNumber},
		rep.TransactionDate, rep.DocumentBalance, rep.Description)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid replacement", err)
		return
	}

	reversal, applied, err := h.Service.ReplaceDocument(r.Context(), ledger.ReplaceRequest{
		Original:    original,
		Replacement: replacement,
	})
	if err != nil {
		h.writeServiceError(w, r, "Failed to replace document", err)
		return
	}
	writeJSON(w, http.StatusOK, ReplaceDocumentResponse{
		Reversal: toEntryDTO(reversal),
		Applied:  toEntryDTO(applied),
	})
}

// Health reports that the process is serving.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

// party loads the {partyID} of the URL and checks it belongs to {merchantID}.
// It writes the error response itself and reports whether to continue.
func (h *Handler) party(w http.ResponseWriter, r *http.Request) (ledger.Party, bool) {
	merchantID := ledger.MerchantID(chi.URLParam(r, "merchantID"))
	p, err := h.Service.GetParty(r.Context(), ledger.PartyID(chi.URLParam(r, "partyID")))
	if err == nil && p.MerchantID != merchantID {
		err = ledger.ErrPartyNotFound
	}
	if err != nil {
		h.writeServiceError(w, r, "Failed to load party", err)
		return ledger.Party{}, false
	}
	return p, true
}

// decode reads and validates a JSON body into dst.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "Request validation failed",
			Code:    "VALIDATION_ERROR",
			Details: validationDetails(err),
		})
		return false
	}
	return true
}

func buildApplyRequest(partyID ledger.PartyID, kind, amount string, doc ledger.DocumentRef, date string, docBalance *string, desc string) (ledger.ApplyRequest, error) {
	k, err := ledger.ParseEventKind(kind)
	if err != nil {
		return ledger.ApplyRequest{}, err
	}
	amt, err := parseAmount(amount)
	if err != nil {
		return ledger.ApplyRequest{}, fmt.Errorf("amount: %w", err)
	}
	txDate, err := parseDate(date)
	if err != nil {
		return ledger.ApplyRequest{}, fmt.Errorf("transaction_date: %w", err)
	}
	db, err := parseOptionalAmount(docBalance)
	if err != nil {
		return ledger.ApplyRequest{}, fmt.Errorf("document_balance: %w", err)
	}
	return ledger.ApplyRequest{
		PartyID:         partyID,
		Kind:            k,
		Amount:          amt,
		Document:        doc,
		TransactionDate: txDate,
		DocumentBalance: db,
		Description:     desc,
	}, nil
}

func buildReverseRequest(partyID ledger.PartyID, kind, amount string, doc ledger.DocumentRef, date, desc string) (ledger.ReverseRequest, error) {
	k, err := ledger.ParseEventKind(kind)
	if err != nil {
		return ledger.ReverseRequest{}, err
	}
	amt, err := parseAmount(amount)
	if err != nil {
		return ledger.ReverseRequest{}, fmt.Errorf("amount: %w", err)
	}
	txDate, err := parseDate(date)
	if err != nil {
		return ledger.ReverseRequest{}, fmt.Errorf("transaction_date: %w", err)
	}
	return ledger.ReverseRequest{
		PartyID:         partyID,
		Kind:            k,
		Amount:          amt,
		Document:        doc,
		TransactionDate: txDate,
		Description:     desc,
	}, nil
}

// writeServiceError maps ledger errors to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.Log.Error(message,
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: message, Code: code, Details: err.Error()})
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, "INVALID_AMOUNT"
	case errors.Is(err, ledger.ErrInvalidEventKind):
		return http.StatusBadRequest, "INVALID_EVENT_KIND"
	case errors.Is(err, ledger.ErrInvalidBalance):
		return http.StatusBadRequest, "INVALID_BALANCE"
	case errors.Is(err, ledger.ErrInvalidParty):
		return http.StatusBadRequest, "INVALID_PARTY"
	case errors.Is(err, ledger.ErrDocumentMismatch):
		return http.StatusBadRequest, "DOCUMENT_MISMATCH"
	case errors.Is(err, ledger.ErrPartyNotFound):
		return http.StatusNotFound, "PARTY_NOT_FOUND"
	case errors.Is(err, ledger.ErrDocumentNotApplied):
		return http.StatusNotFound, "DOCUMENT_NOT_APPLIED"
	case errors.Is(err, ledger.ErrConcurrentModification):
		return http.StatusConflict, "CONCURRENT_MODIFICATION"
	case errors.Is(err, ledger.ErrDuplicateIdempotencyKey):
		return http.StatusConflict, "DUPLICATE_IDEMPOTENCY_KEY"
	case errors.Is(err, ledger.ErrDuplicateParty):
		return http.StatusConflict, "DUPLICATE_PARTY"
	case errors.Is(err, ledger.ErrDocumentAlreadyApplied):
		return http.StatusConflict, "DOCUMENT_ALREADY_APPLIED"
	case errors.Is(err, ledger.ErrAlreadyReversed):
		return http.StatusConflict, "ALREADY_REVERSED"
	case errors.Is(err, ledger.ErrPersistenceFailure):
		return http.StatusServiceUnavailable, "PERSISTENCE_FAILURE"
	default:
		return http.StatusInternalServerError, "INTERNAL"
	}
}

func validationDetails(err error) []ValidationDetail {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationDetail{{Message: err.Error()}}
	}
	details := make([]ValidationDetail, 0, len(verrs))
	for _, e := range verrs {
		details = append(details, ValidationDetail{Field: e.Field(), Message: validationMessage(e)})
	}
	return details
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "numeric":
		return "Must be a decimal number"
	case "oneof":
		return "Must be one of: " + e.Param()
	case "len":
		return "Must be exactly " + e.Param() + " characters"
	case "max":
		return "Must be at most " + e.Param() + " characters"
	case "alphanum":
		return "Must be alphanumeric"
	default:
		return "Invalid value"
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
