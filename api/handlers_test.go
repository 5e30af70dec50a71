/*
handlers_test.go - HTTP tests for the party ledger API

Tests for:
- Party creation, lookup and merchant scoping
- Applying, reversing and replacing documents over HTTP
- Transaction history filters
- Error to status code mapping
*/
package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/warp/party-ledger/ledger"
	"github.com/warp/party-ledger/metrics"
	"github.com/warp/party-ledger/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := zaptest.NewLogger(t)
	return NewHandler(ledger.NewService(store, ledger.WithLogger(log)), log)
}

func setupTestRouter(t *testing.T) (*Handler, http.Handler) {
	t.Helper()
	h := setupTestHandler(t)
	return h, NewRouter(h, RouterOptions{
		Metrics:   metrics.New(nil).Handler(),
		Scenarios: true,
	})
}

func do(t *testing.T, router http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		switch b := body.(type) {
		case string:
			buf.WriteString(b)
		default:
			require.NoError(t, json.NewEncoder(&buf).Encode(b))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

type errorBody struct {
	Error   string          `json:"error"`
	Code    string          `json:"code"`
	Details json.RawMessage `json:"details"`
}

func createTestParty(t *testing.T, router http.Handler, merchant string, req CreatePartyRequest) PartyDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/merchants/"+merchant+"/parties", req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[PartyDTO](t, rec)
}

func partyPath(merchant, partyID, suffix string) string {
	return "/api/merchants/" + merchant + "/parties/" + partyID + suffix
}

func applyEvent(t *testing.T, router http.Handler, partyID string, req ApplyEventRequest) EntryDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, partyPath("m-1", partyID, "/events"), req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[EntryDTO](t, rec)
}

// =============================================================================
// PARTIES
// =============================================================================

func TestCreateParty_WithOpeningBalance(t *testing.T) {
	// GIVEN: A supplier the merchant already owes 500
	// WHEN: Creating it and reading it back
	// THEN: Balance and opening balance are 500 TO_PAY, signed -500

	_, router := setupTestRouter(t)

	p := createTestParty(t, router, "m-1", CreatePartyRequest{
		Name:           "Mehta Suppliers",
		GSTNumber:      "29abcde1234f1z5",
		PartyType:      "SUPPLIER",
		OpeningBalance: &OpeningBalanceRequest{Amount: "500", BalanceType: "TO_PAY"},
	})
	assert.Equal(t, BalanceDTO{Amount: "500.00", BalanceType: "TO_PAY", Signed: "-500.00"}, p.Balance)
	assert.Equal(t, p.Balance, p.OpeningBalance)
	assert.Equal(t, "29ABCDE1234F1Z5", p.GSTNumber)
	assert.Equal(t, int64(1), p.Version)

	rec := do(t, router, http.MethodGet, partyPath("m-1", p.ID, ""), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, p.ID, decodeBody[PartyDTO](t, rec).ID)

	rec = do(t, router, http.MethodGet, partyPath("m-1", p.ID, "/balance"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "TO_PAY", decodeBody[BalanceDTO](t, rec).BalanceType)
}

func TestCreateParty_DefaultsToSettledCustomer(t *testing.T) {
	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Walk-in"})
	assert.Equal(t, "CUSTOMER", p.PartyType)
	assert.Equal(t, BalanceDTO{Amount: "0.00", BalanceType: "SETTLED", Signed: "0.00"}, p.Balance)
}

func TestCreateParty_ValidationDetails(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := do(t, router, http.MethodPost, "/api/merchants/m-1/parties", map[string]any{
		"email":      "not-an-email",
		"party_type": "VENDOR",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	body := decodeBody[errorBody](t, rec)
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	var details []ValidationDetail
	require.NoError(t, json.Unmarshal(body.Details, &details))
	fields := map[string]string{}
	for _, d := range details {
		fields[d.Field] = d.Message
	}
	assert.Equal(t, "This field is required", fields["name"])
	assert.Equal(t, "Invalid email format", fields["email"])
	assert.Contains(t, fields["party_type"], "CUSTOMER SUPPLIER BOTH")
}

func TestCreateParty_RejectsBrokenOpeningBalance(t *testing.T) {
	tests := []struct {
		name     string
		opening  OpeningBalanceRequest
		wantCode string
	}{
		{"settled with magnitude", OpeningBalanceRequest{Amount: "100", BalanceType: "SETTLED"}, "INVALID_BALANCE"},
		{"direction with zero", OpeningBalanceRequest{Amount: "0", BalanceType: "TO_RECEIVE"}, "INVALID_BALANCE"},
		{"negative magnitude", OpeningBalanceRequest{Amount: "-5", BalanceType: "TO_PAY"}, "INVALID_BALANCE"},
		{"three decimals", OpeningBalanceRequest{Amount: "1.005", BalanceType: "TO_PAY"}, "INVALID_AMOUNT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, router := setupTestRouter(t)
			opening := tt.opening
			rec := do(t, router, http.MethodPost, "/api/merchants/m-1/parties", CreatePartyRequest{Name: "A", OpeningBalance: &opening})
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeBody[errorBody](t, rec).Code)
		})
	}
}

func TestParties_ScopedToMerchant(t *testing.T) {
	// GIVEN: A party of merchant m-1
	// WHEN: Merchant m-2 asks for it or applies an event to it
	// THEN: 404, and the m-2 list is empty

	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Kumar & Sons"})
	createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Anand Traders"})

	rec := do(t, router, http.MethodGet, partyPath("m-2", p.ID, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "PARTY_NOT_FOUND", decodeBody[errorBody](t, rec).Code)

	rec = do(t, router, http.MethodPost, partyPath("m-2", p.ID, "/events"), ApplyEventRequest{Kind: "SALE", Amount: "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/merchants/m-2/parties", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, decodeBody[[]PartyDTO](t, rec))

	rec = do(t, router, http.MethodGet, "/api/merchants/m-1/parties", nil)
	list := decodeBody[[]PartyDTO](t, rec)
	require.Len(t, list, 2)
	assert.Equal(t, "Anand Traders", list[0].Name)
}

func TestUpdateParty_EditsIdentity(t *testing.T) {
	// GIVEN: Two parties of m-1, one with a balance
	// WHEN: Editing the first
	// THEN: Identity changes, balance stays, a clashing name is 409

	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{
		Name:           "Kumar & Sons",
		Phone:          "98450 11111",
		OpeningBalance: &OpeningBalanceRequest{Amount: "120", BalanceType: "TO_RECEIVE"},
	})
	createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Anand Traders"})

	rec := do(t, router, http.MethodPut, partyPath("m-1", p.ID, ""), UpdatePartyRequest{
		Name: "Kumar Brothers", Email: "kumar@example.com", GSTNumber: "29abcde1234f1z5", PartyType: "BOTH",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := decodeBody[PartyDTO](t, rec)
	assert.Equal(t, "Kumar Brothers", updated.Name)
	assert.Equal(t, "kumar@example.com", updated.Email)
	assert.Empty(t, updated.Phone)
	assert.Equal(t, "29ABCDE1234F1Z5", updated.GSTNumber)
	assert.Equal(t, "BOTH", updated.PartyType)
	assert.Equal(t, "120.00", updated.Balance.Amount)

	rec = do(t, router, http.MethodPut, partyPath("m-1", p.ID, ""), UpdatePartyRequest{Name: "Anand Traders"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_PARTY", decodeBody[errorBody](t, rec).Code)

	rec = do(t, router, http.MethodPut, partyPath("m-1", p.ID, ""), UpdatePartyRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VALIDATION_ERROR", decodeBody[errorBody](t, rec).Code)

	rec = do(t, router, http.MethodPut, partyPath("m-2", p.ID, ""), UpdatePartyRequest{Name: "Stolen"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCreateParty_DuplicateIdentity(t *testing.T) {
	_, router := setupTestRouter(t)
	createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Kumar & Sons", Email: "kumar@example.com"})

	rec := do(t, router, http.MethodPost, "/api/merchants/m-1/parties", CreatePartyRequest{Name: "Kumar Foods", Email: "kumar@example.com"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_PARTY", decodeBody[errorBody](t, rec).Code)

	createTestParty(t, router, "m-2", CreatePartyRequest{Name: "Kumar & Sons", Email: "kumar@example.com"})
}

func TestDeactivateParty_HidesParty(t *testing.T) {
	// GIVEN: A party with a sale
	// WHEN: It is deleted
	// THEN: 204, then 404 on every party route, gone from the list

	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Kumar & Sons"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "SALE", Amount: "50", DocumentID: "INV-1"})

	rec := do(t, router, http.MethodDelete, partyPath("m-2", p.ID, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code, "another merchant cannot delete it")

	rec = do(t, router, http.MethodDelete, partyPath("m-1", p.ID, ""), nil)
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())

	for _, suffix := range []string{"", "/balance", "/transactions"} {
		rec = do(t, router, http.MethodGet, partyPath("m-1", p.ID, suffix), nil)
		assert.Equal(t, http.StatusNotFound, rec.Code, suffix)
	}
	rec = do(t, router, http.MethodPost, partyPath("m-1", p.ID, "/events"), ApplyEventRequest{Kind: "SALE", Amount: "1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec = do(t, router, http.MethodDelete, partyPath("m-1", p.ID, ""), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/merchants/m-1/parties", nil)
	assert.Empty(t, decodeBody[[]PartyDTO](t, rec))
}

func TestListParties_Search(t *testing.T) {
	_, router := setupTestRouter(t)
	createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Kumar & Sons", Phone: "98450 11111"})
	createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Anand Traders", Email: "accounts@kumargroup.in"})
	createTestParty(t, router, "m-1", CreatePartyRequest{Name: "Mehta Suppliers"})
	createTestParty(t, router, "m-2", CreatePartyRequest{Name: "Kumar Foods"})

	tests := []struct {
		query string
		want  []string
	}{
		{"?q=KUMAR", []string{"Anand Traders", "Kumar & Sons"}},
		{"?q=11111", []string{"Kumar & Sons"}},
		{"?q=nobody", []string{}},
		{"?q=", []string{"Anand Traders", "Kumar & Sons", "Mehta Suppliers"}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, "/api/merchants/m-1/parties"+tt.query, nil)
			require.Equal(t, http.StatusOK, rec.Code)
			names := []string{}
			for _, p := range decodeBody[[]PartyDTO](t, rec) {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

// =============================================================================
// EVENTS, REVERSALS, REPLACEMENTS
// =============================================================================

func TestApplyEvent_CrossingZero(t *testing.T) {
	// GIVEN: Merchant owes the party 500
	// WHEN: A sale of 800 is posted
	// THEN: 300 TO_RECEIVE, delta +800

	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{
		Name:           "Kumar & Sons",
		OpeningBalance: &OpeningBalanceRequest{Amount: "500", BalanceType: "TO_PAY"},
	})

	docBalance := "800"
	e := applyEvent(t, router, p.ID, ApplyEventRequest{
		Kind: "SALE", Amount: "800", DocumentID: "INV-1", DocumentNumber: "INV/24/001",
		TransactionDate: "2025-01-05", DocumentBalance: &docBalance,
	})
	assert.Equal(t, BalanceDTO{Amount: "300.00", BalanceType: "TO_RECEIVE", Signed: "300.00"}, e.BalanceAfter)
	assert.Equal(t, "800.00", e.Delta)
	assert.Equal(t, "INV/24/001", e.DocumentNumber)
	require.NotNil(t, e.DocumentBalance)
	assert.Equal(t, "800.00", *e.DocumentBalance)
	assert.Equal(t, "2025-01-05T00:00:00Z", e.TransactionDate)
	assert.False(t, e.Reversal)
}

func TestApplyEvent_Errors(t *testing.T) {
	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "SALE", Amount: "10", DocumentID: "INV-1"})

	tests := []struct {
		name       string
		body       any
		headers    []string
		wantStatus int
		wantCode   string
	}{
		{"document already applied", ApplyEventRequest{Kind: "SALE", Amount: "10", DocumentID: "INV-1"}, nil, http.StatusConflict, "DOCUMENT_ALREADY_APPLIED"},
		{"negative sale", ApplyEventRequest{Kind: "SALE", Amount: "-5"}, nil, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"too many decimals", ApplyEventRequest{Kind: "PAYMENT_IN", Amount: "1.234"}, nil, http.StatusBadRequest, "INVALID_AMOUNT"},
		{"not a number", ApplyEventRequest{Kind: "SALE", Amount: "ten"}, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unknown kind", ApplyEventRequest{Kind: "REFUND", Amount: "1"}, nil, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"bad date", ApplyEventRequest{Kind: "SALE", Amount: "1", TransactionDate: "05/01/2025"}, nil, http.StatusBadRequest, ""},
		{"malformed json", `{"kind":`, nil, http.StatusBadRequest, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, router, http.MethodPost, partyPath("m-1", p.ID, "/events"), tt.body, tt.headers...)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantCode, decodeBody[errorBody](t, rec).Code)
		})
	}
}

func TestApplyEvent_IdempotencyKeyHeader(t *testing.T) {
	// GIVEN: A payment posted with an Idempotency-Key header
	// WHEN: The client retries with the same key
	// THEN: 409 and the balance moved once

	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	path := partyPath("m-1", p.ID, "/events")
	body := ApplyEventRequest{Kind: "PAYMENT_OUT", Amount: "250"}

	rec := do(t, router, http.MethodPost, path, body, "Idempotency-Key", "pay-001")
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = do(t, router, http.MethodPost, path, body, "Idempotency-Key", "pay-001")
	require.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "DUPLICATE_IDEMPOTENCY_KEY", decodeBody[errorBody](t, rec).Code)

	rec = do(t, router, http.MethodGet, partyPath("m-1", p.ID, "/balance"), nil)
	assert.Equal(t, "250.00", decodeBody[BalanceDTO](t, rec).Amount)
}

func TestReverseDocument_Lifecycle(t *testing.T) {
	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	applied := applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "PURCHASE", Amount: "200", DocumentID: "BILL-1"})
	path := partyPath("m-1", p.ID, "/reversals")

	steps := []struct {
		name       string
		body       ReverseRequest
		wantStatus int
		wantCode   string
	}{
		{"never applied", ReverseRequest{Kind: "PURCHASE", Amount: "200", DocumentID: "BILL-404"}, http.StatusNotFound, "DOCUMENT_NOT_APPLIED"},
		{"wrong amount", ReverseRequest{Kind: "PURCHASE", Amount: "150", DocumentID: "BILL-1"}, http.StatusBadRequest, "DOCUMENT_MISMATCH"},
		{"reversed", ReverseRequest{Kind: "PURCHASE", Amount: "200", DocumentID: "BILL-1"}, http.StatusCreated, ""},
		{"reversed twice", ReverseRequest{Kind: "PURCHASE", Amount: "200", DocumentID: "BILL-1"}, http.StatusConflict, "ALREADY_REVERSED"},
	}
	for _, st := range steps {
		rec := do(t, router, http.MethodPost, path, st.body)
		require.Equal(t, st.wantStatus, rec.Code, "%s: %s", st.name, rec.Body.String())
		if st.wantCode != "" {
			assert.Equal(t, st.wantCode, decodeBody[errorBody](t, rec).Code, st.name)
			continue
		}
		rev := decodeBody[EntryDTO](t, rec)
		assert.True(t, rev.Reversal)
		assert.Equal(t, applied.ID, rev.ReversesID)
		assert.Equal(t, "Reversed Purchase", rev.Description)
		assert.Equal(t, "SETTLED", rev.BalanceAfter.BalanceType)
	}
}

func TestReplaceDocument_KeepsDocumentNumber(t *testing.T) {
	// GIVEN: SALE S1 numbered INV-001
	// WHEN: S1 is edited to 150 without a replacement document_number
	// THEN: The re-applied entry still carries INV-001

	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "SALE", Amount: "100", DocumentID: "S1", DocumentNumber: "INV-001"})

	rec := do(t, router, http.MethodPut, partyPath("m-1", p.ID, "/documents/S1"), ReplaceDocumentRequest{
		Kind: "SALE", Amount: "100",
		Replacement: ReplacementRequest{Kind: "SALE", Amount: "150"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[ReplaceDocumentResponse](t, rec)
	assert.Equal(t, "INV-001", edited.Reversal.DocumentNumber)
	assert.Equal(t, "INV-001", edited.Applied.DocumentNumber)
	assert.Equal(t, "S1", edited.Applied.DocumentID)
}

func TestReplaceDocument_EditAndMove(t *testing.T) {
	// GIVEN: SALE 1000 on INV-1 for party A
	// WHEN: INV-1 is edited to 800, then moved to party B
	// THEN: A ends settled and B holds 800 TO_RECEIVE

	_, router := setupTestRouter(t)
	a := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	b := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "B"})
	foreign := createTestParty(t, router, "m-2", CreatePartyRequest{Name: "Foreign"})
	applyEvent(t, router, a.ID, ApplyEventRequest{Kind: "SALE", Amount: "1000", DocumentID: "INV-1"})

	rec := do(t, router, http.MethodPut, partyPath("m-1", a.ID, "/documents/INV-1"), ReplaceDocumentRequest{
		Kind: "SALE", Amount: "1000",
		Replacement: ReplacementRequest{Kind: "SALE", Amount: "800"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	edited := decodeBody[ReplaceDocumentResponse](t, rec)
	assert.True(t, edited.Reversal.Reversal)
	assert.Equal(t, "800.00", edited.Applied.BalanceAfter.Amount)
	assert.Equal(t, "INV-1", edited.Applied.DocumentID)

	rec = do(t, router, http.MethodPut, partyPath("m-1", a.ID, "/documents/INV-1"), ReplaceDocumentRequest{
		Kind: "SALE", Amount: "800",
		Replacement: ReplacementRequest{PartyID: foreign.ID, Kind: "SALE", Amount: "800"},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code, "other merchant's party")

	rec = do(t, router, http.MethodPut, partyPath("m-1", a.ID, "/documents/INV-1"), ReplaceDocumentRequest{
		Kind: "SALE", Amount: "800",
		Replacement: ReplacementRequest{PartyID: b.ID, Kind: "SALE", Amount: "800"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	moved := decodeBody[ReplaceDocumentResponse](t, rec)
	assert.Equal(t, a.ID, moved.Reversal.PartyID)
	assert.Equal(t, b.ID, moved.Applied.PartyID)

	rec = do(t, router, http.MethodGet, partyPath("m-1", a.ID, "/balance"), nil)
	assert.Equal(t, "SETTLED", decodeBody[BalanceDTO](t, rec).BalanceType)
	rec = do(t, router, http.MethodGet, partyPath("m-1", b.ID, "/balance"), nil)
	assert.Equal(t, BalanceDTO{Amount: "800.00", BalanceType: "TO_RECEIVE", Signed: "800.00"}, decodeBody[BalanceDTO](t, rec))
}

// =============================================================================
// HISTORY, SUMMARY, AUDIT
// =============================================================================

func TestGetTransactions_Filters(t *testing.T) {
	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "SALE", Amount: "100", TransactionDate: "2025-01-01"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "PAYMENT_IN", Amount: "40", TransactionDate: "2025-01-02T18:30:00Z"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "PURCHASE", Amount: "25", TransactionDate: "2025-01-03"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "SALE", Amount: "10", TransactionDate: "2025-01-04"})

	tests := []struct {
		query     string
		wantKinds []string
	}{
		{"", []string{"SALE", "PURCHASE", "PAYMENT_IN", "SALE"}},
		{"?limit=2", []string{"SALE", "PURCHASE"}},
		{"?kind=SALE", []string{"SALE", "SALE"}},
		{"?kind=sale,payment_in", []string{"SALE", "PAYMENT_IN", "SALE"}},
		{"?kind=PURCHASE&kind=PAYMENT_IN", []string{"PURCHASE", "PAYMENT_IN"}},
		{"?from=2025-01-02&to=2025-01-02", []string{"PAYMENT_IN"}},
		{"?from=2025-01-03", []string{"SALE", "PURCHASE"}},
		{"?from=2025-01-04&to=2025-01-01", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, router, http.MethodGet, partyPath("m-1", p.ID, "/transactions"+tt.query), nil)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			entries := decodeBody[[]EntryDTO](t, rec)
			kinds := []string{}
			for _, e := range entries {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, tt.wantKinds, kinds)
		})
	}

	for _, bad := range []string{"?kind=REFUND", "?limit=-1", "?limit=ten", "?from=yesterday"} {
		rec := do(t, router, http.MethodGet, partyPath("m-1", p.ID, "/transactions"+bad), nil)
		assert.Equal(t, http.StatusBadRequest, rec.Code, bad)
	}
}

func TestGetSummaryAndAudit(t *testing.T) {
	_, router := setupTestRouter(t)
	p := createTestParty(t, router, "m-1", CreatePartyRequest{Name: "A"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "SALE", Amount: "1000", DocumentID: "INV-1"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "PAYMENT_IN", Amount: "400"})
	applyEvent(t, router, p.ID, ApplyEventRequest{Kind: "PURCHASE", Amount: "150"})

	rec := do(t, router, http.MethodGet, partyPath("m-1", p.ID, "/summary"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decodeBody[SummaryDTO](t, rec)
	assert.Equal(t, "1400.00", summary.TotalCredit)
	assert.Equal(t, "150.00", summary.TotalDebit)
	assert.Equal(t, BalanceDTO{Amount: "450.00", BalanceType: "TO_RECEIVE", Signed: "450.00"}, summary.Balance)
	require.NotNil(t, summary.Latest)
	assert.Equal(t, "PURCHASE", summary.Latest.Kind)

	rec = do(t, router, http.MethodGet, partyPath("m-1", p.ID, "/audit"), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	report := decodeBody[AuditReportDTO](t, rec)
	assert.True(t, report.Consistent)
	assert.Equal(t, 3, report.Entries)
	assert.Equal(t, "0.00", report.Drift)
}

func TestHealthAndMetrics(t *testing.T) {
	_, router := setupTestRouter(t)

	rec := do(t, router, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "party_ledger_conflict_retries_total")
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

func TestClassify(t *testing.T) {
	tests := []struct {
		err        error
		wantStatus int
		wantCode   string
	}{
		{ledger.ErrInvalidAmount, http.StatusBadRequest, "INVALID_AMOUNT"},
		{&ledger.InvalidAmountError{Kind: ledger.KindSale, Reason: "negative"}, http.StatusBadRequest, "INVALID_AMOUNT"},
		{ledger.ErrInvalidEventKind, http.StatusBadRequest, "INVALID_EVENT_KIND"},
		{ledger.ErrInvalidBalance, http.StatusBadRequest, "INVALID_BALANCE"},
		{ledger.ErrInvalidParty, http.StatusBadRequest, "INVALID_PARTY"},
		{ledger.ErrDocumentMismatch, http.StatusBadRequest, "DOCUMENT_MISMATCH"},
		{ledger.ErrPartyNotFound, http.StatusNotFound, "PARTY_NOT_FOUND"},
		{ledger.ErrDocumentNotApplied, http.StatusNotFound, "DOCUMENT_NOT_APPLIED"},
		{fmt.Errorf("after 3 attempts: %w", ledger.ErrConcurrentModification), http.StatusConflict, "CONCURRENT_MODIFICATION"},
		{ledger.ErrDuplicateIdempotencyKey, http.StatusConflict, "DUPLICATE_IDEMPOTENCY_KEY"},
		{fmt.Errorf("%w: name is taken", ledger.ErrDuplicateParty), http.StatusConflict, "DUPLICATE_PARTY"},
		{ledger.ErrDocumentAlreadyApplied, http.StatusConflict, "DOCUMENT_ALREADY_APPLIED"},
		{ledger.ErrAlreadyReversed, http.StatusConflict, "ALREADY_REVERSED"},
		{ledger.Persistence("append entry", errors.New("disk full")), http.StatusServiceUnavailable, "PERSISTENCE_FAILURE"},
		{errors.New("boom"), http.StatusInternalServerError, "INTERNAL"},
	}
	for _, tt := range tests {
		t.Run(tt.wantCode+"/"+tt.err.Error(), func(t *testing.T) {
			status, code := classify(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, code)
		})
	}
}
