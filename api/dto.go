/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the ledger's domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

MONEY:
  Amounts travel as decimal strings ("1250.50"), never as JSON numbers.
  Balances are always {amount, balance_type} with amount >= 0 plus the
  signed value for convenience.

VALIDATION:
  Request structs carry go-playground/validator tags. Handlers run
  validate.Struct before touching the ledger; domain rules (amount scale,
  sign rules, document state) are enforced by the ledger itself.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/party-ledger/ledger"
)

// =============================================================================
// BALANCE
// =============================================================================

// BalanceDTO is the presentation view of a signed balance.
type BalanceDTO struct {
	Amount      string `json:"amount"`
	BalanceType string `json:"balance_type"`
	Signed      string `json:"signed"`
}

// OpeningBalanceRequest is the balance a party starts with.
type OpeningBalanceRequest struct {
	Amount      string `json:"amount" validate:"required,numeric"`
	BalanceType string `json:"balance_type" validate:"required,oneof=TO_PAY TO_RECEIVE SETTLED"`
}

// =============================================================================
// PARTIES
// =============================================================================

type PartyDTO struct {
	ID             string     `json:"id"`
	MerchantID     string     `json:"merchant_id"`
	Name           string     `json:"name"`
	Phone          string     `json:"phone,omitempty"`
	Email          string     `json:"email,omitempty"`
	Address        string     `json:"address,omitempty"`
	GSTNumber      string     `json:"gst_number,omitempty"`
	PANNumber      string     `json:"pan_number,omitempty"`
	PartyType      string     `json:"party_type"`
	OpeningBalance BalanceDTO `json:"opening_balance"`
	Balance        BalanceDTO `json:"balance"`
	Version        int64      `json:"version"`
	CreatedAt      string     `json:"created_at"`
	UpdatedAt      string     `json:"updated_at"`
}

type CreatePartyRequest struct {
	Name           string                 `json:"name" validate:"required,max=200"`
	Phone          string                 `json:"phone" validate:"omitempty,max=20"`
	Email          string                 `json:"email" validate:"omitempty,email"`
	Address        string                 `json:"address" validate:"omitempty,max=500"`
	GSTNumber      string                 `json:"gst_number" validate:"omitempty,len=15,alphanum"`
	PANNumber      string                 `json:"pan_number" validate:"omitempty,len=10,alphanum"`
	PartyType      string                 `json:"party_type" validate:"omitempty,oneof=CUSTOMER SUPPLIER BOTH"`
	OpeningBalance *OpeningBalanceRequest `json:"opening_balance" validate:"omitempty"`
}

// UpdatePartyRequest replaces a party's identity fields. The balance is
// not editable here; it only moves through events.
type UpdatePartyRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	Phone     string `json:"phone" validate:"omitempty,max=20"`
	Email     string `json:"email" validate:"omitempty,email"`
	Address   string `json:"address" validate:"omitempty,max=500"`
	GSTNumber string `json:"gst_number" validate:"omitempty,len=15,alphanum"`
	PANNumber string `json:"pan_number" validate:"omitempty,len=10,alphanum"`
	PartyType string `json:"party_type" validate:"omitempty,oneof=CUSTOMER SUPPLIER BOTH"`
}

// =============================================================================
// EVENTS AND REVERSALS
// =============================================================================

// ApplyEventRequest records one sale, purchase, payment or adjustment.
// TransactionDate accepts RFC 3339 or YYYY-MM-DD.
type ApplyEventRequest struct {
	Kind            string  `json:"kind" validate:"required,oneof=SALE PURCHASE PAYMENT_IN PAYMENT_OUT ADJUSTMENT"`
	Amount          string  `json:"amount" validate:"required,numeric"`
	DocumentID      string  `json:"document_id" validate:"omitempty,max=100"`
	DocumentNumber  string  `json:"document_number" validate:"omitempty,max=100"`
	TransactionDate string  `json:"transaction_date"`
	DocumentBalance *string `json:"document_balance" validate:"omitempty,numeric"`
	Description     string  `json:"description" validate:"omitempty,max=500"`
	IdempotencyKey  string  `json:"idempotency_key" validate:"omitempty,max=100"`
}

// ReverseRequest takes a previously applied document back out of the balance.
type ReverseRequest struct {
	Kind            string `json:"kind" validate:"required,oneof=SALE PURCHASE PAYMENT_IN PAYMENT_OUT ADJUSTMENT"`
	Amount          string `json:"amount" validate:"required,numeric"`
	DocumentID      string `json:"document_id" validate:"omitempty,max=100"`
	DocumentNumber  string `json:"document_number" validate:"omitempty,max=100"`
	TransactionDate string `json:"transaction_date"`
	Description     string `json:"description" validate:"omitempty,max=500"`
}

// ReplaceDocumentRequest edits an applied document: the original kind and
// amount are reversed, then Replacement is applied. Replacement.PartyID
// moves the document to another party of the same merchant.
type ReplaceDocumentRequest struct {
	Kind        string             `json:"kind" validate:"required,oneof=SALE PURCHASE PAYMENT_IN PAYMENT_OUT ADJUSTMENT"`
	Amount      string             `json:"amount" validate:"required,numeric"`
	Replacement ReplacementRequest `json:"replacement" validate:"required"`
}

type ReplacementRequest struct {
	PartyID         string  `json:"party_id" validate:"omitempty,max=100"`
	Kind            string  `json:"kind" validate:"required,oneof=SALE PURCHASE PAYMENT_IN PAYMENT_OUT ADJUSTMENT"`
	Amount          string  `json:"amount" validate:"required,numeric"`
	DocumentNumber  string  `json:"document_number" validate:"omitempty,max=100"`
	TransactionDate string  `json:"transaction_date"`
	DocumentBalance *string `json:"document_balance" validate:"omitempty,numeric"`
	Description     string  `json:"description" validate:"omitempty,max=500"`
}

// =============================================================================
// ENTRIES
// =============================================================================

type EntryDTO struct {
	ID              string     `json:"id"`
	Sequence        int64      `json:"sequence"`
	PartyID         string     `json:"party_id"`
	Kind            string     `json:"kind"`
	Amount          string     `json:"amount"`
	Delta           string     `json:"delta"`
	BalanceAfter    BalanceDTO `json:"balance_after"`
	TransactionDate string     `json:"transaction_date"`
	DocumentID      string     `json:"document_id,omitempty"`
	DocumentNumber  string     `json:"document_number,omitempty"`
	DocumentBalance *string    `json:"document_balance,omitempty"`
	Description     string     `json:"description,omitempty"`
	Reversal        bool       `json:"reversal"`
	ReversesID      string     `json:"reverses_id,omitempty"`
	CreatedAt       string     `json:"created_at"`
}

type ReplaceDocumentResponse struct {
	Reversal EntryDTO `json:"reversal"`
	Applied  EntryDTO `json:"applied"`
}

type SummaryDTO struct {
	PartyID     string     `json:"party_id"`
	TotalCredit string     `json:"total_credit"`
	TotalDebit  string     `json:"total_debit"`
	Balance     BalanceDTO `json:"balance"`
	Latest      *EntryDTO  `json:"latest,omitempty"`
}

type AuditReportDTO struct {
	PartyID     string     `json:"party_id"`
	Consistent  bool       `json:"consistent"`
	Stored      BalanceDTO `json:"stored"`
	Replayed    BalanceDTO `json:"replayed"`
	Drift       string     `json:"drift"`
	Entries     int        `json:"entries"`
	BrokenChain []string   `json:"broken_chain,omitempty"`
}

// =============================================================================
// SCENARIOS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Expected    string `json:"expected"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ScenarioResultDTO is what a loaded scenario produced.
type ScenarioResultDTO struct {
	Scenario ScenarioDTO `json:"scenario"`
	Party    PartyDTO    `json:"party"`
	Entries  []EntryDTO  `json:"entries"`
	Passed   bool        `json:"passed"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

type ValidationDetail struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toBalanceDTO(b ledger.Balance) BalanceDTO {
	return BalanceDTO{
		Amount:      b.Magnitude().StringFixed(ledger.CurrencyScale),
		BalanceType: string(b.Direction()),
		Signed:      b.Signed().StringFixed(ledger.CurrencyScale),
	}
}

func toPartyDTO(p ledger.Party) PartyDTO {
	return PartyDTO{
		ID:             string(p.ID),
		MerchantID:     string(p.MerchantID),
		Name:           p.Name,
		Phone:          p.Phone,
		Email:          p.Email,
		Address:        p.Address,
		GSTNumber:      p.GSTNumber,
		PANNumber:      p.PANNumber,
		PartyType:      string(p.Type),
		OpeningBalance: toBalanceDTO(p.OpeningBalance),
		Balance:        toBalanceDTO(p.Balance),
		Version:        p.Version,
		CreatedAt:      p.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.Format(time.RFC3339),
	}
}

func toEntryDTO(e ledger.Entry) EntryDTO {
	dto := EntryDTO{
		ID:              string(e.ID),
		Sequence:        e.Sequence,
		PartyID:         string(e.PartyID),
		Kind:            string(e.Kind),
		Amount:          e.Amount.StringFixed(ledger.CurrencyScale),
		Delta:           e.Delta.StringFixed(ledger.CurrencyScale),
		BalanceAfter:    toBalanceDTO(e.BalanceAfter),
		TransactionDate: e.TransactionDate.Format(time.RFC3339),
		DocumentID:      e.Document.ID,
		DocumentNumber:  e.Document.Number,
		Description:     e.Description,
		Reversal:        e.Reversal,
		ReversesID:      string(e.ReversesID),
		CreatedAt:       e.CreatedAt.Format(time.RFC3339),
	}
	if e.DocumentBalance != nil {
		s := e.DocumentBalance.StringFixed(ledger.CurrencyScale)
		dto.DocumentBalance = &s
	}
	return dto
}

func toEntryDTOs(entries []ledger.Entry) []EntryDTO {
	dtos := make([]EntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toEntryDTO(e)
	}
	return dtos
}

func toSummaryDTO(s ledger.PartySummary) SummaryDTO {
	dto := SummaryDTO{
		PartyID:     string(s.PartyID),
		TotalCredit: s.TotalCredit.StringFixed(ledger.CurrencyScale),
		TotalDebit:  s.TotalDebit.StringFixed(ledger.CurrencyScale),
		Balance:     toBalanceDTO(s.Balance),
	}
	if s.Latest != nil {
		latest := toEntryDTO(*s.Latest)
		dto.Latest = &latest
	}
	return dto
}

func toAuditReportDTO(r ledger.AuditReport) AuditReportDTO {
	dto := AuditReportDTO{
		PartyID:    string(r.PartyID),
		Consistent: r.Consistent(),
		Stored:     toBalanceDTO(r.Stored),
		Replayed:   toBalanceDTO(r.Replayed),
		Drift:      r.Drift().StringFixed(ledger.CurrencyScale),
		Entries:    r.Entries,
	}
	for _, id := range r.BrokenChain {
		dto.BrokenChain = append(dto.BrokenChain, string(id))
	}
	return dto
}

func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(s)
}

func parseOptionalAmount(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// parseDate accepts RFC 3339 or YYYY-MM-DD. Empty means "now" to the ledger.
func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}
