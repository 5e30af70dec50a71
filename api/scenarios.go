/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that create a party for the "demo" merchant
  and run a short sequence of events against it. Each scenario shows one
  direction rule of the balance engine.

AVAILABLE SCENARIOS:
  first-sale:        settled party, sale then full payment back to settled
  crossing-zero:     merchant owes 500, a sale of 800 flips the direction
  payment-out:       party owes 300, merchant still pays out 1000
  purchase-reversal: a purchase of 200 is reversed back to settled

HOW SCENARIOS WORK:
 1. Create a party with the scenario's opening balance
 2. Apply or reverse each step in order
 3. Compare the final balance with the expected view

Scenarios never reset anything. Loading one twice creates a second party
with a numbered name.

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "crossing-zero"}

SEE ALSO:
  - handlers.go: shared helpers
  - ledger/engine.go: the sign rules each scenario exercises
*/
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/warp/party-ledger/ledger"
)

// DemoMerchant owns every party created by a scenario.
const DemoMerchant ledger.MerchantID = "demo"

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenarioStep struct {
	reverse bool
	kind    ledger.EventKind
	amount  string
	doc     string
}

type scenario struct {
	ScenarioDTO
	opening  ledger.BalanceView
	steps    []scenarioStep
	expected ledger.BalanceView
}

func view(amount string, dir ledger.Direction) ledger.BalanceView {
	return ledger.BalanceView{Magnitude: decimal.RequireFromString(amount), Direction: dir}
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "first-sale",
			Name:        "First Sale",
			Description: "Settled customer buys for 1000 and pays 1000",
			Expected:    "0 SETTLED",
		},
		opening: view("0", ledger.DirectionSettled),
		steps: []scenarioStep{
			{kind: ledger.KindSale, amount: "1000", doc: "INV-1"},
			{kind: ledger.KindPaymentIn, amount: "1000", doc: "RCPT-1"},
		},
		expected: view("0", ledger.DirectionSettled),
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "crossing-zero",
			Name:        "Crossing Zero",
			Description: "Merchant owes the party 500, then sells to it for 800",
			Expected:    "300 TO_RECEIVE",
		},
		opening: view("500", ledger.DirectionToPay),
		steps: []scenarioStep{
			{kind: ledger.KindSale, amount: "800", doc: "INV-1"},
		},
		expected: view("300", ledger.DirectionToReceive),
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "payment-out",
			Name:        "Payment Out",
			Description: "Party owes 300 and the merchant pays it 1000 anyway",
			Expected:    "1300 TO_RECEIVE",
		},
		opening: view("300", ledger.DirectionToReceive),
		steps: []scenarioStep{
			{kind: ledger.KindPaymentOut, amount: "1000", doc: "PAY-1"},
		},
		expected: view("1300", ledger.DirectionToReceive),
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "purchase-reversal",
			Name:        "Purchase Reversal",
			Description: "A purchase of 200 is recorded and then deleted",
			Expected:    "0 SETTLED",
		},
		opening: view("0", ledger.DirectionSettled),
		steps: []scenarioStep{
			{kind: ledger.KindPurchase, amount: "200", doc: "BILL-1"},
			{reverse: true, kind: ledger.KindPurchase, amount: "200", doc: "BILL-1"},
		},
		expected: view("0", ledger.DirectionSettled),
	},
}

func findScenario(id string) (scenario, bool) {
	for _, s := range scenarios {
		if s.ID == id {
			return s, true
		}
	}
	return scenario{}, false
}

// =============================================================================
// HANDLERS
// =============================================================================

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// LoadScenario runs a scenario and reports whether it reached its expected balance.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !h.decode(w, r, &req) {
		return
	}
	s, ok := findScenario(req.ScenarioID)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown scenario", fmt.Errorf("scenario %q", req.ScenarioID))
		return
	}

	result, err := h.RunScenario(r.Context(), s.ID)
	if err != nil {
		h.writeServiceError(w, r, "Failed to load scenario", err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// RunScenario creates the scenario's party and plays its steps.
func (h *Handler) RunScenario(ctx context.Context, id string) (ScenarioResultDTO, error) {
	s, ok := findScenario(id)
	if !ok {
		return ScenarioResultDTO{}, fmt.Errorf("unknown scenario %q", id)
	}

	party, err := h.createScenarioParty(ctx, s)
	if err != nil {
		return ScenarioResultDTO{}, fmt.Errorf("create party: %w", err)
	}

	for i, step := range s.steps {
		amount := decimal.RequireFromString(step.amount)
		doc := ledger.DocumentRef{ID: step.doc, Number: step.doc}
		if step.reverse {
			_, err = h.Service.ReverseDocument(ctx, ledger.ReverseRequest{
				PartyID: party.ID, Kind: step.kind, Amount: amount, Document: doc,
			})
		} else {
			_, err = h.Service.ApplyEconomicEvent(ctx, ledger.ApplyRequest{
				PartyID: party.ID, Kind: step.kind, Amount: amount, Document: doc,
			})
		}
		if err != nil {
			return ScenarioResultDTO{}, fmt.Errorf("step %d (%s): %w", i+1, step.kind, err)
		}
	}

	party, err = h.Service.GetParty(ctx, party.ID)
	if err != nil {
		return ScenarioResultDTO{}, err
	}
	entries, err := h.Service.GetHistory(ctx, ledger.HistoryQuery{PartyID: party.ID})
	if err != nil {
		return ScenarioResultDTO{}, err
	}

	got := party.Balance.View()
	passed := got.Direction == s.expected.Direction && got.Magnitude.Equal(s.expected.Magnitude)
	h.Log.Sugar().Infow("scenario loaded",
		"scenario", s.ID,
		"party_id", party.ID,
		"balance", party.Balance.String(),
		"passed", passed)

	return ScenarioResultDTO{
		Scenario: s.ScenarioDTO,
		Party:    toPartyDTO(party),
		Entries:  toEntryDTOs(entries),
		Passed:   passed,
	}, nil
}

// createScenarioParty names the party after the scenario. Party names are
// unique per merchant, so later loads get "First Sale (2)", "(3)", ...
func (h *Handler) createScenarioParty(ctx context.Context, s scenario) (ledger.Party, error) {
	for n := 1; ; n++ {
		name := s.Name
		if n > 1 {
			name = fmt.Sprintf("%s (%d)", s.Name, n)
		}
		party, err := h.Service.CreateParty(ctx, ledger.NewParty{
			MerchantID:     DemoMerchant,
			Name:           name,
			OpeningBalance: s.opening,
		})
		if errors.Is(err, ledger.ErrDuplicateParty) {
			continue
		}
		return party, err
	}
}
