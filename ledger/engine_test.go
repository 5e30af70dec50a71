package ledger_test

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/party-ledger/ledger"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func signed(s string) ledger.Balance {
	return ledger.NewBalance(dec(s))
}

func ev(kind ledger.EventKind, amount string) ledger.Event {
	return ledger.Event{Kind: kind, Amount: dec(amount)}
}

func assertView(t *testing.T, b ledger.Balance, magnitude string, dir ledger.Direction) {
	t.Helper()
	v := b.View()
	assert.True(t, v.Magnitude.Equal(dec(magnitude)), "magnitude: want %s, got %s", magnitude, v.Magnitude)
	assert.Equal(t, dir, v.Direction)
}

func assertSettledIffZero(t *testing.T, b ledger.Balance) {
	t.Helper()
	v := b.View()
	assert.False(t, v.Magnitude.IsNegative(), "magnitude must not be negative")
	assert.Equal(t, v.Magnitude.IsZero(), v.Direction == ledger.DirectionSettled,
		"settled iff zero broken for %s", b)
}

// =============================================================================
// SIGN TABLE
// =============================================================================

func TestApply_SignTable(t *testing.T) {
	// GIVEN: A settled balance
	// WHEN: Applying 100 of each kind
	// THEN: The signed delta follows the sign table

	tests := []struct {
		kind ledger.EventKind
		want string
	}{
		{ledger.KindSale, "100"},
		{ledger.KindPurchase, "-100"},
		{ledger.KindPaymentIn, "-100"},
		{ledger.KindPaymentOut, "100"},
		{ledger.KindAdjustment, "100"},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			got, err := ledger.Apply(ledger.Balance{}, ev(tt.kind, "100"))
			require.NoError(t, err)
			assert.True(t, got.Signed().Equal(dec(tt.want)), "want %s got %s", tt.want, got.Signed())
		})
	}
}

func TestApply_NegativeAdjustment_MovesTowardsToPay(t *testing.T) {
	got, err := ledger.Apply(signed("50"), ev(ledger.KindAdjustment, "-80"))
	require.NoError(t, err)
	assertView(t, got, "30", ledger.DirectionToPay)
}

func TestApply_NegativeAmount_RejectedForNonAdjustment(t *testing.T) {
	// GIVEN: A negative amount
	// WHEN: Applied as anything but ADJUSTMENT
	// THEN: ErrInvalidAmount, balance unchanged

	start := signed("10")
	for _, k := range []ledger.EventKind{ledger.KindSale, ledger.KindPurchase, ledger.KindPaymentIn, ledger.KindPaymentOut} {
		got, err := ledger.Apply(start, ev(k, "-1"))
		require.ErrorIs(t, err, ledger.ErrInvalidAmount, k)
		var amountErr *ledger.InvalidAmountError
		require.ErrorAs(t, err, &amountErr)
		assert.Equal(t, k, amountErr.Kind)
		assert.True(t, got.Equal(start))
	}
}

func TestApply_TooManyFractionalDigits_Rejected(t *testing.T) {
	_, err := ledger.Apply(ledger.Balance{}, ev(ledger.KindSale, "10.005"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

func TestApply_UnknownKind_Rejected(t *testing.T) {
	_, err := ledger.Apply(ledger.Balance{}, ledger.Event{Kind: "REFUND", Amount: dec("1")})
	assert.ErrorIs(t, err, ledger.ErrInvalidEventKind)
}

func TestApply_ZeroAmount_NoChange(t *testing.T) {
	for _, k := range ledger.AllKinds {
		got, err := ledger.Apply(signed("-42.50"), ev(k, "0"))
		require.NoError(t, err)
		assertView(t, got, "42.50", ledger.DirectionToPay)
	}
}

// =============================================================================
// INVARIANTS
// =============================================================================

func TestApply_SettledIffZero_ForAllReachableStates(t *testing.T) {
	// GIVEN: Starting balances on both sides of zero and at zero
	// WHEN: Applying every kind with amounts that land below, on and above zero
	// THEN: magnitude >= 0 and (magnitude == 0) == SETTLED every time

	starts := []string{"-300", "-0.01", "0", "0.01", "300"}
	amounts := []string{"0", "0.01", "299.99", "300", "300.01", "1000"}
	for _, s := range starts {
		for _, k := range ledger.AllKinds {
			for _, a := range amounts {
				got, err := ledger.Apply(signed(s), ev(k, a))
				require.NoError(t, err)
				assertSettledIffZero(t, got)
			}
		}
	}
}

func TestApply_ExactDelta_NoRoundingDrift(t *testing.T) {
	// GIVEN: 10,000 sales of 0.01 and 10,000 payments of 0.01
	// WHEN: Applied in sequence
	// THEN: Balance is exactly 100.00 halfway and exactly 0 at the end

	b := ledger.Balance{}
	for i := 0; i < 10000; i++ {
		var err error
		b, err = ledger.Apply(b, ev(ledger.KindSale, "0.01"))
		require.NoError(t, err)
	}
	assert.True(t, b.Signed().Equal(dec("100")), "got %s", b.Signed())

	for i := 0; i < 10000; i++ {
		var err error
		b, err = ledger.Apply(b, ev(ledger.KindPaymentIn, "0.01"))
		require.NoError(t, err)
	}
	assertView(t, b, "0", ledger.DirectionSettled)
}

func TestApply_SignedAfterEqualsBeforePlusDelta(t *testing.T) {
	start := signed("123.45")
	for _, k := range ledger.AllKinds {
		e := ev(k, "67.89")
		delta, err := e.Delta()
		require.NoError(t, err)
		got, err := ledger.Apply(start, e)
		require.NoError(t, err)
		assert.True(t, got.Signed().Equal(start.Signed().Add(delta)), k)
	}
}

func TestApply_LandsExactlyOnZero_IsSettled(t *testing.T) {
	got, err := ledger.Apply(signed("-250"), ev(ledger.KindPaymentOut, "250"))
	require.NoError(t, err)
	assertView(t, got, "0", ledger.DirectionSettled)
	assert.True(t, got.IsSettled())
}

// =============================================================================
// INVERSE
// =============================================================================

func TestInverse_RoundTrip_EveryKind(t *testing.T) {
	// GIVEN: Any starting balance and any event kind
	// WHEN: Applying the event, then its inverse
	// THEN: The starting balance is restored exactly (magnitude and direction)

	starts := []string{"-500", "0", "150.25"}
	for _, s := range starts {
		for _, k := range ledger.AllKinds {
			start := signed(s)
			e := ev(k, "320.10")

			applied, err := ledger.Apply(start, e)
			require.NoError(t, err)
			inv, err := ledger.Inverse(e)
			require.NoError(t, err)
			back, err := ledger.Apply(applied, inv)
			require.NoError(t, err)

			assert.Equal(t, start.View().Direction, back.View().Direction, "%s from %s", k, s)
			assert.True(t, start.Equal(back), "%s from %s: got %s", k, s, back)

			// re-apply restores the post-application state
			again, err := ledger.Apply(back, e)
			require.NoError(t, err)
			assert.True(t, applied.Equal(again))
		}
	}
}

func TestInverse_InvalidEvent_Rejected(t *testing.T) {
	_, err := ledger.Inverse(ev(ledger.KindSale, "-5"))
	assert.ErrorIs(t, err, ledger.ErrInvalidAmount)
}

// =============================================================================
// ORDER
// =============================================================================

func TestApplyAll_OrderChangesIntermediateButNotFinal(t *testing.T) {
	// GIVEN: Opening balance +100 and two events that cross zero
	// WHEN: Applied in both orders
	// THEN: Intermediate directions differ, final signed balance is identical

	start := signed("100")
	e1 := ev(ledger.KindPurchase, "300")
	e2 := ev(ledger.KindSale, "250")

	mid12, err := ledger.Apply(start, e1)
	require.NoError(t, err)
	mid21, err := ledger.Apply(start, e2)
	require.NoError(t, err)
	assert.Equal(t, ledger.DirectionToPay, mid12.Direction())
	assert.Equal(t, ledger.DirectionToReceive, mid21.Direction())

	final12, err := ledger.ApplyAll(start, e1, e2)
	require.NoError(t, err)
	final21, err := ledger.ApplyAll(start, e2, e1)
	require.NoError(t, err)
	assert.True(t, final12.Equal(final21))
	assertView(t, final12, "50", ledger.DirectionToReceive)
}

func TestApplyAll_StopsAtFirstInvalidEvent(t *testing.T) {
	start := signed("10")
	got, err := ledger.ApplyAll(start, ev(ledger.KindSale, "5"), ev(ledger.KindSale, "-1"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
	assert.True(t, got.Equal(start))
}

// =============================================================================
// BALANCE VIEW
// =============================================================================

func TestBalanceFromView(t *testing.T) {
	tests := []struct {
		name    string
		view    ledger.BalanceView
		want    string
		wantErr bool
	}{
		{"to receive", ledger.BalanceView{Magnitude: dec("10"), Direction: ledger.DirectionToReceive}, "10", false},
		{"to pay", ledger.BalanceView{Magnitude: dec("10"), Direction: ledger.DirectionToPay}, "-10", false},
		{"settled", ledger.BalanceView{Magnitude: dec("0"), Direction: ledger.DirectionSettled}, "0", false},
		{"settled with magnitude", ledger.BalanceView{Magnitude: dec("1"), Direction: ledger.DirectionSettled}, "", true},
		{"to pay with zero", ledger.BalanceView{Magnitude: dec("0"), Direction: ledger.DirectionToPay}, "", true},
		{"negative magnitude", ledger.BalanceView{Magnitude: dec("-1"), Direction: ledger.DirectionToReceive}, "", true},
		{"unknown direction", ledger.BalanceView{Magnitude: dec("1"), Direction: "OWED"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.BalanceFromView(tt.view)
			if tt.wantErr {
				assert.ErrorIs(t, err, ledger.ErrInvalidBalance)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.Signed().Equal(dec(tt.want)))
			assert.Equal(t, tt.view.Direction, got.View().Direction)
		})
	}
}

func TestParseEventKind(t *testing.T) {
	k, err := ledger.ParseEventKind(" payment_in ")
	require.NoError(t, err)
	assert.Equal(t, ledger.KindPaymentIn, k)

	_, err = ledger.ParseEventKind("CASH")
	assert.ErrorIs(t, err, ledger.ErrInvalidEventKind)
	assert.True(t, ledger.IsClientError(err))
}

// =============================================================================
// SCENARIOS
// =============================================================================

func TestScenarioA_SaleThenFullPayment(t *testing.T) {
	// GIVEN: Opening balance 0
	// WHEN: SALE 1000, then PAYMENT_IN 1000
	// THEN: 1000 TO_RECEIVE, then 0 SETTLED

	b, err := ledger.Apply(ledger.Balance{}, ev(ledger.KindSale, "1000"))
	require.NoError(t, err)
	assertView(t, b, "1000", ledger.DirectionToReceive)

	b, err = ledger.Apply(b, ev(ledger.KindPaymentIn, "1000"))
	require.NoError(t, err)
	assertView(t, b, "0", ledger.DirectionSettled)
}

func TestScenarioB_SaleCrossesZero(t *testing.T) {
	// GIVEN: Merchant owes the party 500
	// WHEN: SALE 800
	// THEN: -500 becomes +300, 300 TO_RECEIVE

	start, err := ledger.BalanceFromView(ledger.BalanceView{Magnitude: dec("500"), Direction: ledger.DirectionToPay})
	require.NoError(t, err)

	b, err := ledger.Apply(start, ev(ledger.KindSale, "800"))
	require.NoError(t, err)
	assert.True(t, b.Signed().Equal(dec("300")))
	assertView(t, b, "300", ledger.DirectionToReceive)
}

func TestScenarioC_PaymentOutWhilePartyOwes(t *testing.T) {
	// GIVEN: Party owes 300
	// WHEN: Merchant pays out 1000 anyway
	// THEN: 1300 TO_RECEIVE

	start, err := ledger.BalanceFromView(ledger.BalanceView{Magnitude: dec("300"), Direction: ledger.DirectionToReceive})
	require.NoError(t, err)

	b, err := ledger.Apply(start, ev(ledger.KindPaymentOut, "1000"))
	require.NoError(t, err)
	assertView(t, b, "1300", ledger.DirectionToReceive)
}

func TestScenarioD_PurchaseReversalRestoresSettled(t *testing.T) {
	// GIVEN: Settled party, PURCHASE 200 applied (200 TO_PAY)
	// WHEN: The purchase is reversed
	// THEN: 0 SETTLED

	purchase := ev(ledger.KindPurchase, "200")
	b, err := ledger.Apply(ledger.Balance{}, purchase)
	require.NoError(t, err)
	assertView(t, b, "200", ledger.DirectionToPay)

	inv, err := ledger.Inverse(purchase)
	require.NoError(t, err)
	b, err = ledger.Apply(b, inv)
	require.NoError(t, err)
	assertView(t, b, "0", ledger.DirectionSettled)
}
