package models

import (
	"testing"
	"time"

	"github.com/pocketbase/pocketbase/tools/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaymentStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to PaymentStatus
		want     bool
	}{
		{PaymentPending, PaymentPaid, true},
		{PaymentPending, PaymentFailed, true},
		{PaymentPending, PaymentCancelled, true},
		{PaymentPending, PaymentPending, false},
		{PaymentPaid, PaymentPending, false},
		{PaymentPaid, PaymentCancelled, false},
		{PaymentFailed, PaymentPaid, false},
		{PaymentCancelled, PaymentPaid, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestTicketStatus_CanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to TicketStatus
		want     bool
	}{
		{TicketPending, TicketActive, true},
		{TicketPending, TicketCancelled, true},
		{TicketActive, TicketUsed, true},
		{TicketActive, TicketCancelled, true},
		{TicketPending, TicketUsed, false},
		{TicketUsed, TicketActive, false},
		{TicketUsed, TicketCancelled, false},
		{TicketActive, TicketPending, false},
		{TicketCancelled, TicketActive, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.CanTransitionTo(tt.to))
		})
	}
}

func TestSnapshot(t *testing.T) {
	snap := Snapshot{
		{SKU: "DAY1", TicketType: "1-Day Pass", UnitPrice: 6000, TotalAmountMinor: 12000, Quantity: 2},
		{SKU: "VIP", TicketType: "VIP", UnitPrice: 15000, TotalAmountMinor: 15000, Quantity: 1},
	}

	assert.Equal(t, 3, snap.TicketCount())
	assert.Equal(t, int64(27000), snap.TotalMinor())
	assert.Equal(t, int64(6000), snap[0].PerUnit())
	assert.Equal(t, int64(0), SnapshotItem{TotalAmountMinor: 100}.PerUnit())

	t.Run("stored form", func(t *testing.T) {
		v, err := snap.Value()
		require.NoError(t, err)

		var back Snapshot
		require.NoError(t, back.Scan(v))
		assert.Equal(t, snap, back)

		require.NoError(t, back.Scan([]byte(v.(string))))
		assert.Equal(t, snap, back)
	})

	t.Run("nil encodes as empty list", func(t *testing.T) {
		v, err := Snapshot(nil).Value()
		require.NoError(t, err)
		assert.Equal(t, "[]", v)
	})

	t.Run("scan nil and empty", func(t *testing.T) {
		back := snap
		require.NoError(t, back.Scan(nil))
		assert.Nil(t, back)
		require.NoError(t, back.Scan(""))
		assert.Nil(t, back)
	})

	t.Run("scan rejects other types", func(t *testing.T) {
		var back Snapshot
		assert.Error(t, back.Scan(42))
	})
}

func TestPayment_Validate(t *testing.T) {
	paidAt, err := types.ParseDateTime(time.Now())
	require.NoError(t, err)

	assert.NoError(t, (&Payment{Status: PaymentPending}).Validate())
	assert.NoError(t, (&Payment{Status: PaymentPaid, PaidAt: paidAt}).Validate())
	assert.Error(t, (&Payment{Status: PaymentPaid}).Validate())
	assert.Error(t, (&Payment{Status: PaymentPending, PaidAt: paidAt}).Validate())
	assert.Error(t, (&Payment{Status: "refunded"}).Validate())
}

func TestFormatMinor(t *testing.T) {
	assert.Equal(t, "60.00", FormatMinor(6000))
	assert.Equal(t, "0.05", FormatMinor(5))
	assert.Equal(t, "1234.50", FormatMinor(123450))
}

func TestParseMajor(t *testing.T) {
	tests := []struct {
		in   string
		want int64
	}{
		{"60", 6000},
		{"60.00", 6000},
		{"0.05", 5},
		{"19.999", 2000},
	}
	for _, tt := range tests {
		got, err := ParseMajor(tt.in)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, tt.in)
	}

	_, err := ParseMajor("sixty")
	assert.Error(t, err)
}
